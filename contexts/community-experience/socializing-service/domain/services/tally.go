package services

import (
	"sort"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
)

// ComputeTally aggregates the ledger in one pass. It keeps no state between
// calls; every read recomputes from the full record set.
//
// Records cast against another catalog are ignored, as are option ids the
// catalog does not know. A record with neither option votes nor cantAttend
// is a non-voter and stays out of TotalVoters.
func ComputeTally(cohortID string, catalog entities.Catalog, records []entities.VoteRecord) entities.Tally {
	buckets := make(map[string]*entities.OptionTally, len(catalog.Options))
	options := make([]entities.OptionTally, len(catalog.Options))
	for i, option := range catalog.Options {
		options[i] = entities.OptionTally{OptionID: option.OptionID, VoterIDs: []string{}}
		buckets[option.OptionID] = &options[i]
	}

	tally := entities.Tally{
		CohortID:             cohortID,
		CatalogID:            catalog.CatalogID,
		CantAttendVoterIDs:   []string{},
		AttendingVoterIDs:    []string{},
		NotAttendingVoterIDs: []string{},
		TotalVoterIDs:        []string{},
	}

	for _, record := range sortedRecords(records) {
		if catalog.CatalogID == "" || record.CatalogID != catalog.CatalogID {
			continue
		}
		voted := false
		if record.CantAttend {
			tally.CantAttendCount++
			tally.CantAttendVoterIDs = append(tally.CantAttendVoterIDs, record.ParticipantID)
			voted = true
		} else {
			for _, optionID := range record.OptionIDs {
				bucket, ok := buckets[optionID]
				if !ok {
					continue
				}
				bucket.Count++
				bucket.VoterIDs = append(bucket.VoterIDs, record.ParticipantID)
				voted = true
			}
		}
		if voted {
			tally.TotalVoters++
			tally.TotalVoterIDs = append(tally.TotalVoterIDs, record.ParticipantID)
		}

		switch record.Attendance {
		case entities.AttendanceAttending:
			tally.AttendingCount++
			tally.AttendingVoterIDs = append(tally.AttendingVoterIDs, record.ParticipantID)
		case entities.AttendanceNotAttending:
			tally.NotAttendingCount++
			tally.NotAttendingVoterIDs = append(tally.NotAttendingVoterIDs, record.ParticipantID)
		}
	}

	tally.Options = options
	return tally
}

// sortedRecords orders by participant id so voter lists are stable no matter
// what order storage returns rows in.
func sortedRecords(records []entities.VoteRecord) []entities.VoteRecord {
	items := append([]entities.VoteRecord(nil), records...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ParticipantID < items[j].ParticipantID
	})
	return items
}
