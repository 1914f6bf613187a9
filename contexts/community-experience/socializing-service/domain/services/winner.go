package services

import (
	"sort"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
)

// ResolveWinner applies the moderator pin when it names a catalog option and
// otherwise picks the plurality option. Ties go to the option built first,
// which is the smaller opt-N id (earliest date, then earliest-selected
// location). With no pin and no option votes there is no winner.
func ResolveWinner(catalog entities.Catalog, tally entities.Tally, pinnedOptionID string) (entities.Winner, bool) {
	if pinnedOptionID != "" {
		if option, ok := catalog.Option(pinnedOptionID); ok {
			return entities.Winner{
				Option: option,
				Count:  tally.Count(option.OptionID),
				Pinned: true,
			}, true
		}
	}

	best := -1
	bestCount := 0
	for i, option := range catalog.Options {
		count := tally.Count(option.OptionID)
		if count > bestCount {
			best = i
			bestCount = count
		}
	}
	if best < 0 {
		return entities.Winner{}, false
	}
	return entities.Winner{
		Option: catalog.Options[best],
		Count:  bestCount,
	}, true
}

// RankOptions returns option buckets ordered by count descending with the
// same tie-break as ResolveWinner.
func RankOptions(catalog entities.Catalog, tally entities.Tally) []entities.OptionTally {
	ranked := make([]entities.OptionTally, 0, len(catalog.Options))
	for _, option := range catalog.Options {
		for _, bucket := range tally.Options {
			if bucket.OptionID == option.OptionID {
				ranked = append(ranked, bucket)
				break
			}
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	return ranked
}
