package entities

import "time"

type AttendanceVote string

const (
	AttendanceUnset        AttendanceVote = ""
	AttendanceAttending    AttendanceVote = "attending"
	AttendanceNotAttending AttendanceVote = "not_attending"
)

func (a AttendanceVote) Valid() bool {
	switch a {
	case AttendanceUnset, AttendanceAttending, AttendanceNotAttending:
		return true
	default:
		return false
	}
}

// VoteRecord is the single current vote of one participant in one cohort.
// OptionIDs and CantAttend are mutually exclusive; Attendance is independent.
type VoteRecord struct {
	CohortID      string
	ParticipantID string
	CatalogID     string
	OptionIDs     []string
	CantAttend    bool
	Attendance    AttendanceVote
	UpdatedAt     time.Time
}

func (v VoteRecord) Clone() VoteRecord {
	next := v
	next.OptionIDs = append([]string(nil), v.OptionIDs...)
	return next
}

func (v VoteRecord) HasOptionVote() bool {
	return !v.CantAttend && len(v.OptionIDs) > 0
}

// Voted reports whether the record counts towards totalVoters.
func (v VoteRecord) Voted() bool {
	return v.CantAttend || len(v.OptionIDs) > 0
}

// WithOptionVotes replaces the option selection and clears cantAttend.
// optionIDs are stored deduplicated in catalog order.
func (v VoteRecord) WithOptionVotes(catalog Catalog, optionIDs []string, now time.Time) VoteRecord {
	selected := make(map[string]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		selected[id] = struct{}{}
	}
	ordered := make([]string, 0, len(selected))
	for _, option := range catalog.Options {
		if _, ok := selected[option.OptionID]; ok {
			ordered = append(ordered, option.OptionID)
		}
	}
	next := v.rebase(catalog.CatalogID)
	next.OptionIDs = ordered
	next.CantAttend = false
	next.UpdatedAt = now.UTC()
	return next
}

// WithCantAttend marks the participant unavailable for every option.
func (v VoteRecord) WithCantAttend(catalog Catalog, now time.Time) VoteRecord {
	next := v.rebase(catalog.CatalogID)
	next.OptionIDs = nil
	next.CantAttend = true
	next.UpdatedAt = now.UTC()
	return next
}

func (v VoteRecord) WithAttendance(value AttendanceVote, catalogID string, now time.Time) VoteRecord {
	next := v.rebase(catalogID)
	next.Attendance = value
	next.UpdatedAt = now.UTC()
	return next
}

// rebase drops everything recorded against a different catalog.
func (v VoteRecord) rebase(catalogID string) VoteRecord {
	if v.CatalogID == catalogID {
		return v.Clone()
	}
	return VoteRecord{
		CohortID:      v.CohortID,
		ParticipantID: v.ParticipantID,
		CatalogID:     catalogID,
	}
}
