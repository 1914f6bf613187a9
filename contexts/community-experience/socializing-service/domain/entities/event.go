package entities

import (
	"fmt"
	"time"

	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
)

type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseOptionVote      Phase = "option_vote"
	PhaseAttendanceCheck Phase = "attendance_check"
	PhaseConfirmed       Phase = "confirmed"
)

// Valid reports whether p is one of the four workflow phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseOptionVote, PhaseAttendanceCheck, PhaseConfirmed:
		return true
	default:
		return false
	}
}

// ResultRecord is the draft (attendance_check) or final (confirmed) outcome.
type ResultRecord struct {
	OptionID    string
	Date        string
	Time        string
	Location    string
	Pinned      bool
	Attendees   []string
	Absentees   []string
	ConfirmedAt *time.Time
}

// Event is the per-cohort scheduling aggregate. Every mutation goes through
// one of the transition methods below, which validate the current phase and
// return the next state without touching the receiver. Version increases on
// every persisted change and backs the conditional write in storage.
type Event struct {
	CohortID       string
	Phase          Phase
	Version        int64
	Catalog        Catalog
	Deadline       *time.Time
	PinnedOptionID string
	OpenChatURL    string
	Result         *ResultRecord
	// DeadlineNotifiedFor holds the deadline an advisory notice was already sent for.
	DeadlineNotifiedFor *time.Time
	UpdatedAt           time.Time
}

// NewIdleEvent is the implicit state of a cohort that never started voting.
func NewIdleEvent(cohortID string) Event {
	return Event{
		CohortID: cohortID,
		Phase:    PhaseIdle,
	}
}

// CanTransition encodes the forward-only phase graph plus reset.
func CanTransition(from Phase, to Phase) bool {
	if to == PhaseIdle {
		return true
	}
	switch from {
	case PhaseIdle:
		return to == PhaseOptionVote
	case PhaseOptionVote:
		return to == PhaseAttendanceCheck
	case PhaseAttendanceCheck:
		return to == PhaseConfirmed
	default:
		return false
	}
}

// CheckTransition returns a wrapped ErrIllegalTransition when the event cannot
// move to phase to from where it is now.
func (e Event) CheckTransition(to Phase) error {
	if CanTransition(e.Phase, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domainerrors.ErrIllegalTransition, e.Phase, to)
}

// StartOptionVote opens voting on catalog. It is legal only from idle and
// drops any pin, result and earlier deadline notice.
func (e Event) StartOptionVote(catalog Catalog, deadline time.Time, now time.Time) (Event, error) {
	if err := e.CheckTransition(PhaseOptionVote); err != nil {
		return Event{}, err
	}
	if catalog.Empty() || catalog.CatalogID == "" {
		return Event{}, domainerrors.ErrInvalidCatalogInput
	}
	if !deadline.After(now) {
		return Event{}, domainerrors.ErrInvalidDeadline
	}
	next := e.Clone()
	next.Phase = PhaseOptionVote
	next.Catalog = catalog
	next.Deadline = timePtr(deadline)
	next.PinnedOptionID = ""
	next.Result = nil
	next.DeadlineNotifiedFor = nil
	return next.touch(now), nil
}

// Pin sets or, with an empty id, clears the moderator override.
func (e Event) Pin(optionID string, now time.Time) (Event, error) {
	if e.Phase != PhaseOptionVote {
		return Event{}, domainerrors.ErrVotingClosed
	}
	if optionID != "" && !e.Catalog.Contains(optionID) {
		return Event{}, domainerrors.ErrUnknownOption
	}
	next := e.Clone()
	next.PinnedOptionID = optionID
	return next.touch(now), nil
}

// StartAttendanceCheck copies the winner into a draft result. Vote records are
// left in place; only attendance votes matter from here on.
func (e Event) StartAttendanceCheck(winner Option, pinned bool, deadline time.Time, now time.Time) (Event, error) {
	if err := e.CheckTransition(PhaseAttendanceCheck); err != nil {
		return Event{}, err
	}
	if !e.Catalog.Contains(winner.OptionID) {
		return Event{}, domainerrors.ErrUnknownOption
	}
	if !deadline.After(now) {
		return Event{}, domainerrors.ErrInvalidDeadline
	}
	next := e.Clone()
	next.Phase = PhaseAttendanceCheck
	next.Result = &ResultRecord{
		OptionID: winner.OptionID,
		Date:     winner.Date,
		Time:     winner.Time,
		Location: winner.Location,
		Pinned:   pinned,
	}
	next.PinnedOptionID = ""
	next.Deadline = timePtr(deadline)
	next.DeadlineNotifiedFor = nil
	return next.touch(now), nil
}

// Confirm freezes the attendee/absentee partition. It is terminal: a second
// call is rejected rather than re-snapshotting.
func (e Event) Confirm(attendees []string, absentees []string, now time.Time) (Event, error) {
	if err := e.CheckTransition(PhaseConfirmed); err != nil {
		return Event{}, err
	}
	if e.Result == nil {
		return Event{}, domainerrors.ErrNoWinner
	}
	next := e.Clone()
	next.Phase = PhaseConfirmed
	next.Result.Attendees = append([]string{}, attendees...)
	next.Result.Absentees = append([]string{}, absentees...)
	next.Result.ConfirmedAt = timePtr(now)
	next.Deadline = nil
	next.DeadlineNotifiedFor = nil
	return next.touch(now), nil
}

// Reset returns the cohort to idle. changed is false when the event already
// was idle, in which case nothing needs to be written.
func (e Event) Reset(now time.Time) (next Event, changed bool) {
	if e.Phase == PhaseIdle {
		return e, false
	}
	next = Event{
		CohortID:    e.CohortID,
		Phase:       PhaseIdle,
		Version:     e.Version,
		OpenChatURL: e.OpenChatURL,
	}
	return next.touch(now), true
}

// SetOpenChatURL is allowed in every phase; an empty url clears the link.
func (e Event) SetOpenChatURL(url string, now time.Time) Event {
	next := e.Clone()
	next.OpenChatURL = url
	return next.touch(now)
}

// MarkDeadlineNotified records that the advisory notice for the current
// deadline went out. It changes neither the phase nor Version, so a
// moderator transition racing the notice still matches its guard.
func (e Event) MarkDeadlineNotified() (Event, bool) {
	if e.Deadline == nil {
		return e, false
	}
	if e.DeadlineNotifiedFor != nil && e.DeadlineNotifiedFor.Equal(*e.Deadline) {
		return e, false
	}
	next := e.Clone()
	next.DeadlineNotifiedFor = timePtr(*e.Deadline)
	return next, true
}

// DeadlineRemaining is informational; a negative value means the deadline passed.
func (e Event) DeadlineRemaining(now time.Time) (time.Duration, bool) {
	if e.Deadline == nil {
		return 0, false
	}
	return e.Deadline.Sub(now.UTC()), true
}

func (e Event) DeadlineExpired(now time.Time) bool {
	remaining, ok := e.DeadlineRemaining(now)
	return ok && remaining <= 0
}

func (e Event) touch(now time.Time) Event {
	e.Version++
	e.UpdatedAt = now.UTC()
	return e
}

// Clone deep-copies the slices and pointers so callers can keep the value
// outside a lock.
func (e Event) Clone() Event {
	next := e
	next.Catalog.Options = append([]Option(nil), e.Catalog.Options...)
	if e.Deadline != nil {
		next.Deadline = timePtr(*e.Deadline)
	}
	if e.DeadlineNotifiedFor != nil {
		next.DeadlineNotifiedFor = timePtr(*e.DeadlineNotifiedFor)
	}
	if e.Result != nil {
		result := *e.Result
		result.Attendees = append([]string(nil), e.Result.Attendees...)
		result.Absentees = append([]string(nil), e.Result.Absentees...)
		if e.Result.ConfirmedAt != nil {
			result.ConfirmedAt = timePtr(*e.Result.ConfirmedAt)
		}
		next.Result = &result
	}
	return next
}

func timePtr(value time.Time) *time.Time {
	utc := value.UTC()
	return &utc
}
