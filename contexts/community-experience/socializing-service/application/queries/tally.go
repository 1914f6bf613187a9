package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/domain/services"
	"gathering/contexts/community-experience/socializing-service/ports"
)

const (
	StatusAttending = "attending"
	StatusAbsent    = "absent"
	StatusNone      = "none"
)

// TallyView is the moderator read model. Participants covers every voter id
// that appears in the tally; ids the directory does not know map to an entry
// carrying the id only.
type TallyView struct {
	Event        entities.Event
	Tally        entities.Tally
	Winner       *entities.Winner
	Ranked       []entities.OptionTally
	Participants map[string]ports.Participant
}

// EventStateView is what one participant sees.
type EventStateView struct {
	Event             entities.Event
	MyVote            *entities.VoteRecord
	MyStatus          string
	DeadlineRemaining *time.Duration
	TotalVoters       int
}

type ConfirmedView struct {
	Event        entities.Event
	Result       entities.ResultRecord
	Participants map[string]ports.Participant
}

// TallyUseCase recomputes everything from the ledger on each call.
type TallyUseCase struct {
	Events    ports.EventRepository
	Votes     ports.VoteLedger
	Directory ports.ParticipantDirectory
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc TallyUseCase) GetTally(ctx context.Context, cohortID string) (TallyView, error) {
	logger := application.ResolveLogger(uc.Logger)
	event, tally, err := uc.load(ctx, cohortID)
	if err != nil {
		logger.Error("socializing tally load failed",
			"event", "socializing_tally_load_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", strings.TrimSpace(cohortID),
			"error", err.Error(),
		)
		return TallyView{}, err
	}
	view := TallyView{
		Event:  event,
		Tally:  tally,
		Ranked: services.RankOptions(event.Catalog, tally),
	}
	if winner, ok := services.ResolveWinner(event.Catalog, tally, event.PinnedOptionID); ok {
		view.Winner = &winner
	}
	view.Participants, err = uc.resolveParticipants(ctx, event.CohortID, tallyVoterIDs(tally))
	if err != nil {
		return TallyView{}, err
	}
	logger.Debug("socializing tally computed",
		"event", "socializing_tally_computed",
		"module", "community-experience/socializing-service",
		"layer", "application",
		"cohort_id", event.CohortID,
		"phase", string(event.Phase),
		"total_voters", tally.TotalVoters,
	)
	return view, nil
}

// GetEventState includes the caller's own vote when it belongs to the current
// catalog, and the caller's final status once the gathering is confirmed.
func (uc TallyUseCase) GetEventState(ctx context.Context, cohortID string, participantID string) (EventStateView, error) {
	event, tally, err := uc.load(ctx, cohortID)
	if err != nil {
		return EventStateView{}, err
	}
	participantID = strings.TrimSpace(participantID)
	view := EventStateView{
		Event:       event,
		MyStatus:    StatusNone,
		TotalVoters: tally.TotalVoters,
	}
	if remaining, ok := event.DeadlineRemaining(uc.now()); ok {
		view.DeadlineRemaining = &remaining
	}
	if participantID == "" {
		return view, nil
	}
	record, found, err := uc.Votes.GetVoteRecord(ctx, event.CohortID, participantID)
	if err != nil {
		return EventStateView{}, err
	}
	if found && event.Catalog.CatalogID != "" && record.CatalogID == event.Catalog.CatalogID {
		view.MyVote = &record
	}
	if event.Phase == entities.PhaseConfirmed && event.Result != nil {
		view.MyStatus = finalStatus(*event.Result, participantID)
	}
	return view, nil
}

// ConfirmedResult feeds the calendar export.
func (uc TallyUseCase) ConfirmedResult(ctx context.Context, cohortID string) (ConfirmedView, error) {
	cohortID = strings.TrimSpace(cohortID)
	if cohortID == "" {
		return ConfirmedView{}, domainerrors.ErrInvalidCohort
	}
	event, found, err := uc.Events.GetEvent(ctx, cohortID)
	if err != nil {
		return ConfirmedView{}, err
	}
	if !found || event.Phase != entities.PhaseConfirmed || event.Result == nil {
		return ConfirmedView{}, domainerrors.ErrResultNotConfirmed
	}
	ids := append(append([]string{}, event.Result.Attendees...), event.Result.Absentees...)
	participants, err := uc.resolveParticipants(ctx, cohortID, ids)
	if err != nil {
		return ConfirmedView{}, err
	}
	return ConfirmedView{
		Event:        event,
		Result:       *event.Result,
		Participants: participants,
	}, nil
}

// Snapshot is the live-feed payload for one cohort.
func (uc TallyUseCase) Snapshot(ctx context.Context, cohortID string) (ports.TallySnapshot, error) {
	event, tally, err := uc.load(ctx, cohortID)
	if err != nil {
		return ports.TallySnapshot{}, err
	}
	snapshot := ports.TallySnapshot{
		Event:      event,
		Tally:      tally,
		ComputedAt: uc.now(),
	}
	if winner, ok := services.ResolveWinner(event.Catalog, tally, event.PinnedOptionID); ok {
		snapshot.Winner = &winner
	}
	return snapshot, nil
}

func (uc TallyUseCase) load(ctx context.Context, cohortID string) (entities.Event, entities.Tally, error) {
	cohortID = strings.TrimSpace(cohortID)
	if cohortID == "" {
		return entities.Event{}, entities.Tally{}, domainerrors.ErrInvalidCohort
	}
	event, found, err := uc.Events.GetEvent(ctx, cohortID)
	if err != nil {
		return entities.Event{}, entities.Tally{}, err
	}
	if !found {
		event = entities.NewIdleEvent(cohortID)
	}
	records, err := uc.Votes.ListVoteRecords(ctx, cohortID)
	if err != nil {
		return entities.Event{}, entities.Tally{}, err
	}
	return event, services.ComputeTally(cohortID, event.Catalog, records), nil
}

func (uc TallyUseCase) resolveParticipants(ctx context.Context, cohortID string, ids []string) (map[string]ports.Participant, error) {
	resolved := make(map[string]ports.Participant, len(ids))
	for _, id := range ids {
		resolved[id] = ports.Participant{ParticipantID: id, CohortID: cohortID}
	}
	if uc.Directory == nil || len(ids) == 0 {
		return resolved, nil
	}
	known, err := uc.Directory.ListParticipants(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	for _, participant := range known {
		if _, ok := resolved[participant.ParticipantID]; ok {
			resolved[participant.ParticipantID] = participant
		}
	}
	return resolved, nil
}

func (uc TallyUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func tallyVoterIDs(tally entities.Tally) []string {
	ids := append([]string{}, tally.TotalVoterIDs...)
	ids = append(ids, tally.AttendingVoterIDs...)
	return append(ids, tally.NotAttendingVoterIDs...)
}

func finalStatus(result entities.ResultRecord, participantID string) string {
	for _, id := range result.Attendees {
		if id == participantID {
			return StatusAttending
		}
	}
	for _, id := range result.Absentees {
		if id == participantID {
			return StatusAbsent
		}
	}
	return StatusNone
}
