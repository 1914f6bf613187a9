package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
)

// CastOptionVoteCommand replaces the participant's option selection. An empty
// OptionIDs withdraws the vote and the participant becomes a non-voter.
type CastOptionVoteCommand struct {
	CohortID      string
	ParticipantID string
	OptionIDs     []string
}

// CastCantAttendCommand marks the participant unavailable for every option and
// drops their option selection.
type CastCantAttendCommand struct {
	CohortID      string
	ParticipantID string
}

// CastAttendanceVoteCommand sets attending, not_attending, or "" to withdraw.
type CastAttendanceVoteCommand struct {
	CohortID      string
	ParticipantID string
	Value         entities.AttendanceVote
}

// VoteResult carries the record as stored.
type VoteResult struct {
	Record entities.VoteRecord
}

// VoteUseCase owns the participant side of the ledger. Each cast is one full
// overwrite of the participant's record, so retries are safe and different
// participants never contend.
type VoteUseCase struct {
	Events    ports.EventRepository
	Votes     ports.VoteLedger
	Directory ports.ParticipantDirectory
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastOptionVote is accepted only during option voting and only for ids of
// the current catalog. It clears cantAttend.
func (uc VoteUseCase) CastOptionVote(ctx context.Context, cmd CastOptionVoteCommand) (VoteResult, error) {
	optionIDs := trimAll(cmd.OptionIDs)
	return uc.cast(ctx, "option_vote", cmd.CohortID, cmd.ParticipantID,
		func(event entities.Event, record entities.VoteRecord, now time.Time) (entities.VoteRecord, error) {
			if event.Phase != entities.PhaseOptionVote {
				return entities.VoteRecord{}, domainerrors.ErrVotingClosed
			}
			for _, optionID := range optionIDs {
				if !event.Catalog.Contains(optionID) {
					return entities.VoteRecord{}, domainerrors.ErrUnknownOption
				}
			}
			return record.WithOptionVotes(event.Catalog, optionIDs, now), nil
		})
}

// CastCantAttend is accepted only during option voting.
func (uc VoteUseCase) CastCantAttend(ctx context.Context, cmd CastCantAttendCommand) (VoteResult, error) {
	return uc.cast(ctx, "cant_attend", cmd.CohortID, cmd.ParticipantID,
		func(event entities.Event, record entities.VoteRecord, now time.Time) (entities.VoteRecord, error) {
			if event.Phase != entities.PhaseOptionVote {
				return entities.VoteRecord{}, domainerrors.ErrVotingClosed
			}
			return record.WithCantAttend(event.Catalog, now), nil
		})
}

// CastAttendanceVote is accepted only during the attendance check and leaves
// the option selection untouched.
func (uc VoteUseCase) CastAttendanceVote(ctx context.Context, cmd CastAttendanceVoteCommand) (VoteResult, error) {
	value := entities.AttendanceVote(strings.TrimSpace(string(cmd.Value)))
	return uc.cast(ctx, "attendance", cmd.CohortID, cmd.ParticipantID,
		func(event entities.Event, record entities.VoteRecord, now time.Time) (entities.VoteRecord, error) {
			if !value.Valid() {
				return entities.VoteRecord{}, domainerrors.ErrInvalidVoteInput
			}
			if event.Phase != entities.PhaseAttendanceCheck {
				return entities.VoteRecord{}, domainerrors.ErrAttendanceClosed
			}
			return record.WithAttendance(value, event.Catalog.CatalogID, now), nil
		})
}

func (uc VoteUseCase) cast(
	ctx context.Context,
	kind string,
	cohortID string,
	participantID string,
	apply func(entities.Event, entities.VoteRecord, time.Time) (entities.VoteRecord, error),
) (VoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	cohortID = strings.TrimSpace(cohortID)
	participantID = strings.TrimSpace(participantID)
	logger.Info("socializing vote cast started",
		"event", "socializing_vote_cast_started",
		"module", "community-experience/socializing-service",
		"layer", "application",
		"cohort_id", cohortID,
		"participant_id", participantID,
		"kind", kind,
	)
	if cohortID == "" {
		return VoteResult{}, domainerrors.ErrInvalidCohort
	}
	if participantID == "" {
		logger.Warn("socializing vote cast validation failed",
			"event", "socializing_vote_cast_validation_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"kind", kind,
		)
		return VoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if err := uc.ensureMember(ctx, cohortID, participantID); err != nil {
		logger.Warn("socializing vote cast membership check failed",
			"event", "socializing_vote_cast_membership_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"participant_id", participantID,
			"error", err.Error(),
		)
		return VoteResult{}, err
	}

	event, found, err := uc.Events.GetEvent(ctx, cohortID)
	if err != nil {
		return VoteResult{}, err
	}
	if !found {
		event = entities.NewIdleEvent(cohortID)
	}
	record, found, err := uc.Votes.GetVoteRecord(ctx, cohortID, participantID)
	if err != nil {
		return VoteResult{}, err
	}
	if !found {
		record = entities.VoteRecord{CohortID: cohortID, ParticipantID: participantID}
	}

	now := uc.now()
	next, err := apply(event, record, now)
	if err != nil {
		logger.Warn("socializing vote cast rejected",
			"event", "socializing_vote_cast_rejected",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"participant_id", participantID,
			"phase", string(event.Phase),
			"kind", kind,
			"error", err.Error(),
		)
		return VoteResult{}, err
	}

	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return VoteResult{}, err
	}
	envelope, err := newSocializingEnvelope(eventID, EventVoteCast, cohortID, now, map[string]any{
		"cohort_id":      cohortID,
		"participant_id": participantID,
		"catalog_id":     next.CatalogID,
		"kind":           kind,
		"option_ids":     next.OptionIDs,
		"cant_attend":    next.CantAttend,
		"attendance":     string(next.Attendance),
		"occurred_at":    now.Format(time.RFC3339),
	})
	if err != nil {
		return VoteResult{}, err
	}
	if err := uc.Votes.SaveVoteRecordWithOutbox(ctx, next, ports.VoteGuard{
		ExpectedPhase: event.Phase,
		CatalogID:     event.Catalog.CatalogID,
	}, envelope); err != nil {
		logger.Error("socializing vote save failed",
			"event", "socializing_vote_cast_save_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"participant_id", participantID,
			"error", err.Error(),
		)
		return VoteResult{}, err
	}

	logger.Info("socializing vote cast completed",
		"event", "socializing_vote_cast_completed",
		"module", "community-experience/socializing-service",
		"layer", "application",
		"cohort_id", cohortID,
		"participant_id", participantID,
		"kind", kind,
	)
	return VoteResult{Record: next}, nil
}

// ensureMember is skipped when no directory is wired.
func (uc VoteUseCase) ensureMember(ctx context.Context, cohortID string, participantID string) error {
	if uc.Directory == nil {
		return nil
	}
	participant, found, err := uc.Directory.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if !found || strings.TrimSpace(participant.CohortID) != cohortID {
		return domainerrors.ErrParticipantNotFound
	}
	return nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
