package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/domain/services"
	"gathering/contexts/community-experience/socializing-service/ports"
)

const defaultDeadlineHours = 12

// StartOptionVoteCommand builds a fresh catalog from the date and location
// selections. DeadlineHours of 0 uses the configured default.
type StartOptionVoteCommand struct {
	CohortID       string
	ActorID        string
	IdempotencyKey string
	Dates          []string
	Time           string
	Locations      []string
	DeadlineHours  int
}

// PinWinnerCommand sets the moderator override. An empty OptionID clears it.
type PinWinnerCommand struct {
	CohortID       string
	ActorID        string
	IdempotencyKey string
	OptionID       string
}

// StartAttendanceCheckCommand closes option voting. WinnerOverrideID, when
// set, must name a catalog option and wins over pin and plurality.
type StartAttendanceCheckCommand struct {
	CohortID         string
	ActorID          string
	IdempotencyKey   string
	DeadlineHours    int
	WinnerOverrideID string
}

// ConfirmEventCommand freezes the result of an attendance check.
type ConfirmEventCommand struct {
	CohortID       string
	ActorID        string
	IdempotencyKey string
}

// ResetEventCommand returns the cohort to idle from any phase.
type ResetEventCommand struct {
	CohortID       string
	ActorID        string
	IdempotencyKey string
}

// SetOpenChatURLCommand stores the chat link. An empty URL clears it.
type SetOpenChatURLCommand struct {
	CohortID       string
	ActorID        string
	IdempotencyKey string
	URL            string
}

// PhaseResult is the event after the command. Replayed is set when an
// idempotency key matched an earlier identical request.
type PhaseResult struct {
	Event    entities.Event
	Replayed bool
}

// PhaseUseCase drives the moderator side of the workflow. Every write is a
// single guarded EventWrite keyed on the phase and version that were read, so
// two racing moderators cannot both apply the same step.
type PhaseUseCase struct {
	Events               ports.EventRepository
	Votes                ports.VoteLedger
	Idempotency          ports.IdempotencyStore
	Clock                ports.Clock
	IDGen                ports.IDGenerator
	DefaultDeadlineHours int
	IdempotencyTTL       time.Duration
	Logger               *slog.Logger
}

// plannedWrite is what one moderator step wants persisted. A zero-value plan
// with skip set means the command is a no-op against the current state.
type plannedWrite struct {
	next       entities.Event
	eventType  string
	clearVotes bool
	skip       bool
	data       map[string]any
}

// StartOptionVote moves an idle cohort into option voting and clears every
// vote record in the same write.
func (uc PhaseUseCase) StartOptionVote(ctx context.Context, cmd StartOptionVoteCommand) (PhaseResult, error) {
	hash := hashCommand("start_option_vote", cmd.CohortID, map[string]any{
		"dates":          trimAll(cmd.Dates),
		"time":           strings.TrimSpace(cmd.Time),
		"locations":      trimAll(cmd.Locations),
		"deadline_hours": cmd.DeadlineHours,
	})
	return uc.execute(ctx, "start_option_vote", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(ctx context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			if err := current.CheckTransition(entities.PhaseOptionVote); err != nil {
				return plannedWrite{}, err
			}
			catalogID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return plannedWrite{}, err
			}
			catalog, err := services.BuildCatalog(catalogID, services.CatalogInput{
				Dates:     cmd.Dates,
				Time:      cmd.Time,
				Locations: cmd.Locations,
			})
			if err != nil {
				return plannedWrite{}, err
			}
			deadline, err := services.DeadlineFrom(now, uc.deadlineHours(cmd.DeadlineHours))
			if err != nil {
				return plannedWrite{}, err
			}
			next, err := current.StartOptionVote(catalog, deadline, now)
			if err != nil {
				return plannedWrite{}, err
			}
			return plannedWrite{
				next:       next,
				eventType:  EventPhaseChanged,
				clearVotes: true,
				data: map[string]any{
					"catalog_id":   catalog.CatalogID,
					"option_count": len(catalog.Options),
					"deadline":     deadline.Format(time.RFC3339),
				},
			}, nil
		})
}

// PinWinner sets or clears the moderator pin during option voting. Pinning the
// option that is already pinned writes nothing.
func (uc PhaseUseCase) PinWinner(ctx context.Context, cmd PinWinnerCommand) (PhaseResult, error) {
	optionID := strings.TrimSpace(cmd.OptionID)
	hash := hashCommand("pin_winner", cmd.CohortID, map[string]any{"option_id": optionID})
	return uc.execute(ctx, "pin_winner", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(_ context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			if current.Phase == entities.PhaseOptionVote && current.PinnedOptionID == optionID {
				return plannedWrite{skip: true}, nil
			}
			next, err := current.Pin(optionID, now)
			if err != nil {
				return plannedWrite{}, err
			}
			return plannedWrite{
				next:      next,
				eventType: EventPhaseChanged,
				data:      map[string]any{"pinned_option_id": optionID},
			}, nil
		})
}

// StartAttendanceCheck resolves the winner from the ledger as it stands now.
// A one-shot WinnerOverrideID beats a stored pin, which beats plurality.
func (uc PhaseUseCase) StartAttendanceCheck(ctx context.Context, cmd StartAttendanceCheckCommand) (PhaseResult, error) {
	overrideID := strings.TrimSpace(cmd.WinnerOverrideID)
	hash := hashCommand("start_attendance_check", cmd.CohortID, map[string]any{
		"deadline_hours":     cmd.DeadlineHours,
		"winner_override_id": overrideID,
	})
	return uc.execute(ctx, "start_attendance_check", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(ctx context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			if err := current.CheckTransition(entities.PhaseAttendanceCheck); err != nil {
				return plannedWrite{}, err
			}
			pin := current.PinnedOptionID
			if overrideID != "" {
				if !current.Catalog.Contains(overrideID) {
					return plannedWrite{}, domainerrors.ErrUnknownOption
				}
				pin = overrideID
			}
			records, err := uc.Votes.ListVoteRecords(ctx, current.CohortID)
			if err != nil {
				return plannedWrite{}, err
			}
			tally := services.ComputeTally(current.CohortID, current.Catalog, records)
			winner, ok := services.ResolveWinner(current.Catalog, tally, pin)
			if !ok {
				return plannedWrite{}, domainerrors.ErrNoWinner
			}
			deadline, err := services.DeadlineFrom(now, uc.deadlineHours(cmd.DeadlineHours))
			if err != nil {
				return plannedWrite{}, err
			}
			next, err := current.StartAttendanceCheck(winner.Option, winner.Pinned, deadline, now)
			if err != nil {
				return plannedWrite{}, err
			}
			return plannedWrite{
				next:      next,
				eventType: EventPhaseChanged,
				data: map[string]any{
					"winner_option_id": winner.Option.OptionID,
					"winner_count":     winner.Count,
					"pinned":           winner.Pinned,
					"total_voters":     tally.TotalVoters,
					"deadline":         deadline.Format(time.RFC3339),
				},
			}, nil
		})
}

// ConfirmEvent snapshots the attendance buckets. Participants who never cast
// an attendance vote land in neither list.
func (uc PhaseUseCase) ConfirmEvent(ctx context.Context, cmd ConfirmEventCommand) (PhaseResult, error) {
	hash := hashCommand("confirm_event", cmd.CohortID, nil)
	return uc.execute(ctx, "confirm_event", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(ctx context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			if err := current.CheckTransition(entities.PhaseConfirmed); err != nil {
				return plannedWrite{}, err
			}
			records, err := uc.Votes.ListVoteRecords(ctx, current.CohortID)
			if err != nil {
				return plannedWrite{}, err
			}
			tally := services.ComputeTally(current.CohortID, current.Catalog, records)
			next, err := current.Confirm(tally.AttendingVoterIDs, tally.NotAttendingVoterIDs, now)
			if err != nil {
				return plannedWrite{}, err
			}
			return plannedWrite{
				next:      next,
				eventType: EventPhaseChanged,
				data: map[string]any{
					"option_id":      next.Result.OptionID,
					"attendee_count": len(next.Result.Attendees),
					"absentee_count": len(next.Result.Absentees),
				},
			}, nil
		})
}

// ResetEvent wipes catalog, ledger, result, deadline and pin. Resetting an
// idle cohort writes nothing.
func (uc PhaseUseCase) ResetEvent(ctx context.Context, cmd ResetEventCommand) (PhaseResult, error) {
	hash := hashCommand("reset_event", cmd.CohortID, nil)
	return uc.execute(ctx, "reset_event", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(_ context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			next, changed := current.Reset(now)
			if !changed {
				return plannedWrite{skip: true}, nil
			}
			return plannedWrite{
				next:       next,
				eventType:  EventPhaseChanged,
				clearVotes: true,
			}, nil
		})
}

// SetOpenChatURL accepts http and https links or an empty value.
func (uc PhaseUseCase) SetOpenChatURL(ctx context.Context, cmd SetOpenChatURLCommand) (PhaseResult, error) {
	chatURL := strings.TrimSpace(cmd.URL)
	hash := hashCommand("set_open_chat_url", cmd.CohortID, map[string]any{"url": chatURL})
	return uc.execute(ctx, "set_open_chat_url", cmd.CohortID, cmd.ActorID, cmd.IdempotencyKey, hash,
		func(_ context.Context, current entities.Event, now time.Time) (plannedWrite, error) {
			if !validOpenChatURL(chatURL) {
				return plannedWrite{}, domainerrors.ErrInvalidOpenChatURL
			}
			if current.OpenChatURL == chatURL {
				return plannedWrite{skip: true}, nil
			}
			return plannedWrite{
				next:      current.SetOpenChatURL(chatURL, now),
				eventType: EventOpenChatUpdated,
				data:      map[string]any{"open_chat_url": chatURL},
			}, nil
		})
}

func (uc PhaseUseCase) execute(
	ctx context.Context,
	operation string,
	cohortID string,
	actorID string,
	idempotencyKey string,
	requestHash string,
	plan func(context.Context, entities.Event, time.Time) (plannedWrite, error),
) (PhaseResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	cohortID = strings.TrimSpace(cohortID)
	actorID = strings.TrimSpace(actorID)
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	logger.Info("socializing phase command started",
		"event", "socializing_"+operation+"_started",
		"module", "community-experience/socializing-service",
		"layer", "application",
		"cohort_id", cohortID,
		"actor_id", actorID,
	)
	if cohortID == "" {
		logger.Warn("socializing phase command validation failed",
			"event", "socializing_"+operation+"_validation_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"actor_id", actorID,
		)
		return PhaseResult{}, domainerrors.ErrInvalidCohort
	}

	now := uc.now()
	storageKey := ""
	if idempotencyKey != "" && uc.Idempotency != nil {
		storageKey = "socializing:" + operation + ":" + cohortID + ":" + idempotencyKey
		record, found, err := uc.Idempotency.GetRecord(ctx, storageKey, now)
		if err != nil {
			logger.Error("socializing idempotency lookup failed",
				"event", "socializing_"+operation+"_idempotency_lookup_failed",
				"module", "community-experience/socializing-service",
				"layer", "application",
				"cohort_id", cohortID,
				"error", err.Error(),
			)
			return PhaseResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				logger.Warn("socializing idempotency conflict",
					"event", "socializing_"+operation+"_idempotency_conflict",
					"module", "community-experience/socializing-service",
					"layer", "application",
					"cohort_id", cohortID,
				)
				return PhaseResult{}, domainerrors.ErrIdempotencyConflict
			}
			var replayed entities.Event
			if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
				return PhaseResult{}, err
			}
			logger.Info("socializing phase command replayed",
				"event", "socializing_"+operation+"_replayed",
				"module", "community-experience/socializing-service",
				"layer", "application",
				"cohort_id", cohortID,
				"phase", string(replayed.Phase),
			)
			return PhaseResult{Event: replayed, Replayed: true}, nil
		}
	}

	current, found, err := uc.Events.GetEvent(ctx, cohortID)
	if err != nil {
		logger.Error("socializing event load failed",
			"event", "socializing_"+operation+"_load_failed",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"error", err.Error(),
		)
		return PhaseResult{}, err
	}
	if !found {
		current = entities.NewIdleEvent(cohortID)
	}

	planned, err := plan(ctx, current, now)
	if err != nil {
		logger.Warn("socializing phase command rejected",
			"event", "socializing_"+operation+"_rejected",
			"module", "community-experience/socializing-service",
			"layer", "application",
			"cohort_id", cohortID,
			"phase", string(current.Phase),
			"error", err.Error(),
		)
		return PhaseResult{}, err
	}

	result := current
	if !planned.skip {
		envelope, err := uc.phaseEnvelope(ctx, planned, current, actorID, operation, now)
		if err != nil {
			return PhaseResult{}, err
		}
		if err := uc.Events.ApplyEventWrite(ctx, ports.EventWrite{
			Event:           planned.next,
			ExpectedPhase:   current.Phase,
			ExpectedVersion: current.Version,
			ClearVotes:      planned.clearVotes,
			Outbox:          []ports.EventEnvelope{envelope},
		}); err != nil {
			level := slog.LevelError
			if errors.Is(err, domainerrors.ErrConcurrentUpdate) {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "socializing event write failed",
				"event", "socializing_"+operation+"_write_failed",
				"module", "community-experience/socializing-service",
				"layer", "application",
				"cohort_id", cohortID,
				"expected_phase", string(current.Phase),
				"expected_version", current.Version,
				"error", err.Error(),
			)
			return PhaseResult{}, err
		}
		result = planned.next
	}

	if storageKey != "" {
		payload, err := json.Marshal(result)
		if err != nil {
			return PhaseResult{}, err
		}
		if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
			Key:             storageKey,
			RequestHash:     requestHash,
			ResponsePayload: payload,
			ExpiresAt:       now.Add(uc.resolveIdempotencyTTL()),
		}); err != nil {
			return PhaseResult{}, err
		}
	}

	logger.Info("socializing phase command completed",
		"event", "socializing_"+operation+"_completed",
		"module", "community-experience/socializing-service",
		"layer", "application",
		"cohort_id", cohortID,
		"from_phase", string(current.Phase),
		"to_phase", string(result.Phase),
		"version", result.Version,
		"noop", planned.skip,
	)
	return PhaseResult{Event: result}, nil
}

func (uc PhaseUseCase) phaseEnvelope(
	ctx context.Context,
	planned plannedWrite,
	current entities.Event,
	actorID string,
	operation string,
	now time.Time,
) (ports.EventEnvelope, error) {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	data := map[string]any{
		"cohort_id":   current.CohortID,
		"operation":   operation,
		"from_phase":  string(current.Phase),
		"to_phase":    string(planned.next.Phase),
		"version":     planned.next.Version,
		"actor_id":    actorID,
		"occurred_at": now.Format(time.RFC3339),
	}
	for key, value := range planned.data {
		data[key] = value
	}
	return newSocializingEnvelope(eventID, planned.eventType, current.CohortID, now, data)
}

func (uc PhaseUseCase) deadlineHours(hours int) int {
	if hours != 0 {
		return hours
	}
	if uc.DefaultDeadlineHours > 0 {
		return uc.DefaultDeadlineHours
	}
	return defaultDeadlineHours
}

func (uc PhaseUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc PhaseUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func validOpenChatURL(value string) bool {
	if value == "" {
		return true
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "https" || parsed.Scheme == "http") && parsed.Host != ""
}

func trimAll(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		items = append(items, strings.TrimSpace(value))
	}
	return items
}

func hashCommand(op string, cohortID string, fields map[string]any) string {
	payload := map[string]any{
		"op":        op,
		"cohort_id": strings.TrimSpace(cohortID),
	}
	for key, value := range fields {
		payload[key] = value
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
