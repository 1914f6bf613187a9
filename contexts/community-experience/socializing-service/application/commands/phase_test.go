package commands

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
)

func TestScenarioFromVoteToConfirmation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	event := f.startScenarioVote(t)
	if event.Phase != entities.PhaseOptionVote || len(event.Catalog.Options) != 4 {
		t.Fatalf("unexpected event after start: %+v", event)
	}
	if want := f.clock.now.Add(12 * time.Hour); event.Deadline == nil || !event.Deadline.Equal(want) {
		t.Fatalf("expected default 12h deadline, got %v", event.Deadline)
	}

	f.castOptions(t, "A", "opt-1", "opt-2")
	f.castOptions(t, "B", "opt-1")
	if _, err := f.votes.CastCantAttend(ctx, CastCantAttendCommand{CohortID: "cohort-1", ParticipantID: "C"}); err != nil {
		t.Fatalf("cant attend: %v", err)
	}

	started, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	result := started.Event.Result
	if result == nil || result.OptionID != "opt-1" || result.Date != "2025-12-06" || result.Location != "강남" || result.Pinned {
		t.Fatalf("unexpected draft result: %+v", result)
	}

	f.castAttendance(t, "A", entities.AttendanceAttending)
	f.castAttendance(t, "B", entities.AttendanceNotAttending)

	confirmed, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !reflect.DeepEqual(confirmed.Event.Result.Attendees, []string{"A"}) ||
		!reflect.DeepEqual(confirmed.Event.Result.Absentees, []string{"B"}) {
		t.Fatalf("unexpected snapshot: %+v", confirmed.Event.Result)
	}

	want := []string{
		EventPhaseChanged,
		EventVoteCast, EventVoteCast, EventVoteCast,
		EventPhaseChanged,
		EventVoteCast, EventVoteCast,
		EventPhaseChanged,
	}
	if got := f.pendingTypes(t); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected outbox sequence: %v", got)
	}
}

func TestTransitionsOutOfOrderAreConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1"}); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition from idle, got %v", err)
	}
	if _, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1"}); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition from idle, got %v", err)
	}

	f.startScenarioVote(t)
	if _, err := f.phases.StartOptionVote(ctx, StartOptionVoteCommand{CohortID: "cohort-1"}); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition before catalog validation, got %v", err)
	}
	if _, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1"}); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected confirm during option vote to fail, got %v", err)
	}
}

func TestStartOptionVoteRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.phases.StartOptionVote(ctx, StartOptionVoteCommand{CohortID: "cohort-1", Dates: []string{"2025-12-06"}})
	if !errors.Is(err, domainerrors.ErrInvalidCatalogInput) {
		t.Fatalf("expected invalid catalog input, got %v", err)
	}
	_, err = f.phases.StartOptionVote(ctx, StartOptionVoteCommand{
		CohortID:      "cohort-1",
		Dates:         []string{"2025-12-06"},
		Locations:     []string{"강남"},
		DeadlineHours: 500,
	})
	if !errors.Is(err, domainerrors.ErrInvalidDeadline) {
		t.Fatalf("expected invalid deadline, got %v", err)
	}
	if _, err := f.phases.StartOptionVote(ctx, StartOptionVoteCommand{CohortID: "  "}); !errors.Is(err, domainerrors.ErrInvalidCohort) {
		t.Fatalf("expected invalid cohort, got %v", err)
	}
	if _, found, _ := f.store.GetEvent(ctx, "cohort-1"); found {
		t.Fatalf("rejected commands must not write")
	}
}

func TestStartAttendanceCheckWithoutVotesHasNoWinner(t *testing.T) {
	f := newFixture()
	f.startScenarioVote(t)

	_, err := f.phases.StartAttendanceCheck(context.Background(), StartAttendanceCheckCommand{CohortID: "cohort-1"})
	if !errors.Is(err, domainerrors.ErrNoWinner) {
		t.Fatalf("expected no winner, got %v", err)
	}
}

func TestPinAndOverrideBeatPlurality(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")

	pinned, err := f.phases.PinWinner(ctx, PinWinnerCommand{CohortID: "cohort-1", OptionID: "opt-3"})
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	again, err := f.phases.PinWinner(ctx, PinWinnerCommand{CohortID: "cohort-1", OptionID: "opt-3"})
	if err != nil {
		t.Fatalf("repeat pin: %v", err)
	}
	if again.Event.Version != pinned.Event.Version {
		t.Fatalf("repeating the same pin must not write")
	}

	if _, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1", WinnerOverrideID: "opt-9"}); !errors.Is(err, domainerrors.ErrUnknownOption) {
		t.Fatalf("expected unknown override to fail, got %v", err)
	}

	started, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1", WinnerOverrideID: "opt-4"})
	if err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	if started.Event.Result.OptionID != "opt-4" || !started.Event.Result.Pinned {
		t.Fatalf("expected override opt-4, got %+v", started.Event.Result)
	}
	if started.Event.PinnedOptionID != "" {
		t.Fatalf("expected pin to clear when the phase advances")
	}
}

func TestResetClearsLedgerAndIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")

	reset, err := f.phases.ResetEvent(ctx, ResetEventCommand{CohortID: "cohort-1"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Event.Phase != entities.PhaseIdle || !reset.Event.Catalog.Empty() {
		t.Fatalf("unexpected reset event: %+v", reset.Event)
	}
	records, err := f.store.ListVoteRecords(ctx, "cohort-1")
	if err != nil || len(records) != 0 {
		t.Fatalf("expected ledger to be empty, got %v (%v)", records, err)
	}

	before := len(f.pendingTypes(t))
	second, err := f.phases.ResetEvent(ctx, ResetEventCommand{CohortID: "cohort-1"})
	if err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if second.Event.Version != reset.Event.Version || len(f.pendingTypes(t)) != before {
		t.Fatalf("second reset must be a no-op")
	}
}

func TestConfirmTwiceIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")
	if _, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	f.castAttendance(t, "A", entities.AttendanceAttending)
	if _, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1"}); !errors.Is(err, domainerrors.ErrIllegalTransition) {
		t.Fatalf("expected second confirm to fail, got %v", err)
	}
}

func TestIdempotentRetryReplaysOutcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	cmd := StartOptionVoteCommand{
		CohortID:       "cohort-1",
		IdempotencyKey: "retry-1",
		Dates:          []string{"2025-12-06"},
		Locations:      []string{"강남"},
	}

	first, err := f.phases.StartOptionVote(ctx, cmd)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := f.phases.StartOptionVote(ctx, cmd)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !second.Replayed || second.Event.Version != first.Event.Version || second.Event.Catalog.CatalogID != first.Event.Catalog.CatalogID {
		t.Fatalf("expected replay of first outcome, got %+v", second)
	}

	cmd.Locations = []string{"홍대"}
	if _, err := f.phases.StartOptionVote(ctx, cmd); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

type staleEvents struct {
	ports.EventRepository
}

func (staleEvents) ApplyEventWrite(context.Context, ports.EventWrite) error {
	return domainerrors.ErrConcurrentUpdate
}

func TestConcurrentTransitionLosesGuard(t *testing.T) {
	f := newFixture()
	f.phases.Events = staleEvents{EventRepository: f.store}

	_, err := f.phases.StartOptionVote(context.Background(), StartOptionVoteCommand{
		CohortID:  "cohort-1",
		Dates:     []string{"2025-12-06"},
		Locations: []string{"강남"},
	})
	if !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
}

func TestGuardedWriteRejectsStaleVersion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	event := f.startScenarioVote(t)

	reset, _ := event.Reset(f.clock.now)
	err := f.store.ApplyEventWrite(ctx, ports.EventWrite{
		Event:           reset,
		ExpectedPhase:   entities.PhaseOptionVote,
		ExpectedVersion: event.Version - 1,
	})
	if !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
		t.Fatalf("expected stale version to be rejected, got %v", err)
	}
}

func TestSetOpenChatURL(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.phases.SetOpenChatURL(ctx, SetOpenChatURLCommand{CohortID: "cohort-1", URL: "ftp://example.com"}); !errors.Is(err, domainerrors.ErrInvalidOpenChatURL) {
		t.Fatalf("expected invalid url, got %v", err)
	}
	set, err := f.phases.SetOpenChatURL(ctx, SetOpenChatURLCommand{CohortID: "cohort-1", URL: " https://open.kakao.com/o/abc "})
	if err != nil {
		t.Fatalf("set url: %v", err)
	}
	if set.Event.OpenChatURL != "https://open.kakao.com/o/abc" || set.Event.Phase != entities.PhaseIdle {
		t.Fatalf("unexpected event: %+v", set.Event)
	}
	cleared, err := f.phases.SetOpenChatURL(ctx, SetOpenChatURLCommand{CohortID: "cohort-1"})
	if err != nil || cleared.Event.OpenChatURL != "" {
		t.Fatalf("expected url to clear, got %+v (%v)", cleared.Event, err)
	}
	if got := f.pendingTypes(t); !reflect.DeepEqual(got, []string{EventOpenChatUpdated, EventOpenChatUpdated}) {
		t.Fatalf("unexpected outbox: %v", got)
	}
}
