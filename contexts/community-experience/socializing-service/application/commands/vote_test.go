package commands

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
)

func TestCastOptionVoteReplacesSelection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)

	f.castOptions(t, "A", "opt-3", "opt-1")
	f.castOptions(t, "A", "opt-2")

	record, found, err := f.store.GetVoteRecord(ctx, "cohort-1", "A")
	if err != nil || !found {
		t.Fatalf("expected stored record, found=%v err=%v", found, err)
	}
	if !reflect.DeepEqual(record.OptionIDs, []string{"opt-2"}) {
		t.Fatalf("expected last write to win, got %v", record.OptionIDs)
	}
}

func TestCantAttendAndOptionVoteAreExclusive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")

	result, err := f.votes.CastCantAttend(ctx, CastCantAttendCommand{CohortID: "cohort-1", ParticipantID: "A"})
	if err != nil {
		t.Fatalf("cant attend: %v", err)
	}
	if !result.Record.CantAttend || len(result.Record.OptionIDs) != 0 {
		t.Fatalf("expected option votes cleared, got %+v", result.Record)
	}

	f.castOptions(t, "A", "opt-2")
	record, _, _ := f.store.GetVoteRecord(ctx, "cohort-1", "A")
	if record.CantAttend {
		t.Fatalf("expected cant attend cleared by option vote")
	}
}

func TestCastOptionVoteValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.votes.CastOptionVote(ctx, CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: "A", OptionIDs: []string{"opt-1"}})
	if !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected voting closed while idle, got %v", err)
	}

	f.startScenarioVote(t)
	_, err = f.votes.CastOptionVote(ctx, CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: "A", OptionIDs: []string{"opt-1", "opt-7"}})
	if !errors.Is(err, domainerrors.ErrUnknownOption) {
		t.Fatalf("expected unknown option, got %v", err)
	}
	if _, found, _ := f.store.GetVoteRecord(ctx, "cohort-1", "A"); found {
		t.Fatalf("rejected vote must not be stored")
	}
	_, err = f.votes.CastOptionVote(ctx, CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: " ", OptionIDs: []string{"opt-1"}})
	if !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected invalid vote input, got %v", err)
	}
}

func TestAttendanceVoteOnlyDuringAttendanceCheck(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")

	_, err := f.votes.CastAttendanceVote(ctx, CastAttendanceVoteCommand{CohortID: "cohort-1", ParticipantID: "A", Value: entities.AttendanceAttending})
	if !errors.Is(err, domainerrors.ErrAttendanceClosed) {
		t.Fatalf("expected attendance closed, got %v", err)
	}

	if _, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	_, err = f.votes.CastAttendanceVote(ctx, CastAttendanceVoteCommand{CohortID: "cohort-1", ParticipantID: "A", Value: "maybe"})
	if !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected invalid value, got %v", err)
	}
	if _, err := f.votes.CastCantAttend(ctx, CastCantAttendCommand{CohortID: "cohort-1", ParticipantID: "A"}); !errors.Is(err, domainerrors.ErrVotingClosed) {
		t.Fatalf("expected option voting closed, got %v", err)
	}

	f.castAttendance(t, "A", entities.AttendanceAttending)
	record, _, _ := f.store.GetVoteRecord(ctx, "cohort-1", "A")
	if record.Attendance != entities.AttendanceAttending || !reflect.DeepEqual(record.OptionIDs, []string{"opt-1"}) {
		t.Fatalf("expected attendance with retained option history, got %+v", record)
	}
}

func TestAttendanceEditsAfterConfirmDoNotChangeSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	f.castOptions(t, "A", "opt-1")
	f.castOptions(t, "B", "opt-1")
	if _, err := f.phases.StartAttendanceCheck(ctx, StartAttendanceCheckCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	f.castAttendance(t, "A", entities.AttendanceAttending)
	if _, err := f.phases.ConfirmEvent(ctx, ConfirmEventCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := f.votes.CastAttendanceVote(ctx, CastAttendanceVoteCommand{CohortID: "cohort-1", ParticipantID: "B", Value: entities.AttendanceAttending})
	if !errors.Is(err, domainerrors.ErrAttendanceClosed) {
		t.Fatalf("expected attendance closed after confirm, got %v", err)
	}
	event, _, _ := f.store.GetEvent(ctx, "cohort-1")
	if !reflect.DeepEqual(event.Result.Attendees, []string{"A"}) || len(event.Result.Absentees) != 0 {
		t.Fatalf("snapshot changed: %+v", event.Result)
	}
}

func TestVoteRacingTransitionIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)

	f.votes.Events = frozenEvents{EventRepository: f.store, event: mustEvent(t, f)}
	if _, err := f.phases.ResetEvent(ctx, ResetEventCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("reset: %v", err)
	}

	_, err := f.votes.CastOptionVote(ctx, CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: "A", OptionIDs: []string{"opt-1"}})
	if !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
}

func TestMembershipIsCheckedWhenDirectoryIsWired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.startScenarioVote(t)
	if err := f.store.PutParticipant(ctx, ports.Participant{ParticipantID: "A", CohortID: "cohort-1", Name: "Ana"}); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	if err := f.store.PutParticipant(ctx, ports.Participant{ParticipantID: "X", CohortID: "cohort-2"}); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	f.votes.Directory = f.store

	f.castOptions(t, "A", "opt-1")
	for _, participantID := range []string{"X", "ghost"} {
		_, err := f.votes.CastOptionVote(ctx, CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: participantID, OptionIDs: []string{"opt-1"}})
		if !errors.Is(err, domainerrors.ErrParticipantNotFound) {
			t.Fatalf("%s: expected participant not found, got %v", participantID, err)
		}
	}
}

// frozenEvents keeps returning the event as it was before a concurrent write.
type frozenEvents struct {
	ports.EventRepository
	event entities.Event
}

func (f frozenEvents) GetEvent(context.Context, string) (entities.Event, bool, error) {
	return f.event.Clone(), true, nil
}

func mustEvent(t *testing.T, f fixture) entities.Event {
	t.Helper()
	event, found, err := f.store.GetEvent(context.Background(), "cohort-1")
	if err != nil || !found {
		t.Fatalf("load event: found=%v err=%v", found, err)
	}
	return event
}
