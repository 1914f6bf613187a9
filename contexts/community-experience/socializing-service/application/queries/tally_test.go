package queries

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gathering/contexts/community-experience/socializing-service/adapters/memory"
	"gathering/contexts/community-experience/socializing-service/application/commands"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	next int
}

func (g *sequenceIDs) NewID(_ context.Context) (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

type fixture struct {
	store  *memory.Store
	clock  *fixedClock
	phases commands.PhaseUseCase
	votes  commands.VoteUseCase
	tally  TallyUseCase
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)}
	ids := &sequenceIDs{}
	f := fixture{
		store:  store,
		clock:  clock,
		phases: commands.PhaseUseCase{Events: store, Votes: store, Clock: clock, IDGen: ids},
		votes:  commands.VoteUseCase{Events: store, Votes: store, Clock: clock, IDGen: ids},
		tally:  TallyUseCase{Events: store, Votes: store, Directory: store, Clock: clock},
	}
	for _, participant := range []ports.Participant{
		{ParticipantID: "A", CohortID: "cohort-1", Name: "Ana", AvatarURL: "https://cdn.example.com/a.png"},
		{ParticipantID: "B", CohortID: "cohort-1", Name: "Bo"},
	} {
		if err := store.PutParticipant(context.Background(), participant); err != nil {
			t.Fatalf("seed participant: %v", err)
		}
	}
	return f
}

func (f fixture) runScenario(t *testing.T, confirm bool) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.phases.StartOptionVote(ctx, commands.StartOptionVoteCommand{
		CohortID:  "cohort-1",
		Dates:     []string{"2025-12-06", "2025-12-07"},
		Locations: []string{"강남", "홍대"},
	}); err != nil {
		t.Fatalf("start option vote: %v", err)
	}
	for participantID, optionIDs := range map[string][]string{"A": {"opt-1", "opt-2"}, "B": {"opt-1"}} {
		if _, err := f.votes.CastOptionVote(ctx, commands.CastOptionVoteCommand{CohortID: "cohort-1", ParticipantID: participantID, OptionIDs: optionIDs}); err != nil {
			t.Fatalf("vote %s: %v", participantID, err)
		}
	}
	if _, err := f.votes.CastCantAttend(ctx, commands.CastCantAttendCommand{CohortID: "cohort-1", ParticipantID: "C"}); err != nil {
		t.Fatalf("cant attend: %v", err)
	}
	if !confirm {
		return
	}
	if _, err := f.phases.StartAttendanceCheck(ctx, commands.StartAttendanceCheckCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("start attendance check: %v", err)
	}
	for participantID, value := range map[string]entities.AttendanceVote{"A": entities.AttendanceAttending, "B": entities.AttendanceNotAttending} {
		if _, err := f.votes.CastAttendanceVote(ctx, commands.CastAttendanceVoteCommand{CohortID: "cohort-1", ParticipantID: participantID, Value: value}); err != nil {
			t.Fatalf("attendance %s: %v", participantID, err)
		}
	}
	if _, err := f.phases.ConfirmEvent(ctx, commands.ConfirmEventCommand{CohortID: "cohort-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

func TestGetTallyResolvesWinnerAndVoters(t *testing.T) {
	f := newFixture(t)
	f.runScenario(t, false)

	view, err := f.tally.GetTally(context.Background(), "cohort-1")
	if err != nil {
		t.Fatalf("get tally: %v", err)
	}
	if view.Winner == nil || view.Winner.Option.OptionID != "opt-1" || view.Winner.Count != 2 {
		t.Fatalf("unexpected winner: %+v", view.Winner)
	}
	if view.Tally.TotalVoters != 3 || view.Tally.CantAttendCount != 1 {
		t.Fatalf("unexpected tally: %+v", view.Tally)
	}
	if view.Ranked[0].OptionID != "opt-1" || view.Ranked[1].OptionID != "opt-2" {
		t.Fatalf("unexpected ranking: %+v", view.Ranked)
	}
	if view.Participants["A"].Name != "Ana" {
		t.Fatalf("expected directory name for A, got %+v", view.Participants["A"])
	}
	if got := view.Participants["C"]; got.ParticipantID != "C" || got.Name != "" {
		t.Fatalf("expected id-only entry for unknown C, got %+v", got)
	}
}

func TestGetTallyForUnknownCohortIsIdle(t *testing.T) {
	f := newFixture(t)

	view, err := f.tally.GetTally(context.Background(), "cohort-9")
	if err != nil {
		t.Fatalf("get tally: %v", err)
	}
	if view.Event.Phase != entities.PhaseIdle || view.Winner != nil || view.Tally.TotalVoters != 0 {
		t.Fatalf("unexpected idle view: %+v", view)
	}
	if _, err := f.tally.GetTally(context.Background(), " "); !errors.Is(err, domainerrors.ErrInvalidCohort) {
		t.Fatalf("expected invalid cohort, got %v", err)
	}
}

func TestGetEventStateShowsOwnVoteAndDeadline(t *testing.T) {
	f := newFixture(t)
	f.runScenario(t, false)
	f.clock.now = f.clock.now.Add(2 * time.Hour)

	view, err := f.tally.GetEventState(context.Background(), "cohort-1", "A")
	if err != nil {
		t.Fatalf("get event state: %v", err)
	}
	if view.MyVote == nil || len(view.MyVote.OptionIDs) != 2 {
		t.Fatalf("expected own vote, got %+v", view.MyVote)
	}
	if view.DeadlineRemaining == nil || *view.DeadlineRemaining != 10*time.Hour {
		t.Fatalf("unexpected remaining: %v", view.DeadlineRemaining)
	}
	if view.MyStatus != StatusNone || view.TotalVoters != 3 {
		t.Fatalf("unexpected view: %+v", view)
	}

	anonymous, err := f.tally.GetEventState(context.Background(), "cohort-1", "")
	if err != nil || anonymous.MyVote != nil {
		t.Fatalf("expected no personal vote without participant, got %+v (%v)", anonymous.MyVote, err)
	}
}

func TestGetEventStateFinalStatus(t *testing.T) {
	f := newFixture(t)
	f.runScenario(t, true)

	want := map[string]string{"A": StatusAttending, "B": StatusAbsent, "C": StatusNone}
	for participantID, status := range want {
		view, err := f.tally.GetEventState(context.Background(), "cohort-1", participantID)
		if err != nil {
			t.Fatalf("get event state %s: %v", participantID, err)
		}
		if view.MyStatus != status {
			t.Fatalf("%s: expected %s, got %s", participantID, status, view.MyStatus)
		}
		if view.DeadlineRemaining != nil {
			t.Fatalf("confirmed event must have no deadline")
		}
	}
}

func TestConfirmedResult(t *testing.T) {
	f := newFixture(t)
	f.runScenario(t, false)

	if _, err := f.tally.ConfirmedResult(context.Background(), "cohort-1"); !errors.Is(err, domainerrors.ErrResultNotConfirmed) {
		t.Fatalf("expected not confirmed, got %v", err)
	}

	f = newFixture(t)
	f.runScenario(t, true)
	view, err := f.tally.ConfirmedResult(context.Background(), "cohort-1")
	if err != nil {
		t.Fatalf("confirmed result: %v", err)
	}
	if view.Result.OptionID != "opt-1" || view.Participants["A"].Name != "Ana" || view.Participants["B"].Name != "Bo" {
		t.Fatalf("unexpected confirmed view: %+v", view)
	}
}

func TestSnapshotCarriesWinner(t *testing.T) {
	f := newFixture(t)
	f.runScenario(t, false)

	snapshot, err := f.tally.Snapshot(context.Background(), "cohort-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Winner == nil || snapshot.Winner.Option.OptionID != "opt-1" || !snapshot.ComputedAt.Equal(f.clock.now) {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}
