package commands

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gathering/contexts/community-experience/socializing-service/adapters/memory"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	"gathering/contexts/community-experience/socializing-service/ports"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDs) NewID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

type fixture struct {
	store  *memory.Store
	clock  *fixedClock
	phases PhaseUseCase
	votes  VoteUseCase
}

func newFixture() fixture {
	store := memory.NewStore()
	clock := &fixedClock{now: time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)}
	ids := &sequenceIDs{}
	return fixture{
		store: store,
		clock: clock,
		phases: PhaseUseCase{
			Events:      store,
			Votes:       store,
			Idempotency: store,
			Clock:       clock,
			IDGen:       ids,
		},
		votes: VoteUseCase{
			Events: store,
			Votes:  store,
			Clock:  clock,
			IDGen:  ids,
		},
	}
}

func (f fixture) startScenarioVote(t *testing.T) entities.Event {
	t.Helper()
	result, err := f.phases.StartOptionVote(context.Background(), StartOptionVoteCommand{
		CohortID:  "cohort-1",
		ActorID:   "admin-1",
		Dates:     []string{"2025-12-06", "2025-12-07"},
		Locations: []string{"강남", "홍대"},
	})
	if err != nil {
		t.Fatalf("start option vote: %v", err)
	}
	return result.Event
}

func (f fixture) castOptions(t *testing.T, participantID string, optionIDs ...string) {
	t.Helper()
	if _, err := f.votes.CastOptionVote(context.Background(), CastOptionVoteCommand{
		CohortID:      "cohort-1",
		ParticipantID: participantID,
		OptionIDs:     optionIDs,
	}); err != nil {
		t.Fatalf("cast option vote for %s: %v", participantID, err)
	}
}

func (f fixture) castAttendance(t *testing.T, participantID string, value entities.AttendanceVote) {
	t.Helper()
	if _, err := f.votes.CastAttendanceVote(context.Background(), CastAttendanceVoteCommand{
		CohortID:      "cohort-1",
		ParticipantID: participantID,
		Value:         value,
	}); err != nil {
		t.Fatalf("cast attendance for %s: %v", participantID, err)
	}
}

func (f fixture) pendingTypes(t *testing.T) []string {
	t.Helper()
	messages, err := f.store.ListPendingOutbox(context.Background(), 1000)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	types := make([]string, 0, len(messages))
	for _, message := range messages {
		types = append(types, message.EventType)
	}
	return types
}

var _ ports.Clock = (*fixedClock)(nil)
var _ ports.IDGenerator = (*sequenceIDs)(nil)
