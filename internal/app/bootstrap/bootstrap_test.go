package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gathering/contexts/community-experience/socializing-service/adapters/memory"
	"gathering/contexts/community-experience/socializing-service/application/commands"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
	"gathering/internal/platform/config"
	"gathering/internal/platform/messaging"
)

// shiftedClock runs ahead of wall time so deadlines set through the API are
// already due for the watcher.
type shiftedClock struct {
	offset time.Duration
}

func (c shiftedClock) Now() time.Time { return time.Now().UTC().Add(c.offset) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPIApp(t *testing.T, cfg config.Config, store *memory.Store) *APIApp {
	t.Helper()
	logger := discardLogger()
	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}
	return newAPIApp(cfg, store, nil, bus, ":0", logger)
}

func startVote(t *testing.T, app *APIApp) {
	t.Helper()
	if _, err := app.module.Handler.Phases.StartOptionVote(context.Background(), commands.StartOptionVoteCommand{
		CohortID:  "cohort-1",
		ActorID:   "admin-1",
		Dates:     []string{"2030-01-05"},
		Locations: []string{"강남"},
	}); err != nil {
		t.Fatalf("start option vote: %v", err)
	}
}

func TestOutboxReachesLiveFeedThroughAPIRelayOnly(t *testing.T) {
	cfg := config.Defaults()
	store := memory.NewStore()
	api := newTestAPIApp(t, cfg, store)
	worker := newWorkerApp(cfg, store, shiftedClock{offset: 13 * time.Hour}, store, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := api.broadcaster.Start(ctx); err != nil {
		t.Fatalf("start broadcaster: %v", err)
	}
	pushes := make(chan ports.TallySnapshot, 16)
	unsubscribe := api.module.Hub.Subscribe("cohort-1", func(snapshot ports.TallySnapshot) {
		select {
		case pushes <- snapshot:
		default:
		}
	})
	defer unsubscribe()

	startVote(t, api)
	if _, err := api.module.Handler.Votes.CastOptionVote(ctx, commands.CastOptionVoteCommand{
		CohortID:      "cohort-1",
		ParticipantID: "A",
		OptionIDs:     []string{"opt-1"},
	}); err != nil {
		t.Fatalf("cast option vote: %v", err)
	}

	// the worker only writes the deadline notice; it must not drain the outbox
	if err := worker.watcher.RunOnce(ctx); err != nil {
		t.Fatalf("run watcher: %v", err)
	}
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected phase, vote and deadline rows pending, got %+v", pending)
	}

	if err := api.outboxRelay.RunOnce(ctx); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if pending, _ := store.ListPendingOutbox(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected outbox drained, got %+v", pending)
	}
	for received := 0; received < 3; received++ {
		select {
		case <-pushes:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 3 live pushes, got %d", received)
		}
	}
}

func TestMembershipEnforcementFollowsConfig(t *testing.T) {
	ctx := context.Background()
	vote := commands.CastOptionVoteCommand{
		CohortID:      "cohort-1",
		ParticipantID: "A",
		OptionIDs:     []string{"opt-1"},
	}

	open := newTestAPIApp(t, config.Defaults(), memory.NewStore())
	startVote(t, open)
	if _, err := open.module.Handler.Votes.CastOptionVote(ctx, vote); err != nil {
		t.Fatalf("empty directory must not block votes by default, got %v", err)
	}

	cfg := config.Defaults()
	cfg.Socializing.EnforceMembership = true
	store := memory.NewStore()
	enforced := newTestAPIApp(t, cfg, store)
	startVote(t, enforced)
	if _, err := enforced.module.Handler.Votes.CastOptionVote(ctx, vote); !errors.Is(err, domainerrors.ErrParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
	if err := store.PutParticipant(ctx, ports.Participant{ParticipantID: "A", CohortID: "cohort-1", Name: "Ana"}); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	if _, err := enforced.module.Handler.Votes.CastOptionVote(ctx, vote); err != nil {
		t.Fatalf("listed participant must vote, got %v", err)
	}
}
