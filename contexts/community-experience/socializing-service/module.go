package socializingservice

import (
	"context"
	"log/slog"
	"time"

	"gathering/contexts/community-experience/socializing-service/adapters/calendar"
	httpadapter "gathering/contexts/community-experience/socializing-service/adapters/http"
	"gathering/contexts/community-experience/socializing-service/adapters/live"
	"gathering/contexts/community-experience/socializing-service/adapters/memory"
	"gathering/contexts/community-experience/socializing-service/application/commands"
	"gathering/contexts/community-experience/socializing-service/application/queries"
	"gathering/contexts/community-experience/socializing-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Tally   queries.TallyUseCase
	Hub     *live.Hub
	Store   *memory.Store
}

type Dependencies struct {
	Events               ports.EventRepository
	Votes                ports.VoteLedger
	// Directory enriches tally voters with names. Votes are checked against it
	// only when EnforceMembership is set.
	Directory            ports.ParticipantDirectory
	EnforceMembership    bool
	Idempotency          ports.IdempotencyStore
	Clock                ports.Clock
	IDGen                ports.IDGenerator
	Hub                  *live.Hub
	Timezone             string
	DefaultDeadlineHours int
	IdempotencyTTL       time.Duration
	Logger               *slog.Logger
}

func NewModule(deps Dependencies) Module {
	hub := deps.Hub
	if hub == nil {
		hub = live.NewHub(deps.Logger)
	}
	var members ports.ParticipantDirectory
	if deps.EnforceMembership {
		members = deps.Directory
	}
	tally := queries.TallyUseCase{
		Events:    deps.Events,
		Votes:     deps.Votes,
		Directory: deps.Directory,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Phases: commands.PhaseUseCase{
				Events:               deps.Events,
				Votes:                deps.Votes,
				Idempotency:          deps.Idempotency,
				Clock:                deps.Clock,
				IDGen:                deps.IDGen,
				DefaultDeadlineHours: deps.DefaultDeadlineHours,
				IdempotencyTTL:       deps.IdempotencyTTL,
				Logger:               deps.Logger,
			},
			Votes: commands.VoteUseCase{
				Events:    deps.Events,
				Votes:     deps.Votes,
				Directory: members,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			Tally:    tally,
			Calendar: calendar.NewExporter(deps.Timezone),
			Live:     hub,
			Logger:   deps.Logger,
		},
		Tally: tally,
		Hub:   hub,
	}
}

// NewInMemoryModule wires every port to one memory.Store. When seed is
// non-empty, votes from participants outside the seeded directory are
// rejected.
func NewInMemoryModule(seed []ports.Participant, logger *slog.Logger) Module {
	store := memory.NewStore()
	deps := Dependencies{
		Events:            store,
		Votes:             store,
		Idempotency:       store,
		Clock:             store,
		IDGen:             store,
		Directory:         store,
		EnforceMembership: len(seed) > 0,
		IdempotencyTTL:    24 * time.Hour,
		Logger:            logger,
	}
	for _, participant := range seed {
		_ = store.PutParticipant(context.Background(), participant)
	}
	module := NewModule(deps)
	module.Store = store
	return module
}
