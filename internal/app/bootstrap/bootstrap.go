package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	socializingservice "gathering/contexts/community-experience/socializing-service"
	"gathering/contexts/community-experience/socializing-service/adapters/live"
	"gathering/contexts/community-experience/socializing-service/adapters/memory"
	"gathering/contexts/community-experience/socializing-service/adapters/notify"
	postgresadapter "gathering/contexts/community-experience/socializing-service/adapters/postgres"
	workerapp "gathering/contexts/community-experience/socializing-service/application/workers"
	"gathering/contexts/community-experience/socializing-service/ports"
	"gathering/internal/platform/config"
	"gathering/internal/platform/db"
	"gathering/internal/platform/httpserver"
	"gathering/internal/platform/messaging"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	relayPollInterval = 2 * time.Second
	shutdownTimeout   = 10 * time.Second
	dedupTTL          = 7 * 24 * time.Hour
)

// Options carry command-line overrides on top of loaded config.
type Options struct {
	ConfigFile string
	Addr       string
}

type APIApp struct {
	server      *httpserver.Server
	module      socializingservice.Module
	postgres    *db.Postgres
	outboxRelay workerapp.OutboxRelay
	broadcaster workerapp.TallyBroadcaster
	logger      *slog.Logger
}

// WorkerApp runs the deadline watcher only. The bus is in-process, so the API
// is the single outbox relay; a second relay here would mark rows published
// into a bus nobody subscribes to.
type WorkerApp struct {
	postgres *db.Postgres
	watcher  workerapp.DeadlineWatcher
	schedule string
	logger   *slog.Logger
}

// storage is the set of ports one backing store satisfies.
type storage interface {
	ports.EventRepository
	ports.VoteLedger
	ports.ParticipantDirectory
	ports.IdempotencyStore
	ports.OutboxRepository
	ports.EventDedupStore
	ports.Clock
	ports.IDGenerator
}

type postgresStorage struct {
	*postgresadapter.Repository
	postgresadapter.SystemClock
	postgresadapter.UUIDGenerator
}

func BuildAPI(opts Options) (*APIApp, error) {
	cfg, err := config.LoadFrom(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")

	var (
		pg    *db.Postgres
		store storage
	)
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN not set, using in-memory storage",
			"event", "bootstrap_in_memory_storage",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		store = memory.NewStore()
	} else {
		pg, err = db.Connect(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		store = postgresStorage{Repository: postgresadapter.NewRepository(pg.DB, logger)}
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		if pg != nil {
			err = errors.Join(err, pg.Close())
		}
		return nil, err
	}

	addr := opts.Addr
	if strings.TrimSpace(addr) == "" {
		addr = cfg.HTTPPort
	}
	return newAPIApp(cfg, store, pg, kafka, normalizeAddr(addr), logger), nil
}

func newAPIApp(
	cfg config.Config,
	store storage,
	pg *db.Postgres,
	bus *messaging.Kafka,
	addr string,
	logger *slog.Logger,
) *APIApp {
	hub := live.NewHub(logger)
	module := socializingservice.NewModule(socializingservice.Dependencies{
		Events:               store,
		Votes:                store,
		Directory:            store,
		EnforceMembership:    cfg.Socializing.EnforceMembership,
		Idempotency:          store,
		Clock:                store,
		IDGen:                store,
		Hub:                  hub,
		Timezone:             cfg.Socializing.Timezone,
		DefaultDeadlineHours: cfg.Socializing.DefaultDeadlineHours,
		IdempotencyTTL:       cfg.Socializing.IdempotencyTTL,
		Logger:               logger,
	})

	return &APIApp{
		server:   httpserver.New(module, logger, addr),
		module:   module,
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    store,
			Publisher: bus,
			Clock:     store,
			BatchSize: 100,
			Logger:    logger,
		},
		broadcaster: workerapp.TallyBroadcaster{
			Subscriber: bus,
			Dedup:      store,
			Source:     module.Tally,
			Feed:       hub,
			Clock:      store,
			DedupTTL:   dedupTTL,
			Disabled:   !cfg.Socializing.EnableTallyBroadcast,
			Logger:     logger,
		},
		logger: logger,
	}
}

func BuildWorker(opts Options) (*WorkerApp, error) {
	cfg, err := config.LoadFrom(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	return newWorkerApp(cfg, repo, postgresadapter.SystemClock{}, postgresadapter.UUIDGenerator{}, pg, logger), nil
}

func newWorkerApp(
	cfg config.Config,
	events ports.EventRepository,
	clock ports.Clock,
	ids ports.IDGenerator,
	pg *db.Postgres,
	logger *slog.Logger,
) *WorkerApp {
	return &WorkerApp{
		postgres: pg,
		watcher: workerapp.DeadlineWatcher{
			Events:    events,
			Notifier:  notify.LogNotifier{Logger: logger},
			Clock:     clock,
			IDGen:     ids,
			BatchSize: 100,
			Disabled:  !cfg.Socializing.EnableDeadlineWatcher,
			Logger:    logger,
		},
		schedule: cfg.Socializing.DeadlineCron,
		logger:   logger,
	}
}

// Migrate applies the socializing schema and exits.
func Migrate(ctx context.Context, opts Options, dryRun bool) error {
	cfg, err := config.LoadFrom(opts.ConfigFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "migrate")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(cfg.PostgresDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = pg.Close()
	}()

	if err := postgresadapter.Migrate(ctx, pg.DB, dryRun); err != nil {
		return err
	}
	logger.Info("schema migrated",
		"event", "bootstrap_migrate_completed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"dry_run", dryRun,
	)
	return nil
}

// Run serves HTTP and relays the outbox into the in-process bus so the tally
// broadcaster can push to stream subscribers.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		if err := a.broadcaster.Start(ctx); err != nil {
			return err
		}
		return relayLoop(ctx, a.outboxRelay, relayPollInterval)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	scheduler := cron.New()
	if !w.watcher.Disabled {
		if _, err := scheduler.AddFunc(w.schedule, func() {
			if err := w.watcher.RunOnce(ctx); err != nil {
				w.logger.Error("deadline watcher run failed",
					"event", "bootstrap_deadline_watcher_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"deadline_schedule", w.schedule,
	)

	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func relayLoop(ctx context.Context, relay workerapp.OutboxRelay, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := relay.RunOnce(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
