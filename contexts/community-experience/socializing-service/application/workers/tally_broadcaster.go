package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/ports"
)

const defaultBroadcastCG = "socializing-tally-broadcast-cg"

// TallySource recomputes the live payload of one cohort.
type TallySource interface {
	Snapshot(ctx context.Context, cohortID string) (ports.TallySnapshot, error)
}

// TallyBroadcaster pushes a freshly computed tally to live observers after any
// ledger or event change. It is observational only; a dropped push is healed
// by the next change or the next read.
type TallyBroadcaster struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Source        TallySource
	Feed          ports.LiveFeed
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (b TallyBroadcaster) Start(ctx context.Context) error {
	logger := application.ResolveLogger(b.Logger)
	if b.Disabled {
		logger.Info("tally broadcaster disabled by feature flag",
			"event", "socializing_tally_broadcaster_disabled",
			"module", "community-experience/socializing-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(b.ConsumerGroup)
	if group == "" {
		group = defaultBroadcastCG
	}
	for _, topic := range []string{phaseChangedTopic, voteCastTopic, openChatUpdatedTopic, deadlinePassedTopic} {
		if err := b.Subscriber.Subscribe(ctx, topic, group, b.handle); err != nil {
			logger.Error("tally broadcaster subscribe failed",
				"event", "socializing_tally_broadcaster_subscribe_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"topic", topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("tally broadcaster subscriptions active",
		"event", "socializing_tally_broadcaster_started",
		"module", "community-experience/socializing-service",
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (b TallyBroadcaster) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(b.Logger)
	if b.Dedup != nil {
		alreadyProcessed, err := b.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), b.now().Add(b.dedupTTL()))
		if err != nil {
			logger.Error("tally broadcaster dedupe failed",
				"event", "socializing_tally_broadcaster_dedupe_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"event_id", event.EventID,
				"error", err.Error(),
			)
			return err
		}
		if alreadyProcessed {
			return nil
		}
	}

	cohortID := strings.TrimSpace(event.PartitionKey)
	if cohortID == "" {
		var payload struct {
			CohortID string `json:"cohort_id"`
		}
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			logger.Error("tally broadcaster payload decode failed",
				"event", "socializing_tally_broadcaster_decode_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"event_id", event.EventID,
				"error", err.Error(),
			)
			return err
		}
		cohortID = strings.TrimSpace(payload.CohortID)
	}
	if cohortID == "" {
		return nil
	}

	snapshot, err := b.Source.Snapshot(ctx, cohortID)
	if err != nil {
		logger.Error("tally broadcaster snapshot failed",
			"event", "socializing_tally_broadcaster_snapshot_failed",
			"module", "community-experience/socializing-service",
			"layer", "worker",
			"cohort_id", cohortID,
			"error", err.Error(),
		)
		return err
	}
	b.Feed.Broadcast(cohortID, snapshot)
	logger.Debug("tally broadcast delivered",
		"event", "socializing_tally_broadcast_delivered",
		"module", "community-experience/socializing-service",
		"layer", "worker",
		"cohort_id", cohortID,
		"event_type", event.EventType,
		"total_voters", snapshot.Tally.TotalVoters,
	)
	return nil
}

func (b TallyBroadcaster) now() time.Time {
	now := time.Now().UTC()
	if b.Clock != nil {
		now = b.Clock.Now().UTC()
	}
	return now
}

func (b TallyBroadcaster) dedupTTL() time.Duration {
	if b.DedupTTL <= 0 {
		return 24 * time.Hour
	}
	return b.DedupTTL
}
