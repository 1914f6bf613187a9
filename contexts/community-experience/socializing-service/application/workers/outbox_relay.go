package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/ports"
)

// OutboxRelay publishes persisted outbox records to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes one bounded batch and marks a row published only after
// the publish call returned. The first failure ends the cycle; rows already
// published may be delivered again next cycle, which consumers dedupe.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("socializing outbox list failed",
			"event", "socializing_outbox_list_failed",
			"module", "community-experience/socializing-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("socializing outbox relay found no pending rows",
			"event", "socializing_outbox_relay_noop",
			"module", "community-experience/socializing-service",
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("socializing outbox decode failed",
				"event", "socializing_outbox_decode_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("socializing outbox publish failed",
				"event", "socializing_outbox_publish_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("socializing outbox mark published failed",
				"event", "socializing_outbox_mark_published_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("socializing outbox relay cycle completed",
		"event", "socializing_outbox_relay_completed",
		"module", "community-experience/socializing-service",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
