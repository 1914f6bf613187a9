package workers

import (
	"context"
	"log/slog"
	"time"

	application "gathering/contexts/community-experience/socializing-service/application"
	"gathering/contexts/community-experience/socializing-service/ports"
)

// DeadlineWatcher sends one advisory notice per passed deadline. It never
// moves a phase; the moderator still has to call the next step.
type DeadlineWatcher struct {
	Events    ports.EventRepository
	Notifier  ports.Notifier
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Disabled  bool
	Logger    *slog.Logger
}

func (w DeadlineWatcher) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	if w.Disabled {
		return nil
	}
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC()
	if w.Clock != nil {
		now = w.Clock.Now().UTC()
	}

	events, err := w.Events.ListEventsWithDeadlineBefore(ctx, now, limit)
	if err != nil {
		logger.Error("deadline watcher list failed",
			"event", "socializing_deadline_watcher_list_failed",
			"module", "community-experience/socializing-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	notified := 0
	for _, event := range events {
		if !event.DeadlineExpired(now) {
			continue
		}
		if _, pending := event.MarkDeadlineNotified(); !pending {
			continue
		}
		eventID, err := w.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		envelope, err := newSocializingEnvelope(eventID, deadlinePassedTopic, event.CohortID, now, map[string]any{
			"cohort_id":   event.CohortID,
			"phase":       string(event.Phase),
			"deadline":    event.Deadline.Format(time.RFC3339),
			"occurred_at": now.Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		recorded, err := w.Events.RecordDeadlineNotice(ctx, event.CohortID, *event.Deadline, envelope)
		if err != nil {
			logger.Error("deadline notice write failed",
				"event", "socializing_deadline_notice_write_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"cohort_id", event.CohortID,
				"error", err.Error(),
			)
			return err
		}
		if !recorded {
			// deadline moved or another watcher got there first
			logger.Debug("deadline notice skipped",
				"event", "socializing_deadline_notice_skipped",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"cohort_id", event.CohortID,
			)
			continue
		}
		notified++

		if w.Notifier == nil {
			continue
		}
		if err := w.Notifier.Notify(ctx, ports.Notification{
			CohortID: event.CohortID,
			Phase:    event.Phase,
			Kind:     "deadline_passed",
			Deadline: *event.Deadline,
		}); err != nil {
			logger.Warn("deadline notification failed",
				"event", "socializing_deadline_notification_failed",
				"module", "community-experience/socializing-service",
				"layer", "worker",
				"cohort_id", event.CohortID,
				"error", err.Error(),
			)
		}
	}

	if notified > 0 {
		logger.Info("deadline watcher cycle completed",
			"event", "socializing_deadline_watcher_completed",
			"module", "community-experience/socializing-service",
			"layer", "worker",
			"notified_count", notified,
		)
	}
	return nil
}
