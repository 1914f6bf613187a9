package notify

import (
	"context"
	"log/slog"

	"gathering/contexts/community-experience/socializing-service/ports"
)

// LogNotifier stands in for the external push sender; it records what would
// have been sent.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, notification ports.Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "socializing notification queued",
		"event", "socializing_notification_queued",
		"module", "community-experience/socializing-service",
		"layer", "adapter",
		"cohort_id", notification.CohortID,
		"phase", string(notification.Phase),
		"kind", notification.Kind,
		"deadline", notification.Deadline.UTC().Format("2006-01-02T15:04:05Z07:00"),
	)
	return nil
}
