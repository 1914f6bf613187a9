package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"

	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// appendOutbox writes through tx so transition and vote writes commit their
// rows together. Re-appending an identical envelope is a no-op.
func (r *Repository) appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	if err := envelope.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("socializing_repo_outbox_encode_failed", err, "event_id", envelope.EventID)
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    createdAt,
	}

	created, err := createIfAbsent(tx, &row, "outbox_id")
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIdempotencyConflict
		}
		return r.logError("socializing_repo_outbox_insert_failed", err, "outbox_id", row.OutboxID)
	}
	if created {
		return nil
	}

	var stored outboxModel
	if err := tx.Select("payload").Where("outbox_id = ?", row.OutboxID).First(&stored).Error; err != nil {
		return r.logError("socializing_repo_outbox_insert_failed", err, "outbox_id", row.OutboxID)
	}
	if !bytes.Equal(stored.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

// ListPendingOutbox returns rows in commit order. seq is a bigserial, so rows
// written in the same millisecond still come out in insertion order.
func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("socializing_repo_outbox_list_failed", err, "limit", limit)
	}
	messages := make([]ports.OutboxMessage, len(rows))
	for i, row := range rows {
		messages[i] = ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		}
	}
	return messages, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("socializing_repo_outbox_mark_failed", result.Error, "outbox_id", outboxID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}
