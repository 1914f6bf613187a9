package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// createIfAbsent inserts row unless column already holds its key.
func createIfAbsent(tx *gorm.DB, row any, column string) (bool, error) {
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		DoNothing: true,
	}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetRecord drops an expired key on read so the next command with it runs
// fresh.
func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	key = strings.TrimSpace(key)
	var row idempotencyModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ports.IdempotencyRecord{}, false, nil
	case err != nil:
		return ports.IdempotencyRecord{}, false, r.logError("socializing_repo_idempotency_get_failed", err, "idempotency_key", key)
	}

	if !row.ExpiresAt.IsZero() && !row.ExpiresAt.After(now.UTC()) {
		if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("socializing_repo_idempotency_expire_failed", err, "idempotency_key", key)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

// PutRecord keeps the first response stored under a key. A second put with a
// different request hash is a conflict.
func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     strings.TrimSpace(record.RequestHash),
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	tx := r.db.WithContext(ctx)
	created, err := createIfAbsent(tx, &row, "key")
	if err != nil {
		return r.logError("socializing_repo_idempotency_put_failed", err, "idempotency_key", row.Key)
	}
	if created {
		return nil
	}

	var stored idempotencyModel
	if err := tx.Select("request_hash").Where("key = ?", row.Key).First(&stored).Error; err != nil {
		return r.logError("socializing_repo_idempotency_put_failed", err, "idempotency_key", row.Key)
	}
	if stored.RequestHash != row.RequestHash {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

// ReserveEvent reports true when eventID was already consumed with the same
// payload hash.
func (r *Repository) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	tx := r.db.WithContext(ctx)
	created, err := createIfAbsent(tx, &row, "event_id")
	if err != nil {
		return false, r.logError("socializing_repo_reserve_event_failed", err, "event_id", row.EventID)
	}
	if created {
		return false, nil
	}

	var stored eventDedupModel
	if err := tx.Select("payload_hash").Where("event_id = ?", row.EventID).First(&stored).Error; err != nil {
		return false, r.logError("socializing_repo_reserve_event_failed", err, "event_id", row.EventID)
	}
	if stored.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrIdempotencyConflict
	}
	return true, nil
}
