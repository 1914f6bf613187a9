package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetEvent(ctx context.Context, cohortID string) (entities.Event, bool, error) {
	var row eventModel
	err := r.db.WithContext(ctx).
		Where("cohort_id = ?", strings.TrimSpace(cohortID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Event{}, false, nil
		}
		return entities.Event{}, false, r.logError("socializing_repo_get_event_failed", err,
			"cohort_id", strings.TrimSpace(cohortID),
		)
	}
	event, err := row.toEntity()
	if err != nil {
		return entities.Event{}, false, r.logError("socializing_repo_decode_event_failed", err,
			"cohort_id", row.CohortID,
		)
	}
	return event, true, nil
}

// ApplyEventWrite runs the guarded update, the optional vote wipe and the
// outbox append in one transaction. A cohort without a row is seeded as idle
// at version 0 first so the guard has something to match.
func (r *Repository) ApplyEventWrite(ctx context.Context, write ports.EventWrite) error {
	row, err := eventModelFromEntity(write.Event)
	if err != nil {
		return r.logError("socializing_repo_encode_event_failed", err, "cohort_id", write.Event.CohortID)
	}
	cohortID := strings.TrimSpace(row.CohortID)
	if cohortID == "" {
		return domainerrors.ErrInvalidCohort
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if write.ExpectedPhase == entities.PhaseIdle && write.ExpectedVersion == 0 {
			seed, err := eventModelFromEntity(entities.NewIdleEvent(cohortID))
			if err != nil {
				return err
			}
			seed.UpdatedAt = row.UpdatedAt
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "cohort_id"}},
				DoNothing: true,
			}).Create(&seed).Error; err != nil {
				return r.logError("socializing_repo_seed_event_failed", err, "cohort_id", cohortID)
			}
		}

		update := tx.Model(&eventModel{}).
			Where("cohort_id = ?", cohortID).
			Where("phase = ?", string(write.ExpectedPhase)).
			Where("version = ?", write.ExpectedVersion).
			Updates(map[string]any{
				"phase":                 row.Phase,
				"version":               row.Version,
				"catalog_id":            row.CatalogID,
				"catalog":               row.Catalog,
				"deadline":              row.Deadline,
				"pinned_option_id":      row.PinnedOptionID,
				"open_chat_url":         row.OpenChatURL,
				"result":                row.Result,
				"deadline_notified_for": row.DeadlineNotifiedFor,
				"updated_at":            row.UpdatedAt,
			})
		if update.Error != nil {
			return r.logError("socializing_repo_update_event_failed", update.Error,
				"cohort_id", cohortID,
				"expected_phase", string(write.ExpectedPhase),
				"expected_version", write.ExpectedVersion,
			)
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrConcurrentUpdate
		}

		if write.ClearVotes {
			if err := tx.Where("cohort_id = ?", cohortID).Delete(&voteModel{}).Error; err != nil {
				return r.logError("socializing_repo_clear_votes_failed", err, "cohort_id", cohortID)
			}
		}
		for _, envelope := range write.Outbox {
			if err := r.appendOutbox(tx, envelope); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) RecordDeadlineNotice(
	ctx context.Context,
	cohortID string,
	deadline time.Time,
	envelope ports.EventEnvelope,
) (bool, error) {
	cohortID = strings.TrimSpace(cohortID)
	recorded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&eventModel{}).
			Where("cohort_id = ?", cohortID).
			Where("deadline = ?", deadline.UTC()).
			Where("deadline_notified_for IS NULL OR deadline_notified_for <> deadline").
			Update("deadline_notified_for", deadline.UTC())
		if update.Error != nil {
			return r.logError("socializing_repo_record_notice_failed", update.Error, "cohort_id", cohortID)
		}
		if update.RowsAffected == 0 {
			return nil
		}
		recorded = true
		return r.appendOutbox(tx, envelope)
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func (r *Repository) ListEventsWithDeadlineBefore(ctx context.Context, cutoff time.Time, limit int) ([]entities.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventModel
	if err := r.db.WithContext(ctx).
		Where("deadline IS NOT NULL AND deadline <= ?", cutoff.UTC()).
		Where("deadline_notified_for IS NULL OR deadline_notified_for <> deadline").
		Order("deadline ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("socializing_repo_list_deadlines_failed", err, "limit", limit)
	}
	items := make([]entities.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEntity()
		if err != nil {
			return nil, r.logError("socializing_repo_decode_event_failed", err, "cohort_id", row.CohortID)
		}
		items = append(items, event)
	}
	return items, nil
}

func (r *Repository) GetVoteRecord(ctx context.Context, cohortID string, participantID string) (entities.VoteRecord, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("cohort_id = ?", strings.TrimSpace(cohortID)).
		Where("participant_id = ?", strings.TrimSpace(participantID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, false, nil
		}
		return entities.VoteRecord{}, false, r.logError("socializing_repo_get_vote_failed", err,
			"cohort_id", strings.TrimSpace(cohortID),
			"participant_id", strings.TrimSpace(participantID),
		)
	}
	return row.toEntity(), true, nil
}

// SaveVoteRecordWithOutbox holds a share lock on the event row while it checks
// the guard, so a concurrent transition waits for the vote to commit or sees
// it rejected.
func (r *Repository) SaveVoteRecordWithOutbox(
	ctx context.Context,
	record entities.VoteRecord,
	guard ports.VoteGuard,
	envelope ports.EventEnvelope,
) error {
	row := voteModelFromEntity(record)
	row.CohortID = strings.TrimSpace(row.CohortID)
	row.ParticipantID = strings.TrimSpace(row.ParticipantID)
	if row.CohortID == "" || row.ParticipantID == "" {
		return domainerrors.ErrInvalidVoteInput
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event eventModel
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("cohort_id", "phase", "catalog_id").
			Where("cohort_id = ?", row.CohortID).
			First(&event).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrConcurrentUpdate
			}
			return r.logError("socializing_repo_lock_event_failed", err, "cohort_id", row.CohortID)
		}
		if event.Phase != string(guard.ExpectedPhase) || event.CatalogID != guard.CatalogID {
			return domainerrors.ErrConcurrentUpdate
		}

		create := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cohort_id"}, {Name: "participant_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"catalog_id":  row.CatalogID,
				"option_ids":  row.OptionIDs,
				"cant_attend": row.CantAttend,
				"attendance":  row.Attendance,
				"updated_at":  row.UpdatedAt,
			}),
		}).Create(&row)
		if create.Error != nil {
			return r.logError("socializing_repo_save_vote_failed", create.Error,
				"cohort_id", row.CohortID,
				"participant_id", row.ParticipantID,
			)
		}
		return r.appendOutbox(tx, envelope)
	})
}

func (r *Repository) ListVoteRecords(ctx context.Context, cohortID string) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("cohort_id = ?", strings.TrimSpace(cohortID)).
		Order("participant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("socializing_repo_list_votes_failed", err,
			"cohort_id", strings.TrimSpace(cohortID),
		)
	}
	items := make([]entities.VoteRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetParticipant(ctx context.Context, participantID string) (ports.Participant, bool, error) {
	var row participantModel
	err := r.db.WithContext(ctx).
		Where("participant_id = ?", strings.TrimSpace(participantID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Participant{}, false, nil
		}
		if isUndefinedTable(err) {
			// directory projection not provisioned; treat as unknown
			return ports.Participant{}, false, nil
		}
		return ports.Participant{}, false, r.logError("socializing_repo_get_participant_failed", err,
			"participant_id", strings.TrimSpace(participantID),
		)
	}
	return row.toPort(), true, nil
}

func (r *Repository) ListParticipants(ctx context.Context, cohortID string) ([]ports.Participant, error) {
	var rows []participantModel
	if err := r.db.WithContext(ctx).
		Where("cohort_id = ?", strings.TrimSpace(cohortID)).
		Order("participant_id ASC").
		Find(&rows).Error; err != nil {
		if isUndefinedTable(err) {
			return []ports.Participant{}, nil
		}
		return nil, r.logError("socializing_repo_list_participants_failed", err,
			"cohort_id", strings.TrimSpace(cohortID),
		)
	}
	items := make([]ports.Participant, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (m participantModel) toPort() ports.Participant {
	return ports.Participant{
		ParticipantID: m.ParticipantID,
		CohortID:      m.CohortID,
		Name:          m.Name,
		AvatarURL:     m.AvatarURL,
	}
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "community-experience/socializing-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("socializing repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

var _ ports.EventRepository = (*Repository)(nil)
var _ ports.VoteLedger = (*Repository)(nil)
var _ ports.ParticipantDirectory = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
