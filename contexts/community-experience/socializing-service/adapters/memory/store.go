package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"

	"github.com/google/uuid"
)

// Store implements every socializing port in process. The single mutex makes
// each event write and its outbox rows one atomic step, which is what the
// Postgres adapter gets from a transaction.
type Store struct {
	mu sync.RWMutex

	events       map[string]entities.Event
	votes        map[string]map[string]entities.VoteRecord
	participants map[string]ports.Participant
	idempotency  map[string]ports.IdempotencyRecord
	eventDedup   map[string]dedupRecord
	outbox       map[string]outboxRecord
	outboxSeq    int64
}

type dedupRecord struct {
	PayloadHash string
	ExpiresAt   time.Time
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Seq         int64
	Status      string
	PublishedAt *time.Time
}

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

func NewStore() *Store {
	return &Store{
		events:       make(map[string]entities.Event),
		votes:        make(map[string]map[string]entities.VoteRecord),
		participants: make(map[string]ports.Participant),
		idempotency:  make(map[string]ports.IdempotencyRecord),
		eventDedup:   make(map[string]dedupRecord),
		outbox:       make(map[string]outboxRecord),
	}
}

func (s *Store) GetEvent(_ context.Context, cohortID string) (entities.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[strings.TrimSpace(cohortID)]
	if !ok {
		return entities.Event{}, false, nil
	}
	return event.Clone(), true, nil
}

// ApplyEventWrite treats a missing cohort as idle at version 0, so the first
// transition needs no separate create step.
func (s *Store) ApplyEventWrite(_ context.Context, write ports.EventWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cohortID := strings.TrimSpace(write.Event.CohortID)
	if cohortID == "" {
		return domainerrors.ErrInvalidCohort
	}
	current, ok := s.events[cohortID]
	if !ok {
		current = entities.NewIdleEvent(cohortID)
	}
	if current.Phase != write.ExpectedPhase || current.Version != write.ExpectedVersion {
		return domainerrors.ErrConcurrentUpdate
	}

	staged := make([]outboxRecord, 0, len(write.Outbox))
	for _, envelope := range write.Outbox {
		row, err := s.stageOutboxLocked(envelope)
		if err != nil {
			return err
		}
		staged = append(staged, row)
	}

	s.events[cohortID] = write.Event.Clone()
	if write.ClearVotes {
		delete(s.votes, cohortID)
	}
	for _, row := range staged {
		s.outbox[row.Message.OutboxID] = row
	}
	return nil
}

func (s *Store) RecordDeadlineNotice(
	_ context.Context,
	cohortID string,
	deadline time.Time,
	envelope ports.EventEnvelope,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cohortID = strings.TrimSpace(cohortID)
	event, ok := s.events[cohortID]
	if !ok || event.Deadline == nil || !event.Deadline.Equal(deadline.UTC()) {
		return false, nil
	}
	next, changed := event.MarkDeadlineNotified()
	if !changed {
		return false, nil
	}
	row, err := s.stageOutboxLocked(envelope)
	if err != nil {
		return false, err
	}
	s.events[cohortID] = next
	s.outbox[row.Message.OutboxID] = row
	return true, nil
}

func (s *Store) ListEventsWithDeadlineBefore(_ context.Context, cutoff time.Time, limit int) ([]entities.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.Event, 0)
	for _, event := range s.events {
		if event.Deadline == nil || event.Deadline.After(cutoff.UTC()) {
			continue
		}
		if event.DeadlineNotifiedFor != nil && event.DeadlineNotifiedFor.Equal(*event.Deadline) {
			continue
		}
		items = append(items, event.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Deadline.Equal(*items[j].Deadline) {
			return items[i].CohortID < items[j].CohortID
		}
		return items[i].Deadline.Before(*items[j].Deadline)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetVoteRecord(_ context.Context, cohortID string, participantID string) (entities.VoteRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.votes[strings.TrimSpace(cohortID)][strings.TrimSpace(participantID)]
	if !ok {
		return entities.VoteRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

// SaveVoteRecordWithOutbox rejects the write when the event left the phase or
// catalog the caller validated against.
func (s *Store) SaveVoteRecordWithOutbox(
	_ context.Context,
	record entities.VoteRecord,
	guard ports.VoteGuard,
	envelope ports.EventEnvelope,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cohortID := strings.TrimSpace(record.CohortID)
	participantID := strings.TrimSpace(record.ParticipantID)
	if cohortID == "" || participantID == "" {
		return domainerrors.ErrInvalidVoteInput
	}
	event, ok := s.events[cohortID]
	if !ok {
		event = entities.NewIdleEvent(cohortID)
	}
	if event.Phase != guard.ExpectedPhase || event.Catalog.CatalogID != guard.CatalogID {
		return domainerrors.ErrConcurrentUpdate
	}

	row, err := s.stageOutboxLocked(envelope)
	if err != nil {
		return err
	}
	if s.votes[cohortID] == nil {
		s.votes[cohortID] = make(map[string]entities.VoteRecord)
	}
	s.votes[cohortID][participantID] = record.Clone()
	s.outbox[row.Message.OutboxID] = row
	return nil
}

func (s *Store) ListVoteRecords(_ context.Context, cohortID string) ([]entities.VoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byParticipant := s.votes[strings.TrimSpace(cohortID)]
	items := make([]entities.VoteRecord, 0, len(byParticipant))
	for _, record := range byParticipant {
		items = append(items, record.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ParticipantID < items[j].ParticipantID
	})
	return items, nil
}

// PutParticipant seeds the directory projection.
func (s *Store) PutParticipant(_ context.Context, participant ports.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(participant.ParticipantID)
	if id == "" {
		return domainerrors.ErrInvalidVoteInput
	}
	participant.ParticipantID = id
	participant.CohortID = strings.TrimSpace(participant.CohortID)
	s.participants[id] = participant
	return nil
}

func (s *Store) GetParticipant(_ context.Context, participantID string) (ports.Participant, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participant, ok := s.participants[strings.TrimSpace(participantID)]
	return participant, ok, nil
}

func (s *Store) ListParticipants(_ context.Context, cohortID string) ([]ports.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cohortID = strings.TrimSpace(cohortID)
	items := make([]ports.Participant, 0)
	for _, participant := range s.participants {
		if participant.CohortID == cohortID {
			items = append(items, participant)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ParticipantID < items[j].ParticipantID
	})
	return items, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, strings.TrimSpace(key))
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) PutRecord(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	if key == "" {
		return domainerrors.ErrIdempotencyConflict
	}
	if existing, ok := s.idempotency[key]; ok {
		if existing.RequestHash != record.RequestHash {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = record
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	if key == "" {
		return false, domainerrors.ErrNotFound
	}
	if existing, ok := s.eventDedup[key]; ok {
		if existing.PayloadHash != payloadHash {
			return false, domainerrors.ErrIdempotencyConflict
		}
		return true, nil
	}
	s.eventDedup[key] = dedupRecord{
		PayloadHash: payloadHash,
		ExpiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

// AppendOutbox seeds a standalone outbox row.
func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.stageOutboxLocked(envelope)
	if err != nil {
		return err
	}
	s.outbox[row.Message.OutboxID] = row
	return nil
}

func (s *Store) stageOutboxLocked(envelope ports.EventEnvelope) (outboxRecord, error) {
	if err := envelope.Validate(); err != nil {
		return outboxRecord{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxRecord{}, err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.Message.Payload, payload) {
			return outboxRecord{}, domainerrors.ErrIdempotencyConflict
		}
		return existing, nil
	}
	s.outboxSeq++
	return outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Seq:    s.outboxSeq,
		Status: outboxStatusPending,
	}, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Seq < rows[j].Seq
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
