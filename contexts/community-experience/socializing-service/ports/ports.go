package ports

import (
	"context"
	"time"

	contractsv1 "gathering/contracts/gen/events/v1"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
)

// EventWrite is one guarded transition. Storage applies it only when the
// stored event is still at ExpectedPhase and ExpectedVersion; otherwise it
// returns domainerrors.ErrConcurrentUpdate and nothing is written.
type EventWrite struct {
	Event           entities.Event
	ExpectedPhase   entities.Phase
	ExpectedVersion int64
	// ClearVotes wipes every vote record of the cohort in the same commit.
	ClearVotes bool
	Outbox     []EventEnvelope
}

type EventRepository interface {
	GetEvent(ctx context.Context, cohortID string) (entities.Event, bool, error)
	ApplyEventWrite(ctx context.Context, write EventWrite) error
	// RecordDeadlineNotice marks deadline as noticed and appends the outbox row
	// in one commit, leaving Version alone. It reports false when the stored
	// deadline differs or was already noticed.
	RecordDeadlineNotice(ctx context.Context, cohortID string, deadline time.Time, envelope EventEnvelope) (bool, error)
	ListEventsWithDeadlineBefore(ctx context.Context, cutoff time.Time, limit int) ([]entities.Event, error)
}

// VoteGuard pins a ledger write to the phase and catalog the caller validated
// against, so a vote never lands after a concurrent reset or regeneration.
type VoteGuard struct {
	ExpectedPhase entities.Phase
	CatalogID     string
}

type VoteLedger interface {
	GetVoteRecord(ctx context.Context, cohortID string, participantID string) (entities.VoteRecord, bool, error)
	SaveVoteRecordWithOutbox(ctx context.Context, record entities.VoteRecord, guard VoteGuard, envelope EventEnvelope) error
	ListVoteRecords(ctx context.Context, cohortID string) ([]entities.VoteRecord, error)
}

type Participant struct {
	ParticipantID string
	CohortID      string
	Name          string
	AvatarURL     string
}

// ParticipantDirectory is the read side of the external profile store.
type ParticipantDirectory interface {
	GetParticipant(ctx context.Context, participantID string) (Participant, bool, error)
	ListParticipants(ctx context.Context, cohortID string) ([]Participant, error)
}

type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	PutRecord(ctx context.Context, record IdempotencyRecord) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

// Notification is an advisory message for the external notification sender.
type Notification struct {
	CohortID string
	Phase    entities.Phase
	Kind     string
	Deadline time.Time
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TallySnapshot is what live observers receive after any cohort change.
type TallySnapshot struct {
	Event      entities.Event
	Tally      entities.Tally
	Winner     *entities.Winner
	ComputedAt time.Time
}

type LiveFeed interface {
	Broadcast(cohortID string, snapshot TallySnapshot)
}
