package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"
	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	"gathering/contexts/community-experience/socializing-service/ports"
)

var testNow = time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)

func testCatalog() entities.Catalog {
	return entities.Catalog{
		CatalogID: "cat-1",
		Options: []entities.Option{
			{OptionID: "opt-1", Date: "2025-12-06", Time: "19:00", Location: "강남"},
			{OptionID: "opt-2", Date: "2025-12-06", Time: "19:00", Location: "홍대"},
		},
	}
}

func testEnvelope(eventID string, eventType string) ports.EventEnvelope {
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       testNow,
		SourceService:    "socializing-service",
		SchemaVersion:    1,
		PartitionKeyPath: "cohort_id",
		PartitionKey:     "cohort-1",
		Data:             json.RawMessage(`{"cohort_id":"cohort-1"}`),
	}
}

func startVoting(t *testing.T, store *Store) entities.Event {
	t.Helper()
	event, err := entities.NewIdleEvent("cohort-1").StartOptionVote(testCatalog(), testNow.Add(12*time.Hour), testNow)
	if err != nil {
		t.Fatalf("start option vote: %v", err)
	}
	if err := store.ApplyEventWrite(context.Background(), ports.EventWrite{
		Event:         event,
		ExpectedPhase: entities.PhaseIdle,
		Outbox:        []ports.EventEnvelope{testEnvelope("evt-1", "socializing.phase.changed")},
	}); err != nil {
		t.Fatalf("apply write: %v", err)
	}
	return event
}

func TestApplyEventWriteGuardsPhaseAndVersion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := startVoting(t, store)

	stored, found, err := store.GetEvent(ctx, "cohort-1")
	if err != nil || !found || stored.Version != event.Version || stored.Phase != entities.PhaseOptionVote {
		t.Fatalf("unexpected stored event %+v found=%v err=%v", stored, found, err)
	}

	stale := ports.EventWrite{
		Event:         event,
		ExpectedPhase: entities.PhaseIdle,
		Outbox:        []ports.EventEnvelope{testEnvelope("evt-2", "socializing.phase.changed")},
	}
	if err := store.ApplyEventWrite(ctx, stale); !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("rejected write must not append outbox rows, got %d", len(pending))
	}
}

func TestApplyEventWriteClearsVotes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := startVoting(t, store)

	record := entities.VoteRecord{CohortID: "cohort-1", ParticipantID: "A"}.
		WithOptionVotes(testCatalog(), []string{"opt-1"}, testNow)
	guard := ports.VoteGuard{ExpectedPhase: entities.PhaseOptionVote, CatalogID: "cat-1"}
	if err := store.SaveVoteRecordWithOutbox(ctx, record, guard, testEnvelope("evt-2", "socializing.vote.cast")); err != nil {
		t.Fatalf("save vote: %v", err)
	}

	reset, changed := event.Reset(testNow)
	if !changed {
		t.Fatalf("expected reset to change the event")
	}
	if err := store.ApplyEventWrite(ctx, ports.EventWrite{
		Event:           reset,
		ExpectedPhase:   event.Phase,
		ExpectedVersion: event.Version,
		ClearVotes:      true,
	}); err != nil {
		t.Fatalf("reset write: %v", err)
	}
	records, _ := store.ListVoteRecords(ctx, "cohort-1")
	if len(records) != 0 {
		t.Fatalf("expected votes cleared, got %d", len(records))
	}
}

func TestSaveVoteRecordRejectsStaleGuard(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	startVoting(t, store)

	record := entities.VoteRecord{CohortID: "cohort-1", ParticipantID: "A"}.
		WithOptionVotes(testCatalog(), []string{"opt-2"}, testNow)
	for _, guard := range []ports.VoteGuard{
		{ExpectedPhase: entities.PhaseAttendanceCheck, CatalogID: "cat-1"},
		{ExpectedPhase: entities.PhaseOptionVote, CatalogID: "cat-old"},
	} {
		err := store.SaveVoteRecordWithOutbox(ctx, record, guard, testEnvelope("evt-9", "socializing.vote.cast"))
		if !errors.Is(err, domainerrors.ErrConcurrentUpdate) {
			t.Fatalf("guard %+v: expected concurrent update, got %v", guard, err)
		}
	}
	if _, found, _ := store.GetVoteRecord(ctx, "cohort-1", "A"); found {
		t.Fatalf("rejected vote must not be stored")
	}
}

func TestOutboxOrderingAndPublish(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, id := range []string{"evt-c", "evt-a", "evt-b"} {
		if err := store.AppendOutbox(ctx, testEnvelope(id, "socializing.vote.cast")); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := store.AppendOutbox(ctx, testEnvelope("evt-a", "socializing.vote.cast")); err != nil {
		t.Fatalf("identical re-append must be a no-op, got %v", err)
	}
	conflicting := testEnvelope("evt-a", "socializing.phase.changed")
	if err := store.AppendOutbox(ctx, conflicting); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict for different payload, got %v", err)
	}

	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 3 || pending[0].OutboxID != "evt-c" || pending[1].OutboxID != "evt-a" || pending[2].OutboxID != "evt-b" {
		t.Fatalf("expected insertion order, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "evt-c", testNow); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", testNow); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	pending, _ = store.ListPendingOutbox(ctx, 1)
	if len(pending) != 1 || pending[0].OutboxID != "evt-a" {
		t.Fatalf("unexpected pending after publish: %+v", pending)
	}
}

func TestIdempotencyRecordsExpire(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	record := ports.IdempotencyRecord{
		Key:         "key-1",
		RequestHash: "hash-1",
		ExpiresAt:   testNow.Add(time.Hour),
	}
	if err := store.PutRecord(ctx, record); err != nil {
		t.Fatalf("put record: %v", err)
	}
	if err := store.PutRecord(ctx, ports.IdempotencyRecord{Key: "key-1", RequestHash: "hash-2"}); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, found, _ := store.GetRecord(ctx, "key-1", testNow); !found {
		t.Fatalf("expected live record")
	}
	if _, found, _ := store.GetRecord(ctx, "key-1", testNow.Add(2*time.Hour)); found {
		t.Fatalf("expected expired record to be dropped")
	}
}

func TestReserveEvent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	expires := testNow.Add(time.Hour)

	if done, err := store.ReserveEvent(ctx, "evt-1", "hash", expires); err != nil || done {
		t.Fatalf("first reservation: done=%v err=%v", done, err)
	}
	if done, err := store.ReserveEvent(ctx, "evt-1", "hash", expires); err != nil || !done {
		t.Fatalf("redelivery: done=%v err=%v", done, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-1", "other", expires); !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDirectoryListsByCohort(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, participant := range []ports.Participant{
		{ParticipantID: "B", CohortID: "cohort-1", Name: "Bo"},
		{ParticipantID: "A", CohortID: "cohort-1", Name: "Ana"},
		{ParticipantID: "Z", CohortID: "cohort-2", Name: "Zed"},
	} {
		if err := store.PutParticipant(ctx, participant); err != nil {
			t.Fatalf("put participant: %v", err)
		}
	}
	items, _ := store.ListParticipants(ctx, "cohort-1")
	if len(items) != 2 || items[0].ParticipantID != "A" || items[1].ParticipantID != "B" {
		t.Fatalf("unexpected cohort listing: %+v", items)
	}
	if _, found, _ := store.GetParticipant(ctx, "Z"); !found {
		t.Fatalf("expected Z in directory")
	}
	if err := store.PutParticipant(ctx, ports.Participant{ParticipantID: " "}); !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
		t.Fatalf("expected invalid input for blank id, got %v", err)
	}
}

func TestRecordDeadlineNoticeMatchesDeadline(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := startVoting(t, store)

	recorded, err := store.RecordDeadlineNotice(ctx, "cohort-1", testNow.Add(time.Hour), testEnvelope("evt-2", "socializing.deadline.passed"))
	if err != nil || recorded {
		t.Fatalf("moved deadline must not be noticed: recorded=%v err=%v", recorded, err)
	}
	recorded, err = store.RecordDeadlineNotice(ctx, "cohort-1", *event.Deadline, testEnvelope("evt-2", "socializing.deadline.passed"))
	if err != nil || !recorded {
		t.Fatalf("expected notice to be recorded: recorded=%v err=%v", recorded, err)
	}
	recorded, err = store.RecordDeadlineNotice(ctx, "cohort-1", *event.Deadline, testEnvelope("evt-3", "socializing.deadline.passed"))
	if err != nil || recorded {
		t.Fatalf("second notice for the same deadline: recorded=%v err=%v", recorded, err)
	}

	stored, _, _ := store.GetEvent(ctx, "cohort-1")
	if stored.Version != event.Version {
		t.Fatalf("notice bumped version %d -> %d", event.Version, stored.Version)
	}
	if stored.DeadlineNotifiedFor == nil || !stored.DeadlineNotifiedFor.Equal(*event.Deadline) {
		t.Fatalf("unexpected notice marker %v", stored.DeadlineNotifiedFor)
	}
	pending, _ := store.ListPendingOutbox(ctx, 10)
	if len(pending) != 2 || pending[1].OutboxID != "evt-2" {
		t.Fatalf("expected phase row then one notice row, got %+v", pending)
	}
}
