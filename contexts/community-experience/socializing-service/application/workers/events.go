package workers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"gathering/contexts/community-experience/socializing-service/ports"
)

const (
	phaseChangedTopic    = "socializing.phase.changed"
	voteCastTopic        = "socializing.vote.cast"
	openChatUpdatedTopic = "socializing.open_chat.updated"
	deadlinePassedTopic  = "socializing.deadline.passed"
)

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func newSocializingEnvelope(
	eventID string,
	eventType string,
	cohortID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "socializing-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "cohort_id",
		PartitionKey:     cohortID,
		Data:             payload,
	}, nil
}
