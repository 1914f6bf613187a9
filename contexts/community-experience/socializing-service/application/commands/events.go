package commands

import (
	"encoding/json"
	"time"

	"gathering/contexts/community-experience/socializing-service/ports"
)

const (
	EventPhaseChanged    = "socializing.phase.changed"
	EventVoteCast        = "socializing.vote.cast"
	EventOpenChatUpdated = "socializing.open_chat.updated"
)

func newSocializingEnvelope(
	eventID string,
	eventType string,
	cohortID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Everything is cohort-scoped, so the cohort id keeps per-cohort ordering.
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
