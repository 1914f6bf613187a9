package postgresadapter

import (
	"encoding/json"
	"time"

	"gathering/contexts/community-experience/socializing-service/domain/entities"

	"gorm.io/datatypes"
)

type optionDocument struct {
	OptionID string `json:"option_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

type resultDocument struct {
	OptionID    string     `json:"option_id"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	Location    string     `json:"location"`
	Pinned      bool       `json:"pinned"`
	Attendees   []string   `json:"attendees"`
	Absentees   []string   `json:"absentees"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type eventModel struct {
	CohortID            string                              `gorm:"column:cohort_id;primaryKey"`
	Phase               string                              `gorm:"column:phase;not null"`
	Version             int64                               `gorm:"column:version;not null"`
	CatalogID           string                              `gorm:"column:catalog_id"`
	Catalog             datatypes.JSONSlice[optionDocument] `gorm:"column:catalog;type:jsonb;not null"`
	Deadline            *time.Time                          `gorm:"column:deadline;index"`
	PinnedOptionID      string                              `gorm:"column:pinned_option_id"`
	OpenChatURL         string                              `gorm:"column:open_chat_url"`
	Result              datatypes.JSON                      `gorm:"column:result;type:jsonb;not null"`
	DeadlineNotifiedFor *time.Time                          `gorm:"column:deadline_notified_for"`
	UpdatedAt           time.Time                           `gorm:"column:updated_at"`
}

func (eventModel) TableName() string {
	return "socializing_events"
}

func eventModelFromEntity(event entities.Event) (eventModel, error) {
	options := make([]optionDocument, 0, len(event.Catalog.Options))
	for _, option := range event.Catalog.Options {
		options = append(options, optionDocument{
			OptionID: option.OptionID,
			Date:     option.Date,
			Time:     option.Time,
			Location: option.Location,
		})
	}
	var result *resultDocument
	if event.Result != nil {
		result = &resultDocument{
			OptionID:    event.Result.OptionID,
			Date:        event.Result.Date,
			Time:        event.Result.Time,
			Location:    event.Result.Location,
			Pinned:      event.Result.Pinned,
			Attendees:   append([]string{}, event.Result.Attendees...),
			Absentees:   append([]string{}, event.Result.Absentees...),
			ConfirmedAt: normalizeOptionalTime(event.Result.ConfirmedAt),
		}
	}
	rawResult, err := json.Marshal(result)
	if err != nil {
		return eventModel{}, err
	}
	return eventModel{
		CohortID:            event.CohortID,
		Phase:               string(event.Phase),
		Version:             event.Version,
		CatalogID:           event.Catalog.CatalogID,
		Catalog:             datatypes.JSONSlice[optionDocument](options),
		Deadline:            normalizeOptionalTime(event.Deadline),
		PinnedOptionID:      event.PinnedOptionID,
		OpenChatURL:         event.OpenChatURL,
		Result:              datatypes.JSON(rawResult),
		DeadlineNotifiedFor: normalizeOptionalTime(event.DeadlineNotifiedFor),
		UpdatedAt:           event.UpdatedAt.UTC(),
	}, nil
}

func (m eventModel) toEntity() (entities.Event, error) {
	event := entities.Event{
		CohortID: m.CohortID,
		Phase:    entities.Phase(m.Phase),
		Version:  m.Version,
		Catalog: entities.Catalog{
			CatalogID: m.CatalogID,
		},
		Deadline:            normalizeOptionalTime(m.Deadline),
		PinnedOptionID:      m.PinnedOptionID,
		OpenChatURL:         m.OpenChatURL,
		DeadlineNotifiedFor: normalizeOptionalTime(m.DeadlineNotifiedFor),
		UpdatedAt:           m.UpdatedAt.UTC(),
	}
	for _, option := range m.Catalog {
		event.Catalog.Options = append(event.Catalog.Options, entities.Option{
			OptionID: option.OptionID,
			Date:     option.Date,
			Time:     option.Time,
			Location: option.Location,
		})
	}
	if len(m.Result) > 0 {
		var result *resultDocument
		if err := json.Unmarshal(m.Result, &result); err != nil {
			return entities.Event{}, err
		}
		if result != nil {
			event.Result = &entities.ResultRecord{
				OptionID:    result.OptionID,
				Date:        result.Date,
				Time:        result.Time,
				Location:    result.Location,
				Pinned:      result.Pinned,
				Attendees:   result.Attendees,
				Absentees:   result.Absentees,
				ConfirmedAt: normalizeOptionalTime(result.ConfirmedAt),
			}
		}
	}
	return event, nil
}

type voteModel struct {
	CohortID      string                      `gorm:"column:cohort_id;primaryKey"`
	ParticipantID string                      `gorm:"column:participant_id;primaryKey"`
	CatalogID     string                      `gorm:"column:catalog_id"`
	OptionIDs     datatypes.JSONSlice[string] `gorm:"column:option_ids;type:jsonb;not null"`
	CantAttend    bool                        `gorm:"column:cant_attend;not null"`
	Attendance    string                      `gorm:"column:attendance"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at"`
}

func (voteModel) TableName() string {
	return "socializing_votes"
}

func voteModelFromEntity(record entities.VoteRecord) voteModel {
	return voteModel{
		CohortID:      record.CohortID,
		ParticipantID: record.ParticipantID,
		CatalogID:     record.CatalogID,
		OptionIDs:     datatypes.JSONSlice[string](append([]string{}, record.OptionIDs...)),
		CantAttend:    record.CantAttend,
		Attendance:    string(record.Attendance),
		UpdatedAt:     record.UpdatedAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.VoteRecord {
	return entities.VoteRecord{
		CohortID:      m.CohortID,
		ParticipantID: m.ParticipantID,
		CatalogID:     m.CatalogID,
		OptionIDs:     append([]string(nil), m.OptionIDs...),
		CantAttend:    m.CantAttend,
		Attendance:    entities.AttendanceVote(m.Attendance),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type participantModel struct {
	ParticipantID string `gorm:"column:participant_id;primaryKey"`
	CohortID      string `gorm:"column:cohort_id;index"`
	Name          string `gorm:"column:name"`
	AvatarURL     string `gorm:"column:avatar_url"`
}

func (participantModel) TableName() string {
	return "participants"
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "socializing_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Seq          int64      `gorm:"column:seq;autoIncrement;uniqueIndex"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "socializing_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "socializing_event_dedup"
}

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&eventModel{},
		&voteModel{},
		&participantModel{},
		&idempotencyModel{},
		&outboxModel{},
		&eventDedupModel{},
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
