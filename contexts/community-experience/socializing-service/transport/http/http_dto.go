package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StartOptionVoteRequest struct {
	Dates         []string `json:"dates"`
	Time          string   `json:"time,omitempty"`
	Locations     []string `json:"locations"`
	DeadlineHours int      `json:"deadline_hours,omitempty"`
}

// PinWinnerRequest clears the pin when option_id is empty.
type PinWinnerRequest struct {
	OptionID string `json:"option_id"`
}

type StartAttendanceCheckRequest struct {
	DeadlineHours    int    `json:"deadline_hours,omitempty"`
	WinnerOverrideID string `json:"winner_override_id,omitempty"`
}

// SetOpenChatURLRequest clears the link when url is null or empty.
type SetOpenChatURLRequest struct {
	URL *string `json:"url"`
}

type CastOptionVoteRequest struct {
	OptionIDs []string `json:"option_ids"`
}

type CastAttendanceVoteRequest struct {
	Value string `json:"value"`
}

type OptionResponse struct {
	OptionID string `json:"option_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

type ResultResponse struct {
	OptionID    string   `json:"option_id"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Location    string   `json:"location"`
	Pinned      bool     `json:"pinned"`
	Attendees   []string `json:"attendees"`
	Absentees   []string `json:"absentees"`
	ConfirmedAt string   `json:"confirmed_at,omitempty"`
}

type EventResponse struct {
	CohortID             string           `json:"cohort_id"`
	Phase                string           `json:"phase"`
	Version              int64            `json:"version"`
	CatalogID            string           `json:"catalog_id,omitempty"`
	Options              []OptionResponse `json:"options"`
	Deadline             string           `json:"deadline,omitempty"`
	PinnedWinnerOptionID string           `json:"pinned_winner_option_id,omitempty"`
	OpenChatURL          string           `json:"open_chat_url,omitempty"`
	Result               *ResultResponse  `json:"result,omitempty"`
	UpdatedAt            string           `json:"updated_at,omitempty"`
	Replayed             bool             `json:"replayed,omitempty"`
}

type VoteRecordResponse struct {
	ParticipantID string   `json:"participant_id"`
	OptionIDs     []string `json:"option_ids"`
	CantAttend    bool     `json:"cant_attend"`
	Attendance    string   `json:"attendance,omitempty"`
	UpdatedAt     string   `json:"updated_at"`
}

type VoteResponse struct {
	CohortID string             `json:"cohort_id"`
	Vote     VoteRecordResponse `json:"vote"`
}

type VoterResponse struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

type OptionTallyResponse struct {
	OptionResponse
	Count  int             `json:"count"`
	Voters []VoterResponse `json:"voters"`
}

type BucketResponse struct {
	Count  int             `json:"count"`
	Voters []VoterResponse `json:"voters"`
}

type WinnerResponse struct {
	OptionID string `json:"option_id"`
	Count    int    `json:"count"`
	Pinned   bool   `json:"pinned"`
}

type TallyResponse struct {
	CohortID      string                `json:"cohort_id"`
	Phase         string                `json:"phase"`
	CatalogID     string                `json:"catalog_id,omitempty"`
	Options       []OptionTallyResponse `json:"options"`
	Ranking       []string              `json:"ranking"`
	CantAttend    BucketResponse        `json:"cant_attend"`
	Attending     BucketResponse        `json:"attending"`
	NotAttending  BucketResponse        `json:"not_attending"`
	TotalVoters   int                   `json:"total_voters"`
	TotalVoterIDs []string              `json:"total_voter_ids"`
	Winner        *WinnerResponse       `json:"winner,omitempty"`
}

type EventStateResponse struct {
	Event                    EventResponse       `json:"event"`
	MyVote                   *VoteRecordResponse `json:"my_vote,omitempty"`
	MyStatus                 string              `json:"my_status"`
	DeadlineRemainingSeconds *int64              `json:"deadline_remaining_seconds,omitempty"`
	TotalVoters              int                 `json:"total_voters"`
}

// TallyStreamMessage is one server-sent event on the live stream.
type TallyStreamMessage struct {
	Event      EventResponse `json:"event"`
	Tally      TallyResponse `json:"tally"`
	ComputedAt string        `json:"computed_at"`
}
