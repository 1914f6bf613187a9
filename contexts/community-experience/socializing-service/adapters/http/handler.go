package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"gathering/contexts/community-experience/socializing-service/adapters/calendar"
	"gathering/contexts/community-experience/socializing-service/adapters/live"
	"gathering/contexts/community-experience/socializing-service/application/commands"
	"gathering/contexts/community-experience/socializing-service/application/queries"
	"gathering/contexts/community-experience/socializing-service/domain/entities"
	"gathering/contexts/community-experience/socializing-service/ports"
	httptransport "gathering/contexts/community-experience/socializing-service/transport/http"
)

type Handler struct {
	Phases   commands.PhaseUseCase
	Votes    commands.VoteUseCase
	Tally    queries.TallyUseCase
	Calendar calendar.Exporter
	Live     *live.Hub
	Logger   *slog.Logger
}

func (h Handler) StartOptionVoteHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
	req httptransport.StartOptionVoteRequest,
) (httptransport.EventResponse, error) {
	result, err := h.Phases.StartOptionVote(ctx, commands.StartOptionVoteCommand{
		CohortID:       cohortID,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
		Dates:          req.Dates,
		Time:           req.Time,
		Locations:      req.Locations,
		DeadlineHours:  req.DeadlineHours,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) PinWinnerHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
	req httptransport.PinWinnerRequest,
) (httptransport.EventResponse, error) {
	result, err := h.Phases.PinWinner(ctx, commands.PinWinnerCommand{
		CohortID:       cohortID,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
		OptionID:       req.OptionID,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) StartAttendanceCheckHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
	req httptransport.StartAttendanceCheckRequest,
) (httptransport.EventResponse, error) {
	result, err := h.Phases.StartAttendanceCheck(ctx, commands.StartAttendanceCheckCommand{
		CohortID:         cohortID,
		ActorID:          actorID,
		IdempotencyKey:   idempotencyKey,
		DeadlineHours:    req.DeadlineHours,
		WinnerOverrideID: req.WinnerOverrideID,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) ConfirmEventHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
) (httptransport.EventResponse, error) {
	result, err := h.Phases.ConfirmEvent(ctx, commands.ConfirmEventCommand{
		CohortID:       cohortID,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) ResetEventHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
) (httptransport.EventResponse, error) {
	result, err := h.Phases.ResetEvent(ctx, commands.ResetEventCommand{
		CohortID:       cohortID,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) SetOpenChatURLHandler(
	ctx context.Context,
	actorID string,
	cohortID string,
	idempotencyKey string,
	req httptransport.SetOpenChatURLRequest,
) (httptransport.EventResponse, error) {
	url := ""
	if req.URL != nil {
		url = *req.URL
	}
	result, err := h.Phases.SetOpenChatURL(ctx, commands.SetOpenChatURLCommand{
		CohortID:       cohortID,
		ActorID:        actorID,
		IdempotencyKey: idempotencyKey,
		URL:            url,
	})
	if err != nil {
		return httptransport.EventResponse{}, err
	}
	return mapPhaseResult(result), nil
}

func (h Handler) GetTallyHandler(ctx context.Context, cohortID string) (httptransport.TallyResponse, error) {
	view, err := h.Tally.GetTally(ctx, cohortID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	resp := mapTally(view.Event, view.Tally, view.Winner, view.Participants)
	resp.Ranking = make([]string, 0, len(view.Ranked))
	for _, bucket := range view.Ranked {
		resp.Ranking = append(resp.Ranking, bucket.OptionID)
	}
	return resp, nil
}

func (h Handler) GetEventStateHandler(
	ctx context.Context,
	cohortID string,
	participantID string,
) (httptransport.EventStateResponse, error) {
	view, err := h.Tally.GetEventState(ctx, cohortID, participantID)
	if err != nil {
		return httptransport.EventStateResponse{}, err
	}
	resp := httptransport.EventStateResponse{
		Event:       mapEvent(view.Event),
		MyStatus:    view.MyStatus,
		TotalVoters: view.TotalVoters,
	}
	if view.MyVote != nil {
		vote := mapVoteRecord(*view.MyVote)
		resp.MyVote = &vote
	}
	if view.DeadlineRemaining != nil {
		seconds := int64(view.DeadlineRemaining.Round(time.Second) / time.Second)
		resp.DeadlineRemainingSeconds = &seconds
	}
	return resp, nil
}

func (h Handler) CastOptionVoteHandler(
	ctx context.Context,
	participantID string,
	cohortID string,
	req httptransport.CastOptionVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastOptionVote(ctx, commands.CastOptionVoteCommand{
		CohortID:      cohortID,
		ParticipantID: participantID,
		OptionIDs:     req.OptionIDs,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVoteResult(result), nil
}

func (h Handler) CastCantAttendHandler(
	ctx context.Context,
	participantID string,
	cohortID string,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastCantAttend(ctx, commands.CastCantAttendCommand{
		CohortID:      cohortID,
		ParticipantID: participantID,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVoteResult(result), nil
}

func (h Handler) CastAttendanceVoteHandler(
	ctx context.Context,
	participantID string,
	cohortID string,
	req httptransport.CastAttendanceVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastAttendanceVote(ctx, commands.CastAttendanceVoteCommand{
		CohortID:      cohortID,
		ParticipantID: participantID,
		Value:         entities.AttendanceVote(req.Value),
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return mapVoteResult(result), nil
}

// CalendarHandler renders the confirmed gathering as text/calendar.
func (h Handler) CalendarHandler(ctx context.Context, cohortID string) (string, error) {
	view, err := h.Tally.ConfirmedResult(ctx, cohortID)
	if err != nil {
		return "", err
	}
	return h.Calendar.Render(view)
}

// SubscribeTallyHandler returns the current snapshot followed by every pushed
// one. Slow readers lose intermediate snapshots, never the latest.
func (h Handler) SubscribeTallyHandler(
	ctx context.Context,
	cohortID string,
) (<-chan httptransport.TallyStreamMessage, func(), error) {
	initial, err := h.Tally.Snapshot(ctx, cohortID)
	if err != nil {
		return nil, nil, err
	}
	messages := make(chan httptransport.TallyStreamMessage, 8)
	messages <- mapSnapshot(initial)
	if h.Live == nil {
		return messages, func() {}, nil
	}
	cancel := h.Live.Subscribe(initial.Event.CohortID, func(snapshot ports.TallySnapshot) {
		message := mapSnapshot(snapshot)
		select {
		case messages <- message:
		default:
			select {
			case <-messages:
			default:
			}
			select {
			case messages <- message:
			default:
			}
		}
	})
	return messages, cancel, nil
}

func mapPhaseResult(result commands.PhaseResult) httptransport.EventResponse {
	resp := mapEvent(result.Event)
	resp.Replayed = result.Replayed
	return resp
}

func mapEvent(event entities.Event) httptransport.EventResponse {
	resp := httptransport.EventResponse{
		CohortID:             event.CohortID,
		Phase:                string(event.Phase),
		Version:              event.Version,
		CatalogID:            event.Catalog.CatalogID,
		Options:              make([]httptransport.OptionResponse, 0, len(event.Catalog.Options)),
		PinnedWinnerOptionID: event.PinnedOptionID,
		OpenChatURL:          event.OpenChatURL,
		UpdatedAt:            formatTime(event.UpdatedAt),
	}
	for _, option := range event.Catalog.Options {
		resp.Options = append(resp.Options, mapOption(option))
	}
	if event.Deadline != nil {
		resp.Deadline = formatTime(*event.Deadline)
	}
	if event.Result != nil {
		result := httptransport.ResultResponse{
			OptionID:  event.Result.OptionID,
			Date:      event.Result.Date,
			Time:      event.Result.Time,
			Location:  event.Result.Location,
			Pinned:    event.Result.Pinned,
			Attendees: append([]string{}, event.Result.Attendees...),
			Absentees: append([]string{}, event.Result.Absentees...),
		}
		if event.Result.ConfirmedAt != nil {
			result.ConfirmedAt = formatTime(*event.Result.ConfirmedAt)
		}
		resp.Result = &result
	}
	return resp
}

func mapOption(option entities.Option) httptransport.OptionResponse {
	return httptransport.OptionResponse{
		OptionID: option.OptionID,
		Date:     option.Date,
		Time:     option.Time,
		Location: option.Location,
	}
}

func mapTally(
	event entities.Event,
	tally entities.Tally,
	winner *entities.Winner,
	participants map[string]ports.Participant,
) httptransport.TallyResponse {
	resp := httptransport.TallyResponse{
		CohortID:      event.CohortID,
		Phase:         string(event.Phase),
		CatalogID:     tally.CatalogID,
		Options:       make([]httptransport.OptionTallyResponse, 0, len(tally.Options)),
		Ranking:       []string{},
		CantAttend:    mapBucket(tally.CantAttendCount, tally.CantAttendVoterIDs, participants),
		Attending:     mapBucket(tally.AttendingCount, tally.AttendingVoterIDs, participants),
		NotAttending:  mapBucket(tally.NotAttendingCount, tally.NotAttendingVoterIDs, participants),
		TotalVoters:   tally.TotalVoters,
		TotalVoterIDs: append([]string{}, tally.TotalVoterIDs...),
	}
	for _, bucket := range tally.Options {
		option, _ := event.Catalog.Option(bucket.OptionID)
		resp.Options = append(resp.Options, httptransport.OptionTallyResponse{
			OptionResponse: mapOption(option),
			Count:          bucket.Count,
			Voters:         mapVoters(bucket.VoterIDs, participants),
		})
	}
	if winner != nil {
		resp.Winner = &httptransport.WinnerResponse{
			OptionID: winner.Option.OptionID,
			Count:    winner.Count,
			Pinned:   winner.Pinned,
		}
	}
	return resp
}

func mapBucket(count int, voterIDs []string, participants map[string]ports.Participant) httptransport.BucketResponse {
	return httptransport.BucketResponse{
		Count:  count,
		Voters: mapVoters(voterIDs, participants),
	}
}

func mapVoters(voterIDs []string, participants map[string]ports.Participant) []httptransport.VoterResponse {
	voters := make([]httptransport.VoterResponse, 0, len(voterIDs))
	for _, id := range voterIDs {
		voter := httptransport.VoterResponse{ParticipantID: id}
		if participant, ok := participants[id]; ok {
			voter.Name = participant.Name
			voter.AvatarURL = participant.AvatarURL
		}
		voters = append(voters, voter)
	}
	return voters
}

func mapSnapshot(snapshot ports.TallySnapshot) httptransport.TallyStreamMessage {
	return httptransport.TallyStreamMessage{
		Event:      mapEvent(snapshot.Event),
		Tally:      mapTally(snapshot.Event, snapshot.Tally, snapshot.Winner, nil),
		ComputedAt: formatTime(snapshot.ComputedAt),
	}
}

func mapVoteResult(result commands.VoteResult) httptransport.VoteResponse {
	return httptransport.VoteResponse{
		CohortID: result.Record.CohortID,
		Vote:     mapVoteRecord(result.Record),
	}
}

func mapVoteRecord(record entities.VoteRecord) httptransport.VoteRecordResponse {
	return httptransport.VoteRecordResponse{
		ParticipantID: record.ParticipantID,
		OptionIDs:     append([]string{}, record.OptionIDs...),
		CantAttend:    record.CantAttend,
		Attendance:    string(record.Attendance),
		UpdatedAt:     formatTime(record.UpdatedAt),
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
