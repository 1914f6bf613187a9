package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	socializingerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
	socializinghttp "gathering/contexts/community-experience/socializing-service/transport/http"
)

const (
	socializingBase      = "/api/v1/socializing/cohorts/{cohort_id}"
	streamHeartbeatEvery = 15 * time.Second
)

func (s *Server) registerSocializingRoutes() {
	s.mux.HandleFunc("POST "+socializingBase+"/option-vote", s.handleSocializingStartOptionVote)
	s.mux.HandleFunc("POST "+socializingBase+"/pin", s.handleSocializingPinWinner)
	s.mux.HandleFunc("POST "+socializingBase+"/attendance-check", s.handleSocializingStartAttendanceCheck)
	s.mux.HandleFunc("POST "+socializingBase+"/confirm", s.handleSocializingConfirm)
	s.mux.HandleFunc("POST "+socializingBase+"/reset", s.handleSocializingReset)
	s.mux.HandleFunc("PUT "+socializingBase+"/open-chat-url", s.handleSocializingSetOpenChatURL)

	s.mux.HandleFunc("GET "+socializingBase, s.handleSocializingGetEventState)
	s.mux.HandleFunc("GET "+socializingBase+"/tally", s.handleSocializingGetTally)
	s.mux.HandleFunc("GET "+socializingBase+"/stream", s.handleSocializingStream)
	s.mux.HandleFunc("GET "+socializingBase+"/event.ics", s.handleSocializingCalendar)

	s.mux.HandleFunc("PUT "+socializingBase+"/votes/options", s.handleSocializingCastOptionVote)
	s.mux.HandleFunc("PUT "+socializingBase+"/votes/cant-attend", s.handleSocializingCastCantAttend)
	s.mux.HandleFunc("PUT "+socializingBase+"/votes/attendance", s.handleSocializingCastAttendanceVote)
}

func (s *Server) handleSocializingStartOptionVote(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	var req socializinghttp.StartOptionVoteRequest
	if err := decodeSocializingBody(r, &req, false); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.StartOptionVoteHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingPinWinner(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	var req socializinghttp.PinWinnerRequest
	if err := decodeSocializingBody(r, &req, true); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.PinWinnerHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingStartAttendanceCheck(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	var req socializinghttp.StartAttendanceCheckRequest
	if err := decodeSocializingBody(r, &req, true); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.StartAttendanceCheckHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingConfirm(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	resp, err := s.socializing.Handler.ConfirmEventHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingReset(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	resp, err := s.socializing.Handler.ResetEventHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingSetOpenChatURL(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireSocializingAdmin(w, r)
	if !ok {
		return
	}
	var req socializinghttp.SetOpenChatURLRequest
	if err := decodeSocializingBody(r, &req, false); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.SetOpenChatURLHandler(
		r.Context(),
		adminID,
		r.PathValue("cohort_id"),
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingGetEventState(w http.ResponseWriter, r *http.Request) {
	resp, err := s.socializing.Handler.GetEventStateHandler(
		r.Context(),
		r.PathValue("cohort_id"),
		strings.TrimSpace(r.Header.Get("X-User-Id")),
	)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingGetTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.socializing.Handler.GetTallyHandler(r.Context(), r.PathValue("cohort_id"))
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSocializingStream writes server-sent events until the client goes
// away. Each message is a full tally snapshot.
func (s *Server) handleSocializingStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeSocializingError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}
	ctx := r.Context()
	messages, cancel, err := s.socializing.Handler.SubscribeTallyHandler(ctx, r.PathValue("cohort_id"))
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatEvery)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case message := <-messages:
			payload, err := json.Marshal(message)
			if err != nil {
				s.logger.Error("socializing stream encode failed",
					"event", "socializing_stream_encode_failed",
					"module", "internal/platform/httpserver",
					"layer", "platform",
					"cohort_id", r.PathValue("cohort_id"),
					"error", err.Error(),
				)
				return
			}
			if _, err := fmt.Fprintf(w, "event: tally\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleSocializingCalendar(w http.ResponseWriter, r *http.Request) {
	cohortID := r.PathValue("cohort_id")
	body, err := s.socializing.Handler.CalendarHandler(r.Context(), cohortID)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.TrimSpace(cohortID)+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleSocializingCastOptionVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSocializingUser(w, r)
	if !ok {
		return
	}
	var req socializinghttp.CastOptionVoteRequest
	if err := decodeSocializingBody(r, &req, false); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.CastOptionVoteHandler(r.Context(), userID, r.PathValue("cohort_id"), req)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingCastCantAttend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSocializingUser(w, r)
	if !ok {
		return
	}
	resp, err := s.socializing.Handler.CastCantAttendHandler(r.Context(), userID, r.PathValue("cohort_id"))
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSocializingCastAttendanceVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireSocializingUser(w, r)
	if !ok {
		return
	}
	var req socializinghttp.CastAttendanceVoteRequest
	if err := decodeSocializingBody(r, &req, false); err != nil {
		writeSocializingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.socializing.Handler.CastAttendanceVoteHandler(r.Context(), userID, r.PathValue("cohort_id"), req)
	if err != nil {
		writeSocializingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requireSocializingAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	adminID := strings.TrimSpace(r.Header.Get("X-Admin-Id"))
	if adminID == "" {
		writeSocializingError(w, http.StatusUnauthorized, "missing_admin", "X-Admin-Id header is required")
		return "", false
	}
	return adminID, true
}

func requireSocializingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeSocializingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

// decodeSocializingBody treats an empty body as the zero request when
// allowEmpty is set.
func decodeSocializingBody(r *http.Request, target any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(target)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeSocializingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, socializingerrors.ErrInvalidCatalogInput),
		errors.Is(err, socializingerrors.ErrInvalidVoteInput),
		errors.Is(err, socializingerrors.ErrInvalidDeadline),
		errors.Is(err, socializingerrors.ErrInvalidCohort),
		errors.Is(err, socializingerrors.ErrInvalidOpenChatURL):
		writeSocializingError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, socializingerrors.ErrUnknownOption):
		writeSocializingError(w, http.StatusUnprocessableEntity, "unknown_option", err.Error())
	case errors.Is(err, socializingerrors.ErrVotingClosed):
		writeSocializingError(w, http.StatusUnprocessableEntity, "voting_closed", err.Error())
	case errors.Is(err, socializingerrors.ErrAttendanceClosed):
		writeSocializingError(w, http.StatusUnprocessableEntity, "attendance_closed", err.Error())
	case errors.Is(err, socializingerrors.ErrNoWinner):
		writeSocializingError(w, http.StatusUnprocessableEntity, "no_winner", err.Error())
	case errors.Is(err, socializingerrors.ErrParticipantNotFound):
		writeSocializingError(w, http.StatusUnprocessableEntity, "participant_not_found", err.Error())
	case errors.Is(err, socializingerrors.ErrResultNotConfirmed):
		writeSocializingError(w, http.StatusNotFound, "result_not_confirmed", err.Error())
	case errors.Is(err, socializingerrors.ErrIllegalTransition):
		writeSocializingError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, socializingerrors.ErrConcurrentUpdate):
		writeSocializingError(w, http.StatusConflict, "concurrent_update", err.Error())
	case errors.Is(err, socializingerrors.ErrIdempotencyConflict):
		writeSocializingError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	default:
		writeSocializingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSocializingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, socializinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
