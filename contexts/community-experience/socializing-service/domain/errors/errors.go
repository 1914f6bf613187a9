package errors

import "errors"

var (
	ErrInvalidCatalogInput = errors.New("invalid option catalog input")
	ErrUnknownOption       = errors.New("option is not in the current catalog")
	ErrInvalidVoteInput    = errors.New("invalid vote input")
	ErrVotingClosed        = errors.New("option voting is not open")
	ErrAttendanceClosed    = errors.New("attendance check is not open")
	ErrNoWinner            = errors.New("no winning option could be resolved")
	ErrInvalidDeadline     = errors.New("invalid deadline")
	ErrInvalidCohort       = errors.New("cohort id is required")
	ErrParticipantNotFound = errors.New("participant not found in cohort")
	ErrInvalidOpenChatURL  = errors.New("invalid open chat url")
	ErrResultNotConfirmed  = errors.New("gathering is not confirmed")
	ErrIllegalTransition   = errors.New("illegal phase transition")
	ErrConcurrentUpdate    = errors.New("event was modified concurrently")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrNotFound            = errors.New("not found")
)
