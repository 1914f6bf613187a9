package services

import (
	"time"

	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
)

const (
	MinDeadlineHours = 1
	MaxDeadlineHours = 7 * 24
)

// DeadlineFrom computes an advisory phase deadline. Deadlines are shown to
// participants and drive notices only; nothing transitions on expiry.
func DeadlineFrom(now time.Time, hours int) (time.Time, error) {
	if hours < MinDeadlineHours || hours > MaxDeadlineHours {
		return time.Time{}, domainerrors.ErrInvalidDeadline
	}
	return now.UTC().Add(time.Duration(hours) * time.Hour), nil
}
