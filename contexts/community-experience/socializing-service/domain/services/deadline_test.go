package services

import (
	"errors"
	"testing"
	"time"

	domainerrors "gathering/contexts/community-experience/socializing-service/domain/errors"
)

func TestDeadlineFrom(t *testing.T) {
	deadline, err := DeadlineFrom(fixedNow, 12)
	if err != nil {
		t.Fatalf("deadline: %v", err)
	}
	if !deadline.Equal(fixedNow.Add(12 * time.Hour)) {
		t.Fatalf("unexpected deadline %s", deadline)
	}

	for _, hours := range []int{0, -1, MaxDeadlineHours + 1} {
		if _, err := DeadlineFrom(fixedNow, hours); !errors.Is(err, domainerrors.ErrInvalidDeadline) {
			t.Fatalf("hours=%d: expected invalid deadline, got %v", hours, err)
		}
	}
}
