package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock and UUIDGenerator complete the port set when the repository
// backs a process; the memory store carries its own.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
