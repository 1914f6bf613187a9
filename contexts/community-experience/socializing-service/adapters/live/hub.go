package live

import (
	"log/slog"
	"strings"
	"sync"

	"gathering/contexts/community-experience/socializing-service/ports"
)

// Hub fans tally snapshots out to in-process observers keyed by cohort.
// Callbacks run on the broadcasting goroutine and must not block; the SSE
// handler hands them off to a buffered channel.
type Hub struct {
	mu          sync.RWMutex
	nextID      int64
	subscribers map[string]map[int64]func(ports.TallySnapshot)
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[int64]func(ports.TallySnapshot)),
		logger:      logger,
	}
}

// Subscribe registers callback for cohortID. The returned cancel is safe to
// call more than once.
func (h *Hub) Subscribe(cohortID string, callback func(ports.TallySnapshot)) (cancel func()) {
	cohortID = strings.TrimSpace(cohortID)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subscribers[cohortID] == nil {
		h.subscribers[cohortID] = make(map[int64]func(ports.TallySnapshot))
	}
	h.subscribers[cohortID][id] = callback
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[cohortID], id)
			if len(h.subscribers[cohortID]) == 0 {
				delete(h.subscribers, cohortID)
			}
		})
	}
}

func (h *Hub) Broadcast(cohortID string, snapshot ports.TallySnapshot) {
	cohortID = strings.TrimSpace(cohortID)
	h.mu.RLock()
	callbacks := make([]func(ports.TallySnapshot), 0, len(h.subscribers[cohortID]))
	for _, callback := range h.subscribers[cohortID] {
		callbacks = append(callbacks, callback)
	}
	h.mu.RUnlock()

	for _, callback := range callbacks {
		callback(snapshot)
	}
	if h.logger != nil && len(callbacks) > 0 {
		h.logger.Debug("tally snapshot broadcast",
			"event", "socializing_live_broadcast",
			"module", "community-experience/socializing-service",
			"layer", "adapter",
			"cohort_id", cohortID,
			"subscriber_count", len(callbacks),
		)
	}
}

func (h *Hub) SubscriberCount(cohortID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[strings.TrimSpace(cohortID)])
}
