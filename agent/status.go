package agent

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// StatusStore holds the agent's local, in-memory status surface (spec
// §4.9: "{connected, authenticated, queue_depth, last_sync_at,
// quota_snapshot}").
type StatusStore struct {
	mu           sync.RWMutex
	connected    bool
	authenticated bool
	queueDepth   int
	lastSyncAt   *time.Time
	deferred     []string
	quotaUsed    int64
	quotaLimit   int64
}

func NewStatusStore() *StatusStore { return &StatusStore{} }

func (s *StatusStore) SetConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *StatusStore) SetAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}

func (s *StatusStore) SetQueueDepth(n int) {
	s.mu.Lock()
	s.queueDepth = n
	s.mu.Unlock()
}

func (s *StatusStore) SetLastSyncAt(t time.Time) {
	s.mu.Lock()
	s.lastSyncAt = &t
	s.mu.Unlock()
}

func (s *StatusStore) MarkDeferred(path string) {
	s.mu.Lock()
	s.deferred = append(s.deferred, path)
	s.mu.Unlock()
}

func (s *StatusStore) SetQuota(used, limit int64) {
	s.mu.Lock()
	s.quotaUsed, s.quotaLimit = used, limit
	s.mu.Unlock()
}

type statusPayload struct {
	Connected     bool       `json:"connected"`
	Authenticated bool       `json:"authenticated"`
	QueueDepth    int        `json:"queue_depth"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	Deferred      []string   `json:"deferred,omitempty"`
	Quota         struct {
		Used  int64 `json:"used"`
		Limit int64 `json:"limit"`
	} `json:"quota_snapshot"`
}

func (s *StatusStore) snapshot() statusPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := statusPayload{
		Connected:     s.connected,
		Authenticated: s.authenticated,
		QueueDepth:    s.queueDepth,
		LastSyncAt:    s.lastSyncAt,
		Deferred:      append([]string(nil), s.deferred...),
	}
	p.Quota.Used = s.quotaUsed
	p.Quota.Limit = s.quotaLimit
	return p
}

// Handler exposes the local read-only status endpoint the UI polls (spec
// §4.9 "Status surface").
func (s *StatusStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.snapshot())
	})
}
