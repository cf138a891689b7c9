package ingestion

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// limiterSet keys a token-bucket limiter per user, as spec §4.7 requires:
// "Counters are keyed per user (not per IP) for authenticated requests."
type limiterSet struct {
	mu       sync.Mutex
	r        rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{r: r, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (s *limiterSet) Allow(userID string) bool {
	s.mu.Lock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(s.r, s.burst)
		s.limiters[userID] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

func byteReader(b []byte) io.Reader { return bytes.NewReader(b) }
