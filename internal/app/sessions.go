package app

import (
	"context"
	"sync"
	"time"

	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

// sessionRegistry holds each caller's in-progress Conversation. A
// conversation idle past the TTL is evicted lazily on access and by
// the periodic sweep; it is never shared between callers, so the lock
// only guards the map itself.
type sessionRegistry struct {
	mu       sync.Mutex
	byCaller map[domain.OwnerID]*Conversation
	idleTTL  time.Duration
}

func newSessionRegistry(idleTTL time.Duration) *sessionRegistry {
	return &sessionRegistry{
		byCaller: make(map[domain.OwnerID]*Conversation),
		idleTTL:  idleTTL,
	}
}

func (r *sessionRegistry) put(conv *Conversation) {
	conv.UpdatedAt = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCaller[conv.Caller] = conv
}

func (r *sessionRegistry) get(caller domain.OwnerID) (*Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.byCaller[caller]
	if !ok {
		return nil, false
	}
	if r.idleTTL > 0 && time.Since(conv.UpdatedAt) > r.idleTTL {
		delete(r.byCaller, caller)
		log.Info().Str("module", "app.sessions").Str("caller", string(caller)).Msg("idle flow evicted")
		return nil, false
	}
	conv.UpdatedAt = time.Now()
	return conv, true
}

func (r *sessionRegistry) remove(caller domain.OwnerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byCaller[caller]
	delete(r.byCaller, caller)
	return ok
}

func (r *sessionRegistry) sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for caller, conv := range r.byCaller {
		if now.Sub(conv.UpdatedAt) > r.idleTTL {
			delete(r.byCaller, caller)
			n++
		}
	}
	return n
}

// SweepSessions evicts idle conversations until ctx is done. Run it
// from main as a background goroutine.
func (s *Service) SweepSessions(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.flows.sweep(now); n > 0 {
				log.Info().Str("module", "app.sessions").Int("evicted", n).Msg("idle flows swept")
			}
		}
	}
}
