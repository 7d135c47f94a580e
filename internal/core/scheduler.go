package core

import (
	"sync"
	"time"

	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

// ExtendPolicy decides what a successful extend does to the countdown.
type ExtendPolicy string

const (
	// ExtendAdd pushes the deadline out by remaining + extra.
	ExtendAdd ExtendPolicy = "add"
	// ExtendReset discards the remaining time and starts a fresh
	// countdown of exactly extra.
	ExtendReset ExtendPolicy = "reset"
)

type expiryEntry struct {
	timer    *time.Timer
	deadline time.Time
	gen      uint64
}

// Scheduler runs at most one countdown per room code. Every arm
// invalidates the previous timer through a generation counter: a fire
// callback that lost the race finds a newer generation under the lock
// and returns without touching anything, so a cancelled timer can
// never delete a room.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[domain.RoomCode]*expiryEntry
	gen      uint64
	onExpire func(domain.RoomCode)
	stopped  bool
}

// NewScheduler builds a scheduler that calls onExpire(code) when a
// countdown reaches zero without being cancelled. onExpire runs on the
// timer goroutine, outside the scheduler lock.
func NewScheduler(onExpire func(domain.RoomCode)) *Scheduler {
	return &Scheduler{
		entries:  make(map[domain.RoomCode]*expiryEntry),
		onExpire: onExpire,
	}
}

// Arm starts a countdown for code, cancelling any existing one first.
func (s *Scheduler) Arm(code domain.RoomCode, d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armLocked(code, d)
}

func (s *Scheduler) armLocked(code domain.RoomCode, d time.Duration) time.Time {
	if prev, ok := s.entries[code]; ok {
		prev.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	s.gen++
	g := s.gen
	e := &expiryEntry{deadline: time.Now().Add(d), gen: g}
	e.timer = time.AfterFunc(d, func() { s.fire(code, g) })
	s.entries[code] = e
	log.Debug().Str("module", "core.scheduler").Str("code", string(code)).Dur("ttl", d).Msg("armed")
	return e.deadline
}

func (s *Scheduler) fire(code domain.RoomCode, g uint64) {
	s.mu.Lock()
	e, ok := s.entries[code]
	if !ok || e.gen != g || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.entries, code)
	s.mu.Unlock()
	log.Info().Str("module", "core.scheduler").Str("code", string(code)).Msg("ttl elapsed")
	s.onExpire(code)
}

// Cancel stops the countdown for code, if any. After Cancel returns
// the old timer can no longer fire.
func (s *Scheduler) Cancel(code domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, code)
	return true
}

// Extend reschedules the countdown per the policy and returns the new
// deadline. Extending a code with no pending countdown reports false.
func (s *Scheduler) Extend(code domain.RoomCode, extra time.Duration, policy ExtendPolicy) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok {
		return time.Time{}, false
	}
	d := extra
	if policy == ExtendAdd {
		if remaining := time.Until(e.deadline); remaining > 0 {
			d = remaining + extra
		}
	}
	return s.armLocked(code, d), true
}

// Deadline reports the pending deadline for code.
func (s *Scheduler) Deadline(code domain.RoomCode) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Pending reports how many countdowns are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels every countdown. Used on shutdown; the scheduler is
// unusable afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for code, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, code)
	}
}
