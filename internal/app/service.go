// Package app wires the store, scheduler, persistence and the guided
// creation flow into the service external adapters call.
package app

import (
	"errors"
	"time"

	"roomdesk/internal/core"
	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

// SnapshotStore persists the live rooms. The service treats failures
// as non-fatal and keeps serving from memory.
type SnapshotStore interface {
	Save(rooms []domain.Room) error
	Load() ([]domain.Room, error)
}

// Options carries the policy knobs the service cannot derive itself.
type Options struct {
	Rules        domain.Rules
	DefaultTTL   time.Duration
	ExtendBy     time.Duration
	ExtendPolicy core.ExtendPolicy
	OnePerOwner  bool
	FlowIdleTTL  time.Duration
}

// Service is the registry façade: every create, list, delete, extend
// and edit goes through here, as does every step of the guided flow.
type Service struct {
	opts  Options
	store *core.Store
	sched *core.Scheduler
	locks *core.CodeLocks
	snaps SnapshotStore
	flows *sessionRegistry
}

// NewService builds the façade. snaps may be nil to disable
// persistence (tests, ephemeral deployments).
func NewService(opts Options, snaps SnapshotStore) *Service {
	s := &Service{
		opts:  opts,
		store: core.NewStore(),
		locks: core.NewCodeLocks(),
		snaps: snaps,
		flows: newSessionRegistry(opts.FlowIdleTTL),
	}
	s.sched = core.NewScheduler(s.expire)
	return s
}

// CreateRoom validates every field, then inserts and arms the default
// TTL. The insert is atomic with respect to other creations; the whole
// lifecycle step runs in the code's critical section.
func (s *Service) CreateRoom(owner domain.OwnerID, host, code, mapName, mode string) (domain.Room, error) {
	if err := s.opts.Rules.ValidateHost(host); err != nil {
		return domain.Room{}, err
	}
	if err := s.opts.Rules.ValidateCode(code); err != nil {
		return domain.Room{}, err
	}
	if err := s.opts.Rules.ValidateMap(mapName); err != nil {
		return domain.Room{}, err
	}
	if err := s.opts.Rules.ValidateMode(mode); err != nil {
		return domain.Room{}, err
	}
	if s.opts.OnePerOwner {
		if existing, ok := s.store.FindByOwner(owner); ok {
			return existing, domain.ErrOwnerHasRoom
		}
	}

	rc := domain.RoomCode(code)
	s.locks.Lock(rc)
	defer s.locks.Unlock(rc)

	now := time.Now()
	room := domain.Room{
		Code:      rc,
		Host:      host,
		Map:       mapName,
		Mode:      mode,
		OwnerID:   owner,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.DefaultTTL),
	}
	if err := s.store.Create(room); err != nil {
		return domain.Room{}, err
	}
	deadline := s.sched.Arm(rc, s.opts.DefaultTTL)
	s.store.SetExpiry(rc, deadline)
	room.ExpiresAt = deadline
	s.snapshot()
	return room, nil
}

// ListRooms never mutates state and is safe concurrently with
// anything; order is insertion order.
func (s *Service) ListRooms() []domain.Room {
	return s.store.List()
}

func (s *Service) GetRoom(code string) (domain.Room, error) {
	room, ok := s.store.Get(domain.RoomCode(code))
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return room, nil
}

// DeleteRoom removes the room and its countdown. Owner only.
func (s *Service) DeleteRoom(code string, requester domain.OwnerID) error {
	rc := domain.RoomCode(code)
	s.locks.Lock(rc)
	defer s.locks.Unlock(rc)

	room, ok := s.store.Get(rc)
	if !ok {
		return domain.ErrNotFound
	}
	if room.OwnerID != requester {
		return domain.ErrForbidden
	}
	s.sched.Cancel(rc)
	s.store.Delete(rc)
	s.snapshot()
	return nil
}

// ExtendRoom pushes the expiry out per the configured policy and
// returns the new deadline. extra <= 0 uses the configured increment.
// The old timer is dead before the new one is armed, so a stale fire
// can never remove the room after this returns.
func (s *Service) ExtendRoom(code string, requester domain.OwnerID, extra time.Duration) (time.Time, error) {
	rc := domain.RoomCode(code)
	s.locks.Lock(rc)
	defer s.locks.Unlock(rc)

	room, ok := s.store.Get(rc)
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	if room.OwnerID != requester {
		return time.Time{}, domain.ErrForbidden
	}
	if extra <= 0 {
		extra = s.opts.ExtendBy
	}
	deadline, ok := s.sched.Extend(rc, extra, s.opts.ExtendPolicy)
	if !ok {
		// No countdown pending. Restored rooms always re-arm, so this
		// only happens when a fire is mid-flight for this code; arming
		// here keeps the room alive, and the stale fire yields.
		deadline = s.sched.Arm(rc, extra)
	}
	s.store.SetExpiry(rc, deadline)
	s.snapshot()
	log.Info().Str("module", "app.service").Str("code", code).Time("expires_at", deadline).Msg("room extended")
	return deadline, nil
}

// EditRoom changes map and/or mode. Owner only. The expiry clock is
// not touched; edit and extend are independent operations.
func (s *Service) EditRoom(code string, requester domain.OwnerID, patch domain.RoomPatch) (domain.Room, error) {
	if patch.Map != nil {
		if err := s.opts.Rules.ValidateMap(*patch.Map); err != nil {
			return domain.Room{}, err
		}
	}
	if patch.Mode != nil {
		if err := s.opts.Rules.ValidateMode(*patch.Mode); err != nil {
			return domain.Room{}, err
		}
	}
	rc := domain.RoomCode(code)
	s.locks.Lock(rc)
	defer s.locks.Unlock(rc)

	room, err := s.store.UpdateFields(rc, patch, requester)
	if err != nil {
		return domain.Room{}, err
	}
	s.snapshot()
	return room, nil
}

// SuggestCode proposes an unused code for the guided flow's prompt.
func (s *Service) SuggestCode() string {
	return string(core.SuggestCode(s.opts.Rules, s.store))
}

// Restore loads the snapshot and re-arms each room with whatever TTL
// it has left; rooms already past due are armed at zero and removed on
// the next scheduler tick. A corrupt snapshot fails closed to an empty
// registry.
func (s *Service) Restore() error {
	if s.snaps == nil {
		return nil
	}
	rooms, err := s.snaps.Load()
	if err != nil {
		log.Error().Str("module", "app.service").Err(err).Msg("snapshot restore failed, starting empty")
		return err
	}
	now := time.Now()
	for _, room := range rooms {
		s.locks.Lock(room.Code)
		if err := s.store.Create(room); err != nil {
			s.locks.Unlock(room.Code)
			log.Warn().Str("module", "app.service").Str("code", string(room.Code)).Err(err).Msg("skipping duplicate snapshot room")
			continue
		}
		remaining := room.ExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		deadline := s.sched.Arm(room.Code, remaining)
		s.store.SetExpiry(room.Code, deadline)
		s.locks.Unlock(room.Code)
	}
	log.Info().Str("module", "app.service").Int("rooms", len(rooms)).Msg("snapshot restored")
	return nil
}

// Close stops all pending timers. Sessions evaporate with the process.
func (s *Service) Close() {
	s.sched.Stop()
}

// expire is the scheduler's fire callback: delete if still present.
// The room may already be gone via an explicit delete; that is fine.
func (s *Service) expire(code domain.RoomCode) {
	s.locks.Lock(code)
	defer s.locks.Unlock(code)
	if _, pending := s.sched.Deadline(code); pending {
		// An extend (or a replacement room) re-armed the code while
		// this fire waited for the lock; the fire lost.
		return
	}
	if !s.store.Delete(code) {
		return
	}
	log.Info().Str("module", "app.service").Str("code", string(code)).Msg("room expired")
	s.snapshot()
}

func (s *Service) snapshot() {
	if s.snaps == nil {
		return
	}
	if err := s.snaps.Save(s.store.List()); err != nil {
		if errors.Is(err, domain.ErrSnapshot) {
			log.Warn().Str("module", "app.service").Err(err).Msg("snapshot write failed")
			return
		}
		log.Error().Str("module", "app.service").Err(err).Msg("snapshot write failed")
	}
}
