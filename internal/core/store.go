// Package core holds the registry's concurrency primitives: the room
// store, the expiry scheduler and the per-code lifecycle locks.
package core

import (
	"sync"
	"time"

	"roomdesk/internal/domain"

	"github.com/rs/zerolog/log"
)

// Store is the in-memory map of live rooms. It owns the canonical
// *domain.Room instances and hands out copies; nothing outside ever
// holds a pointer into the map.
type Store struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*domain.Room
	order []domain.RoomCode
}

func NewStore() *Store {
	return &Store{rooms: make(map[domain.RoomCode]*domain.Room)}
}

// Create inserts a room. The existence check and the insert happen
// under one write lock, so two racing creations for the same code can
// never both succeed.
func (s *Store) Create(room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.Code]; exists {
		return domain.ErrCodeTaken
	}
	s.rooms[room.Code] = &room
	s.order = append(s.order, room.Code)
	log.Info().Str("module", "core.store").Str("code", string(room.Code)).Str("host", room.Host).Msg("room created")
	return nil
}

func (s *Store) Get(code domain.RoomCode) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return domain.Room{}, false
	}
	return *room, true
}

// Delete removes a room and reports whether one was present. Safe to
// call for codes already removed by another path.
func (s *Store) Delete(code domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return false
	}
	delete(s.rooms, code)
	for i, c := range s.order {
		if c == code {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "core.store").Str("code", string(code)).Msg("room removed")
	return true
}

// UpdateFields applies a patch to a room's mutable fields after an
// owner check. The expiry fields are not touched here.
func (s *Store) UpdateFields(code domain.RoomCode, patch domain.RoomPatch, requester domain.OwnerID) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	if room.OwnerID != requester {
		return domain.Room{}, domain.ErrForbidden
	}
	if patch.Map != nil {
		room.Map = *patch.Map
	}
	if patch.Mode != nil {
		room.Mode = *patch.Mode
	}
	log.Info().Str("module", "core.store").Str("code", string(code)).Msg("room fields updated")
	return *room, nil
}

// SetExpiry records the room's current deadline so listings and
// snapshots see it without asking the scheduler.
func (s *Store) SetExpiry(code domain.RoomCode, expiresAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	if !ok {
		return false
	}
	r.ExpiresAt = expiresAt
	return true
}

// List returns copies of all live rooms in insertion order.
func (s *Store) List() []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, *s.rooms[code])
	}
	return out
}

// FindByOwner returns the owner's live room, if any. Used by the
// one-room-per-owner policy.
func (s *Store) FindByOwner(owner domain.OwnerID) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, code := range s.order {
		if s.rooms[code].OwnerID == owner {
			return *s.rooms[code], true
		}
	}
	return domain.Room{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
