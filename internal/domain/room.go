// Package domain contains the registry entities and their validation
// rules. No storage, scheduling or transport logic lives here.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type (
	RoomCode string
	OwnerID  string
)

// Room is one advertised, time-bounded game room. The store owns the
// canonical instance; everything else works with copies.
type Room struct {
	Code      RoomCode  `json:"code"`
	Host      string    `json:"host"`
	Map       string    `json:"map"`
	Mode      string    `json:"mode"`
	OwnerID   OwnerID   `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RoomPatch carries the mutable fields of a room. A nil field means
// "leave as is". OwnerID, Host and Code never change after creation.
type RoomPatch struct {
	Map  *string
	Mode *string
}

func (p RoomPatch) Empty() bool { return p.Map == nil && p.Mode == nil }

// Rules holds the externally supplied validation sets and limits.
// Map and mode names are configuration data, not coded enums.
type Rules struct {
	Maps         []string
	Modes        []string
	HostMaxLen   int
	CodeLength   int
	CodeAlphabet string
}

func (r Rules) ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return ErrHostEmpty
	}
	if len(host) > r.HostMaxLen {
		return fmt.Errorf("%w (max %d chars)", ErrHostTooLong, r.HostMaxLen)
	}
	return nil
}

// ValidateCode checks format only; collision with live rooms is the
// store's concern.
func (r Rules) ValidateCode(code string) error {
	if len(code) != r.CodeLength {
		return fmt.Errorf("%w: want %d characters", ErrCodeFormat, r.CodeLength)
	}
	for _, c := range code {
		if !strings.ContainsRune(r.CodeAlphabet, c) {
			return fmt.Errorf("%w: only %s allowed", ErrCodeFormat, r.CodeAlphabet)
		}
	}
	return nil
}

func (r Rules) ValidateMap(name string) error {
	for _, m := range r.Maps {
		if m == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownMap, name)
}

func (r Rules) ValidateMode(name string) error {
	for _, m := range r.Modes {
		if m == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownMode, name)
}
