package core

import (
	"math/rand"
	"time"

	"roomdesk/internal/domain"
)

// SuggestCode picks a random code from the configured alphabet that is
// not currently live. Collisions just retry; with a 6-letter A-Z code
// the space is large enough that the loop terminates fast.
func SuggestCode(rules domain.Rules, store *Store) domain.RoomCode {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		b := make([]byte, rules.CodeLength)
		for i := range b {
			b[i] = rules.CodeAlphabet[r.Intn(len(rules.CodeAlphabet))]
		}
		code := domain.RoomCode(b)
		if _, exists := store.Get(code); !exists {
			return code
		}
	}
}
