package server

import (
	"sync"

	"github.com/rafacovez/notify/internal/shared"
)

// StateStore correlates OAuth state tokens with the chat user who started
// the login. Tokens are single-use: a claim removes the entry, so a
// replayed callback cannot bind a second credential.
type StateStore struct {
	mu     sync.Mutex
	states map[string]int64
}

// NewStateStore creates an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]int64)}
}

// Issue mints a fresh state token for userID. Issuing again for the same
// user is fine; older tokens stay claimable until used.
func (s *StateStore) Issue(userID int64) string {
	state := shared.NewNonce()

	s.mu.Lock()
	s.states[state] = userID
	s.mu.Unlock()

	return state
}

// Claim resolves a state token to its user and invalidates it.
func (s *StateStore) Claim(state string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.states[state]
	if ok {
		delete(s.states, state)
	}
	return userID, ok
}
