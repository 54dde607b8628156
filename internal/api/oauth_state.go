package api

import (
	"sync"
	"time"
)

// stateTTL bounds how long an issued OAuth state stays redeemable.
const stateTTL = 10 * time.Minute

// oauthStates maps single-use random state values to the user who started
// the OAuth flow. The provider callback arrives unauthenticated, so the
// state lookup is what attributes the tokens; a value the server never
// issued redeems as nothing.
type oauthStates struct {
	mu      sync.Mutex
	pending map[string]stateEntry
}

type stateEntry struct {
	userID  string
	expires time.Time
}

func newOAuthStates() *oauthStates {
	return &oauthStates{pending: make(map[string]stateEntry)}
}

func (s *oauthStates) issue(state, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[state] = stateEntry{userID: userID, expires: time.Now().Add(stateTTL)}
}

// redeem consumes the state and returns the user it was issued to. Each
// state is redeemable at most once and only within its TTL.
func (s *oauthStates) redeem(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.pending[state]
	if !exists {
		return "", false
	}
	delete(s.pending, state)
	if time.Now().After(entry.expires) {
		return "", false
	}
	return entry.userID, true
}
