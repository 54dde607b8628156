package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xaenox/email-assistant/internal/models"
)

// MemoryStore is an in-memory Store for development and tests. State is
// deep-copied on both save and load so callers never share slices or maps
// with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	mailboxes map[string][]byte
	sessions  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mailboxes: make(map[string][]byte),
		sessions:  make(map[string][]byte),
	}
}

func (s *MemoryStore) LoadMailbox(ctx context.Context, userID string) (*models.MailboxState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, exists := s.mailboxes[userID]
	if !exists {
		return nil, nil
	}

	var state models.MailboxState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("error decoding mailbox state: %w", err)
	}
	return &state, nil
}

func (s *MemoryStore) SaveMailbox(ctx context.Context, userID string, state *models.MailboxState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding mailbox state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes[userID] = raw
	return nil
}

func (s *MemoryStore) LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}

	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("error decoding session state: %w", err)
	}
	return &state, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding session state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = raw
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
