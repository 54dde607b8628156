package storage

import (
	"context"

	"github.com/xaenox/email-assistant/internal/models"
)

// Store persists actor state keyed the same way the actors are addressed:
// mailboxes by normalized user email, chat sessions by session id. Load
// returns (nil, nil) when no state exists yet for a key.
type Store interface {
	LoadMailbox(ctx context.Context, userID string) (*models.MailboxState, error)
	SaveMailbox(ctx context.Context, userID string, state *models.MailboxState) error

	LoadSession(ctx context.Context, sessionID string) (*models.SessionState, error)
	SaveSession(ctx context.Context, sessionID string, state *models.SessionState) error

	Close() error
}
