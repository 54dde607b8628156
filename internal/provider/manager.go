package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/models"
	"go.uber.org/zap"
)

// refreshLookahead is the refresh-ahead window: a credential expiring
// inside it is renewed before being handed out, so callers never receive
// an already-expired token.
const refreshLookahead = 5 * time.Minute

// ErrNotConnected is returned when a user has never connected the
// requested provider.
var ErrNotConnected = errors.New("provider not connected")

// TokenRefresher is the slice of the provider client the manager needs.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Manager owns the credential lifecycle for external mail providers:
// storage through the mailbox actor, expiry tracking and silent refresh.
// Unlike the email pipeline, failures here are surfaced: a broken provider
// connection should be visible to the user.
type Manager struct {
	mailboxes *actor.Mailboxes
	refresher TokenRefresher
	logger    *zap.Logger
}

func NewManager(mailboxes *actor.Mailboxes, refresher TokenRefresher, logger *zap.Logger) *Manager {
	return &Manager{
		mailboxes: mailboxes,
		refresher: refresher,
		logger:    logger,
	}
}

// Connect stores a freshly exchanged token pair for a user. Reconnecting
// the same provider replaces the credential in place, keeping the original
// ConnectedAt.
func (m *Manager) Connect(ctx context.Context, userID, provider, accountEmail string, tokens *TokenResponse) (*models.ProviderCredential, error) {
	mailbox, err := m.mailboxes.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mailbox: %w", err)
	}

	cred := &models.ProviderCredential{
		Provider:     provider,
		AccountEmail: accountEmail,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}
	if err := mailbox.UpsertProviderCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	m.logger.Info("Provider connected",
		zap.String("user_id", userID),
		zap.String("provider", provider))
	return cred, nil
}

// GetCredential returns the stored credential for (user, provider),
// refreshing it first when its expiry falls inside the lookahead window.
func (m *Manager) GetCredential(ctx context.Context, userID, provider string) (*models.ProviderCredential, error) {
	mailbox, err := m.mailboxes.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mailbox: %w", err)
	}

	cred, exists := mailbox.GetProviderCredential(provider)
	if !exists {
		return nil, ErrNotConnected
	}

	if time.Until(cred.ExpiresAt) >= refreshLookahead || cred.RefreshToken == "" {
		return cred, nil
	}

	tokens, err := m.refresher.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh %s token: %w", provider, err)
	}

	cred.AccessToken = tokens.AccessToken
	cred.ExpiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := mailbox.UpsertProviderCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	m.logger.Info("Provider token refreshed",
		zap.String("user_id", userID),
		zap.String("provider", provider))
	return cred, nil
}
