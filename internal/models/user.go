package models

import "time"

// Preferences holds per-user mailbox behavior toggles.
type Preferences struct {
	FilterSpam           bool `json:"filter_spam"`
	AutoSummarize        bool `json:"auto_summarize"`
	NotificationsEnabled bool `json:"notifications_enabled"`
}

// DefaultPreferences returns the initial preference set for new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		FilterSpam:           true,
		AutoSummarize:        true,
		NotificationsEnabled: true,
	}
}

// ProviderCredential stores the OAuth token pair for one connected
// external mail account. At most one credential exists per provider.
type ProviderCredential struct {
	Provider     string    `json:"provider"`
	AccountEmail string    `json:"account_email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// UserAccount is the registered user record. The normalized (lowercase)
// email doubles as the mailbox actor key.
type UserAccount struct {
	Email               string                `json:"email"`
	Name                string                `json:"name"`
	PasswordDigest      string                `json:"password_digest"`
	CreatedAt           time.Time             `json:"created_at"`
	Preferences         Preferences           `json:"preferences"`
	ProviderCredentials []*ProviderCredential `json:"provider_credentials"`
}

// MailboxState is the full durable state owned by one mailbox actor.
type MailboxState struct {
	Account *UserAccount   `json:"account,omitempty"`
	Emails  []*EmailRecord `json:"emails"`
}

// SessionState is the full durable state owned by one chat session actor.
type SessionState struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Messages     []*ChatMessage `json:"messages"`
}
