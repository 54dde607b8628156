package actor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/storage"
	"go.uber.org/zap"
)

// maxEmails caps mailbox retention: the oldest records beyond this count
// are evicted on insert, most-recent-first retained.
const maxEmails = 100

// ErrAccountExists is returned by CreateAccount when the mailbox already
// holds an account.
var ErrAccountExists = errors.New("account already exists")

// Mailbox is the single-writer actor owning one user's durable state:
// account, preferences, provider credentials and processed emails. Each
// operation runs under the actor's own mutex, so calls addressed to the
// same user never interleave; different users are fully independent.
type Mailbox struct {
	mu     sync.Mutex
	userID string
	store  storage.Store
	logger *zap.Logger
	state  *models.MailboxState
}

// Mailboxes resolves mailbox actors by normalized user key, loading
// persisted state on first access.
type Mailboxes struct {
	mu     sync.Mutex
	store  storage.Store
	logger *zap.Logger
	byUser map[string]*Mailbox
}

func NewMailboxes(store storage.Store, logger *zap.Logger) *Mailboxes {
	return &Mailboxes{
		store:  store,
		logger: logger,
		byUser: make(map[string]*Mailbox),
	}
}

// Get returns the actor for userID, creating it (and loading any persisted
// state) on first access. The key is lowercased so the same user always
// resolves to the same actor.
func (r *Mailboxes) Get(ctx context.Context, userID string) (*Mailbox, error) {
	key := strings.ToLower(userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if mb, exists := r.byUser[key]; exists {
		return mb, nil
	}

	state, err := r.store.LoadMailbox(ctx, key)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &models.MailboxState{}
	}

	mb := &Mailbox{
		userID: key,
		store:  r.store,
		logger: r.logger,
		state:  state,
	}
	r.byUser[key] = mb
	return mb, nil
}

func (m *Mailbox) persist(ctx context.Context) error {
	if err := m.store.SaveMailbox(ctx, m.userID, m.state); err != nil {
		m.logger.Error("Failed to persist mailbox state",
			zap.Error(err),
			zap.String("user_id", m.userID))
		return err
	}
	return nil
}

// GetState returns a snapshot of the full actor state. Records are copied
// so the caller cannot mutate the actor's internals.
func (m *Mailbox) GetState() models.MailboxState {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := models.MailboxState{
		Emails: make([]*models.EmailRecord, len(m.state.Emails)),
	}
	if m.state.Account != nil {
		account := *m.state.Account
		account.ProviderCredentials = make([]*models.ProviderCredential, len(m.state.Account.ProviderCredentials))
		for i, cred := range m.state.Account.ProviderCredentials {
			copied := *cred
			account.ProviderCredentials[i] = &copied
		}
		snapshot.Account = &account
	}
	for i, email := range m.state.Emails {
		copied := *email
		snapshot.Emails[i] = &copied
	}
	return snapshot
}

// Account returns the stored account, or false if none has been created.
func (m *Mailbox) Account() (*models.UserAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil {
		return nil, false
	}
	account := *m.state.Account
	return &account, true
}

// CreateAccount creates the account only if none exists yet. The
// uniqueness check and the write happen under one lock acquisition, so
// two concurrent creations at the same key cannot both succeed.
func (m *Mailbox) CreateAccount(ctx context.Context, account *models.UserAccount) (*models.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account != nil {
		return nil, ErrAccountExists
	}

	created := *account
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	m.state.Account = &created

	if err := m.persist(ctx); err != nil {
		return nil, err
	}
	stored := created
	return &stored, nil
}

// SetAccount creates the account on first call or merges the provided
// fields into the existing one. CreatedAt is set exactly once and never
// overwritten by later calls.
func (m *Mailbox) SetAccount(ctx context.Context, account *models.UserAccount) (*models.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil {
		created := *account
		if created.CreatedAt.IsZero() {
			created.CreatedAt = time.Now()
		}
		m.state.Account = &created
	} else {
		existing := m.state.Account
		if account.Email != "" {
			existing.Email = account.Email
		}
		if account.Name != "" {
			existing.Name = account.Name
		}
		if account.PasswordDigest != "" {
			existing.PasswordDigest = account.PasswordDigest
		}
		existing.Preferences = account.Preferences
	}

	if err := m.persist(ctx); err != nil {
		return nil, err
	}
	updated := *m.state.Account
	return &updated, nil
}

// UpdatePreferences replaces the stored preference set.
func (m *Mailbox) UpdatePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil {
		m.state.Account = &models.UserAccount{
			Email:     m.userID,
			CreatedAt: time.Now(),
		}
	}
	m.state.Account.Preferences = prefs

	if err := m.persist(ctx); err != nil {
		return models.Preferences{}, err
	}
	return prefs, nil
}

// AddEmail assigns an id and receive time to the draft record, inserts it
// at the head of the mailbox and evicts the tail beyond the retention cap.
func (m *Mailbox) AddEmail(ctx context.Context, draft *models.EmailRecord) (*models.EmailRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := *draft
	record.ID = uuid.NewString()
	record.ReceivedAt = time.Now()

	m.state.Emails = append([]*models.EmailRecord{&record}, m.state.Emails...)
	if len(m.state.Emails) > maxEmails {
		m.state.Emails = m.state.Emails[:maxEmails]
	}

	if err := m.persist(ctx); err != nil {
		return nil, err
	}
	stored := record
	return &stored, nil
}

// GetEmails lists records most-recent-first, applying category equality,
// the unread filter and a return-count cap in that order. Records are
// copied out so callers never alias state the actor mutates under its
// own lock.
func (m *Mailbox) GetEmails(filter models.EmailFilter) []*models.EmailRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	result := make([]*models.EmailRecord, 0, limit)
	for _, email := range m.state.Emails {
		if filter.Category != "" && email.Category != filter.Category {
			continue
		}
		if filter.UnreadOnly && email.Read {
			continue
		}
		copied := *email
		result = append(result, &copied)
		if len(result) >= limit {
			break
		}
	}
	return result
}

// MarkRead sets read=true on the matching record. Returns false when the
// id is unknown; repeated calls are idempotent.
func (m *Mailbox) MarkRead(ctx context.Context, emailID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, email := range m.state.Emails {
		if email.ID == emailID {
			email.Read = true
			if err := m.persist(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// MarkArchived sets archived=true on the matching record. Same contract
// as MarkRead.
func (m *Mailbox) MarkArchived(ctx context.Context, emailID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, email := range m.state.Emails {
		if email.ID == emailID {
			email.Archived = true
			if err := m.persist(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// DeleteEmail removes the matching record, returning false when not found.
func (m *Mailbox) DeleteEmail(ctx context.Context, emailID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, email := range m.state.Emails {
		if email.ID == emailID {
			m.state.Emails = append(m.state.Emails[:i], m.state.Emails[i+1:]...)
			if err := m.persist(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// GetStats recomputes the mailbox aggregate from the full record set.
// The retention cap bounds the cost, so no incremental counts are kept.
func (m *Mailbox) GetStats() models.EmailStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.EmailStats{
		Total:      len(m.state.Emails),
		ByCategory: make(map[models.Category]int, len(models.Categories)),
	}
	for _, category := range models.Categories {
		stats.ByCategory[category] = 0
	}

	for _, email := range m.state.Emails {
		if !email.Read {
			stats.Unread++
		}
		stats.ByCategory[email.Category]++
	}
	return stats
}

// UpsertProviderCredential stores a credential for one external provider.
// A credential already present for the same provider is replaced in place,
// keeping the original ConnectedAt.
func (m *Mailbox) UpsertProviderCredential(ctx context.Context, cred *models.ProviderCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil {
		m.state.Account = &models.UserAccount{
			Email:     m.userID,
			CreatedAt: time.Now(),
		}
	}

	stored := *cred
	replaced := false
	for i, existing := range m.state.Account.ProviderCredentials {
		if existing.Provider == stored.Provider {
			stored.ConnectedAt = existing.ConnectedAt
			m.state.Account.ProviderCredentials[i] = &stored
			replaced = true
			break
		}
	}
	if !replaced {
		if stored.ConnectedAt.IsZero() {
			stored.ConnectedAt = time.Now()
		}
		m.state.Account.ProviderCredentials = append(m.state.Account.ProviderCredentials, &stored)
	}

	return m.persist(ctx)
}

// GetProviderCredential returns the stored credential for provider, or
// false if the provider has never been connected.
func (m *Mailbox) GetProviderCredential(provider string) (*models.ProviderCredential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil {
		return nil, false
	}
	for _, cred := range m.state.Account.ProviderCredentials {
		if cred.Provider == provider {
			copied := *cred
			return &copied, true
		}
	}
	return nil, false
}
