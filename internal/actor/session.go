package actor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/storage"
	"go.uber.org/zap"
)

// maxMessages caps the conversation transcript per session; the oldest
// messages are evicted when the cap is exceeded.
const maxMessages = 100

// Session is the single-writer actor owning one chat session's bounded
// conversation transcript.
type Session struct {
	mu        sync.Mutex
	sessionID string
	store     storage.Store
	logger    *zap.Logger
	state     *models.SessionState
}

// Sessions resolves chat session actors by session key.
type Sessions struct {
	mu       sync.Mutex
	store    storage.Store
	logger   *zap.Logger
	bySessID map[string]*Session
}

func NewSessions(store storage.Store, logger *zap.Logger) *Sessions {
	return &Sessions{
		store:    store,
		logger:   logger,
		bySessID: make(map[string]*Session),
	}
}

// Get returns the actor for sessionID, loading persisted state on first
// access. A session that was never initialized starts with an empty log.
func (r *Sessions) Get(ctx context.Context, sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, exists := r.bySessID[sessionID]; exists {
		return sess, nil
	}

	state, err := r.store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &models.SessionState{
			SessionID: sessionID,
			CreatedAt: time.Now(),
		}
	}

	sess := &Session{
		sessionID: sessionID,
		store:     r.store,
		logger:    r.logger,
		state:     state,
	}
	r.bySessID[sessionID] = sess
	return sess, nil
}

func (s *Session) persist(ctx context.Context) error {
	if err := s.store.SaveSession(ctx, s.sessionID, s.state); err != nil {
		s.logger.Error("Failed to persist session state",
			zap.Error(err),
			zap.String("session_id", s.sessionID))
		return err
	}
	return nil
}

// InitSession binds the session to a user and resets the message log.
// Calling it again re-initializes the session.
func (s *Session) InitSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = &models.SessionState{
		SessionID: s.sessionID,
		UserID:    strings.ToLower(userID),
		CreatedAt: time.Now(),
		Messages:  []*models.ChatMessage{},
	}
	return s.persist(ctx)
}

// UserID returns the user the session was initialized for.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UserID
}

// AddMessage appends a message to the transcript, evicting the oldest
// entries beyond the retention cap.
func (s *Session) AddMessage(ctx context.Context, role models.Role, content string, metadata map[string]any) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	s.state.Messages = append(s.state.Messages, msg)
	if len(s.state.Messages) > maxMessages {
		s.state.Messages = s.state.Messages[len(s.state.Messages)-maxMessages:]
	}
	s.state.LastActivity = msg.Timestamp

	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	stored := *msg
	return &stored, nil
}

// GetRecentMessages returns the last limit messages in chronological
// order. Messages are copied out so callers never alias state the actor
// mutates under its own lock; the other listing operations do the same.
func (s *Session) GetRecentMessages(limit int) []*models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.state.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	result := make([]*models.ChatMessage, len(msgs))
	for i, msg := range msgs {
		copied := *msg
		result[i] = &copied
	}
	return result
}

// GetMessages paginates over the full transcript.
func (s *Session) GetMessages(offset, limit int) models.MessagePage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}

	total := len(s.state.Messages)
	page := models.MessagePage{
		Messages: []*models.ChatMessage{},
		Total:    total,
		Offset:   offset,
		Limit:    limit,
	}

	if offset >= total {
		return page
	}
	end := offset + limit
	if end > total {
		end = total
	}
	for _, msg := range s.state.Messages[offset:end] {
		copied := *msg
		page.Messages = append(page.Messages, &copied)
	}
	return page
}

// SearchMessages returns messages whose content contains query,
// case-insensitively.
func (s *Session) SearchMessages(query string) []*models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	lowerQuery := strings.ToLower(query)
	var result []*models.ChatMessage
	for _, msg := range s.state.Messages {
		if strings.Contains(strings.ToLower(msg.Content), lowerQuery) {
			copied := *msg
			result = append(result, &copied)
		}
	}
	return result
}

// GetContext projects the last n messages to the minimal role/content
// shape the inference capability consumes.
func (s *Session) GetContext(n int) []models.ContextMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.state.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	context := make([]models.ContextMessage, 0, len(msgs))
	for _, msg := range msgs {
		context = append(context, models.ContextMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return context
}

// MessageUpdate carries the editable fields of a chat message. Nil fields
// are left unchanged.
type MessageUpdate struct {
	Content  *string
	Metadata map[string]any
}

// UpdateMessage applies a point update by id, stamping UpdatedAt.
// Returns nil when the id is unknown.
func (s *Session) UpdateMessage(ctx context.Context, messageID string, update MessageUpdate) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.state.Messages {
		if msg.ID == messageID {
			if update.Content != nil {
				msg.Content = *update.Content
			}
			if update.Metadata != nil {
				msg.Metadata = update.Metadata
			}
			now := time.Now()
			msg.UpdatedAt = &now

			if err := s.persist(ctx); err != nil {
				return nil, err
			}
			updated := *msg
			return &updated, nil
		}
	}
	return nil, nil
}

// DeleteMessage removes a message by id, returning false when not found.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, msg := range s.state.Messages {
		if msg.ID == messageID {
			s.state.Messages = append(s.state.Messages[:i], s.state.Messages[i+1:]...)
			if err := s.persist(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// GetStats summarizes the session transcript.
func (s *Session) GetStats() models.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.SessionStats{
		TotalMessages: len(s.state.Messages),
		CreatedAt:     s.state.CreatedAt,
		LastActivity:  s.state.LastActivity,
	}
	for _, msg := range s.state.Messages {
		switch msg.Role {
		case models.RoleUser:
			stats.UserMessages++
		case models.RoleAssistant:
			stats.AssistantMessages++
		}
	}
	return stats
}
