package models

import "time"

// Role identifies the sender of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem never appears in a stored transcript; it only shapes the
	// prompt handed to the inference capability.
	RoleSystem Role = "system"
)

// ChatMessage is a single entry in a session's conversation transcript.
type ChatMessage struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// ContextMessage is the minimal shape handed to the inference capability.
type ContextMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MessagePage is a paginated slice of a session transcript.
type MessagePage struct {
	Messages []*ChatMessage `json:"messages"`
	Total    int            `json:"total"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
}

// SessionStats summarizes a chat session.
type SessionStats struct {
	TotalMessages     int       `json:"total_messages"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivity      time.Time `json:"last_activity"`
}
