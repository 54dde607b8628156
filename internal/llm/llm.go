package llm

import (
	"context"

	"github.com/xaenox/email-assistant/internal/models"
)

// Metadata carries the email envelope fields that shape a prompt.
type Metadata struct {
	From    string
	Subject string
}

// Client is the hosted inference capability the assistant depends on.
// Every call is best-effort: implementations may be slow or fail, and
// callers decide whether to degrade or surface the error.
type Client interface {
	// Classify returns a raw category label for an email. Callers coerce
	// the label onto the known enum.
	Classify(ctx context.Context, content string, meta Metadata) (string, error)

	// Summarize returns a 2-3 sentence summary of an email.
	Summarize(ctx context.Context, content string, meta Metadata) (string, error)

	// ExtractActionItems returns the model's raw task list for an email,
	// or the sentinel "None" when there is nothing actionable.
	ExtractActionItems(ctx context.Context, content string) (string, error)

	// Chat generates an assistant reply for a conversation.
	Chat(ctx context.Context, messages []models.ContextMessage) (string, error)
}
