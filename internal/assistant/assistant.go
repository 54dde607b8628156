package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/llm"
	"github.com/xaenox/email-assistant/internal/models"
	"go.uber.org/zap"
)

const (
	// contextEmails caps how many recent emails are folded into the prompt.
	contextEmails = 10
	// contextHistory caps how much transcript is replayed to the model.
	contextHistory = 5

	fallbackReply = "I apologize, I encountered an error processing your request. Please try again."
)

// Reply is the chat endpoint response shape.
type Reply struct {
	Response     string `json:"response"`
	EmailCount   int    `json:"emailCount"`
	HistoryCount int    `json:"historyCount"`
}

// Assistant answers natural-language questions about a user's mailbox,
// grounding the model on recent emails and the session transcript.
type Assistant struct {
	llm       llm.Client
	mailboxes *actor.Mailboxes
	sessions  *actor.Sessions
	logger    *zap.Logger
}

func New(client llm.Client, mailboxes *actor.Mailboxes, sessions *actor.Sessions, logger *zap.Logger) *Assistant {
	return &Assistant{
		llm:       client,
		mailboxes: mailboxes,
		sessions:  sessions,
		logger:    logger,
	}
}

// Respond appends the user message to the session, generates a reply with
// mailbox and history context, appends the reply and returns it. Inference
// failure is absorbed into a canned apology; the two actor writes are
// separate, non-atomic operations.
func (a *Assistant) Respond(ctx context.Context, userID, sessionID, message string) (Reply, error) {
	mailbox, err := a.mailboxes.Get(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to resolve mailbox: %w", err)
	}
	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to resolve session: %w", err)
	}

	emails := mailbox.GetEmails(models.EmailFilter{Limit: contextEmails})
	history := session.GetContext(contextHistory)

	if _, err := session.AddMessage(ctx, models.RoleUser, message, nil); err != nil {
		return Reply{}, fmt.Errorf("failed to record user message: %w", err)
	}

	account, _ := mailbox.Account()
	prompt := a.buildPrompt(emails, account)

	conversation := make([]models.ContextMessage, 0, len(history)+2)
	conversation = append(conversation, models.ContextMessage{Role: models.RoleSystem, Content: prompt})
	conversation = append(conversation, history...)
	conversation = append(conversation, models.ContextMessage{Role: models.RoleUser, Content: message})

	response, err := a.llm.Chat(ctx, conversation)
	if err != nil {
		a.logger.Error("Chat inference failed",
			zap.Error(err),
			zap.String("session_id", sessionID))
		response = fallbackReply
	}

	metadata := map[string]any{}
	if ids := emailIDs(emails); len(ids) > 0 {
		metadata["context_email_ids"] = ids
	}
	if _, err := session.AddMessage(ctx, models.RoleAssistant, response, metadata); err != nil {
		return Reply{}, fmt.Errorf("failed to record assistant message: %w", err)
	}

	return Reply{
		Response:     response,
		EmailCount:   len(emails),
		HistoryCount: len(history),
	}, nil
}

func (a *Assistant) buildPrompt(emails []*models.EmailRecord, account *models.UserAccount) string {
	var summaries strings.Builder
	for i, email := range emails {
		if i > 0 {
			summaries.WriteString("\n\n")
		}
		fmt.Fprintf(&summaries, "Email %d:\nFrom: %s\nSubject: %s\nCategory: %s\n",
			i+1, email.From, email.Subject, email.Category)
		if email.Summary != "" {
			fmt.Fprintf(&summaries, "Summary: %s", email.Summary)
		} else {
			content := email.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Fprintf(&summaries, "Content: %s", content)
		}
	}
	available := summaries.String()
	if available == "" {
		available = "No emails available"
	}

	prefs := models.DefaultPreferences()
	if account != nil {
		prefs = account.Preferences
	}

	return fmt.Sprintf(`You are a helpful email assistant. You help users manage their emails by answering questions, providing summaries, and suggesting actions.

Available emails:
%s

Current user preferences:
- Filter spam automatically: %t
- Summarize important emails: %t
- Notify on important emails: %t

When responding:
1. Be concise and helpful
2. Reference specific emails when relevant
3. Suggest actions (archive, delete, reply) when appropriate
4. If no emails match the query, politely say so`,
		available, prefs.FilterSpam, prefs.AutoSummarize, prefs.NotificationsEnabled)
}

func emailIDs(emails []*models.EmailRecord) []string {
	ids := make([]string, 0, len(emails))
	for _, email := range emails {
		ids = append(ids, email.ID)
	}
	return ids
}
