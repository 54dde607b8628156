package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/email-assistant/internal/models"
	"go.uber.org/zap"
)

// Per-task sampling policy: classification wants determinism, chat wants
// a natural register.
const (
	classifyMaxTokens  = 20
	classifyTemp       = 0.1
	summarizeMaxTokens = 150
	summarizeTemp      = 0.3
	extractMaxTokens   = 150
	extractTemp        = 0.3
	chatMaxTokens      = 300
	chatTemp           = 0.7

	// Classification only needs the opening of the body.
	classifyContentLimit = 500
)

// OpenAIClient implements Client against the OpenAI chat-completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewOpenAIClient(apiKey, model string, logger *zap.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Classify(ctx context.Context, content string, meta Metadata) (string, error) {
	if len(content) > classifyContentLimit {
		content = content[:classifyContentLimit]
	}

	prompt := fmt.Sprintf(`Classify the following email into ONE category:
- important: Work-related, urgent, from known contacts, requires action
- spam: Unsolicited, promotional with excessive urgency, suspicious links
- newsletter: Subscribed content, updates, regular digests
- promotional: Legitimate marketing, deals, offers
- social: Social media notifications, friend requests
- other: Everything else

From: %s
Subject: %s
Content: %s

Respond with ONLY the category name (lowercase, one word).`, meta.From, meta.Subject, content)

	label, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are an email classifier. Respond with only one word: important, spam, newsletter, promotional, social, or other.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, classifyMaxTokens, classifyTemp)
	if err != nil {
		c.logger.Error("Failed to classify email", zap.Error(err))
		return "", err
	}

	return sanitizeLabel(label), nil
}

// sanitizeLabel lowercases the model output and strips everything that is
// not a letter, so "Important." still matches the enum.
func sanitizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	var b strings.Builder
	for _, r := range label {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *OpenAIClient) Summarize(ctx context.Context, content string, meta Metadata) (string, error) {
	prompt := fmt.Sprintf(`You are an email assistant. Summarize the following email in 2-3 concise sentences. Focus on the main points and action items.

From: %s
Subject: %s

Email Content:
%s

Summary:`, meta.From, meta.Subject, content)

	summary, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a helpful email assistant that creates concise, accurate summaries of emails. Keep summaries to 2-3 sentences maximum.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, summarizeMaxTokens, summarizeTemp)
	if err != nil {
		c.logger.Error("Failed to summarize email", zap.Error(err))
		return "", err
	}
	return summary, nil
}

func (c *OpenAIClient) ExtractActionItems(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(`Extract any action items or tasks from this email. List each as a short, clear task. If there are no action items, respond with "None".

Email:
%s

Action items:`, content)

	items, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: `Extract action items from emails. List them as clear, actionable tasks or respond with "None".`,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	}, extractMaxTokens, extractTemp)
	if err != nil {
		c.logger.Error("Failed to extract action items", zap.Error(err))
		return "", err
	}
	return items, nil
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []models.ContextMessage) (string, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	reply, err := c.complete(ctx, converted, chatMaxTokens, chatTemp)
	if err != nil {
		c.logger.Error("Failed to generate chat response", zap.Error(err))
		return "", err
	}
	return reply, nil
}
