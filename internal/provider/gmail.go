package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProviderGmail is the provider key under which Gmail credentials are stored.
const ProviderGmail = "gmail"

var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
}

// GmailConfig holds the OAuth client settings. The endpoint URLs default to
// Google's and are only overridden in tests.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// GmailClient talks to the Gmail OAuth and message APIs.
type GmailClient struct {
	config GmailConfig
	client *http.Client
	logger *zap.Logger
}

func NewGmailClient(config GmailConfig, logger *zap.Logger) *GmailClient {
	if config.AuthURL == "" {
		config.AuthURL = "https://accounts.google.com/o/oauth2/v2/auth"
	}
	if config.TokenURL == "" {
		config.TokenURL = "https://oauth2.googleapis.com/token"
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = "https://gmail.googleapis.com/gmail/v1"
	}

	return &GmailClient{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// AuthorizationURL builds the consent-screen redirect URL. The state value
// is round-tripped opaquely to identify the user on callback.
func (g *GmailClient) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", g.config.ClientID)
	params.Set("redirect_uri", g.config.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(gmailScopes, " "))
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	params.Set("state", state)

	return g.config.AuthURL + "?" + params.Encode()
}

// TokenResponse is the OAuth token endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (g *GmailClient) postTokenForm(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var tokens TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &tokens, nil
}

// ExchangeCode trades an authorization code for a token pair. Failures are
// surfaced to the caller, not retried.
func (g *GmailClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.config.ClientID)
	form.Set("client_secret", g.config.ClientSecret)
	form.Set("redirect_uri", g.config.RedirectURI)
	form.Set("grant_type", "authorization_code")

	tokens, err := g.postTokenForm(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tokens, nil
}

// RefreshToken obtains a fresh access token from a refresh token.
func (g *GmailClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", g.config.ClientID)
	form.Set("client_secret", g.config.ClientSecret)
	form.Set("grant_type", "refresh_token")

	tokens, err := g.postTokenForm(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tokens, nil
}

// MessageRef identifies one provider-side message.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// ListOptions narrows a message listing.
type ListOptions struct {
	MaxResults int
	Query      string
	PageToken  string
}

// MessageList is one page of message references.
type MessageList struct {
	Messages      []MessageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken"`
}

// ListMessages pages over the user's message ids.
func (g *GmailClient) ListMessages(ctx context.Context, accessToken string, opts ListOptions) (*MessageList, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 10
	}

	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(opts.MaxResults))
	if opts.Query != "" {
		params.Set("q", opts.Query)
	}
	if opts.PageToken != "" {
		params.Set("pageToken", opts.PageToken)
	}

	endpoint := fmt.Sprintf("%s/users/me/messages?%s", g.config.APIBaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail api error: status %d", resp.StatusCode)
	}

	var list MessageList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &list, nil
}

// Email is a fetched provider message reduced to the fields the pipeline
// consumes.
type Email struct {
	ID      string   `json:"id"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Date    string   `json:"date"`
	Content string   `json:"content"`
	Labels  []string `json:"labels"`
	Snippet string   `json:"snippet"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
}

type gmailPart struct {
	MimeType string    `json:"mimeType"`
	Body     gmailBody `json:"body"`
}

type gmailMessage struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload struct {
		Headers []gmailHeader `json:"headers"`
		Body    gmailBody     `json:"body"`
		Parts   []gmailPart   `json:"parts"`
	} `json:"payload"`
	LabelIDs []string `json:"labelIds"`
}

// GetMessage fetches one message in full and extracts its body, preferring
// a text/plain part and falling back to the top-level body.
func (g *GmailClient) GetMessage(ctx context.Context, accessToken, messageID string) (*Email, error) {
	endpoint := fmt.Sprintf("%s/users/me/messages/%s?format=full", g.config.APIBaseURL, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail api error: status %d", resp.StatusCode)
	}

	var msg gmailMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	header := func(name string) string {
		for _, h := range msg.Payload.Headers {
			if strings.EqualFold(h.Name, name) {
				return h.Value
			}
		}
		return ""
	}

	body := ""
	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			body = decodeBody(part.Body.Data)
			break
		}
	}
	if body == "" && msg.Payload.Body.Data != "" {
		body = decodeBody(msg.Payload.Body.Data)
	}

	return &Email{
		ID:      msg.ID,
		From:    header("From"),
		To:      header("To"),
		Subject: header("Subject"),
		Date:    header("Date"),
		Content: body,
		Labels:  msg.LabelIDs,
		Snippet: msg.Snippet,
	}, nil
}

// decodeBody handles the URL-safe base64 message bodies Gmail returns,
// with or without padding.
func decodeBody(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}
