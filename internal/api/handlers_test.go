package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/assistant"
	"github.com/xaenox/email-assistant/internal/auth"
	"github.com/xaenox/email-assistant/internal/llm"
	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/pipeline"
	"github.com/xaenox/email-assistant/internal/provider"
	"github.com/xaenox/email-assistant/internal/storage"
	"go.uber.org/zap"
)

// scriptedLLM returns fixed answers so handler tests never reach a model.
type scriptedLLM struct{}

func (scriptedLLM) Classify(ctx context.Context, content string, meta llm.Metadata) (string, error) {
	return "other", nil
}

func (scriptedLLM) Summarize(ctx context.Context, content string, meta llm.Metadata) (string, error) {
	return "scripted summary", nil
}

func (scriptedLLM) ExtractActionItems(ctx context.Context, content string) (string, error) {
	return "None", nil
}

func (scriptedLLM) Chat(ctx context.Context, messages []models.ContextMessage) (string, error) {
	return "scripted reply", nil
}

func newTestRouter(t *testing.T, tokenURL string) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	mailboxes := actor.NewMailboxes(store, logger)
	sessions := actor.NewSessions(store, logger)

	authService := auth.NewService(mailboxes, "test-secret", logger)
	processor := pipeline.NewProcessor(scriptedLLM{}, logger)
	asst := assistant.New(scriptedLLM{}, mailboxes, sessions, logger)
	gmail := provider.NewGmailClient(provider.GmailConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		TokenURL:     tokenURL,
	}, logger)
	providers := provider.NewManager(mailboxes, gmail, logger)

	return NewServer(authService, mailboxes, sessions, processor, asst, gmail, providers, logger).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encoding payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	if w.Code != 201 {
		t.Fatalf("register %s: status = %d, body = %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding register response: %v", err)
	}
	return resp.SessionToken
}

func TestChatSessionOwnership(t *testing.T) {
	router := newTestRouter(t, "http://localhost:0")
	alice := registerUser(t, router, "alice@example.com")
	mallory := registerUser(t, router, "mallory@example.com")

	// Alice's first message claims the session.
	if w := doJSON(t, router, http.MethodPost, "/api/chat", alice, map[string]string{
		"message":   "hello",
		"sessionId": "sess-1",
	}); w.Code != 200 {
		t.Fatalf("owner chat: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Another authenticated user cannot read or continue it; the session
	// reads as missing rather than forbidden.
	if w := doJSON(t, router, http.MethodGet, "/api/chat/sess-1/messages", mallory, nil); w.Code != 404 {
		t.Errorf("foreign messages read: status = %d, want 404", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/chat/sess-1/stats", mallory, nil); w.Code != 404 {
		t.Errorf("foreign stats read: status = %d, want 404", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/api/chat", mallory, map[string]string{
		"message":   "let me in",
		"sessionId": "sess-1",
	}); w.Code != 404 {
		t.Errorf("foreign chat: status = %d, want 404", w.Code)
	}

	// The owner still has full access, and the foreign attempt left no trace.
	w := doJSON(t, router, http.MethodGet, "/api/chat/sess-1/messages", alice, nil)
	if w.Code != 200 {
		t.Fatalf("owner messages read: status = %d", w.Code)
	}
	var page models.MessagePage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("transcript length = %d, want the owner's single turn", page.Total)
	}
}

func TestGmailOAuthStateRoundTrip(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(provider.TokenResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    3600,
		})
	}))
	defer tokenServer.Close()

	router := newTestRouter(t, tokenServer.URL)
	alice := registerUser(t, router, "alice@example.com")

	w := doJSON(t, router, http.MethodGet, "/api/oauth/gmail/url", alice, nil)
	if w.Code != 200 {
		t.Fatalf("auth url: status = %d", w.Code)
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding url response: %v", err)
	}
	parsed, err := url.Parse(resp.URL)
	if err != nil {
		t.Fatalf("parsing auth url: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" || state == "alice@example.com" {
		t.Fatalf("state = %q, want a random value, not the user id", state)
	}

	// The unauthenticated callback attributes tokens through the state.
	callback := "/api/oauth/gmail/callback?code=auth-code&state=" + url.QueryEscape(state)
	if w := doJSON(t, router, http.MethodGet, callback, "", nil); w.Code != 200 {
		t.Fatalf("callback: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Single use: replaying the same state fails.
	if w := doJSON(t, router, http.MethodGet, callback, "", nil); w.Code != 400 {
		t.Errorf("replayed state: status = %d, want 400", w.Code)
	}

	// A value the server never issued redeems as nothing.
	forged := "/api/oauth/gmail/callback?code=auth-code&state=alice%40example.com"
	if w := doJSON(t, router, http.MethodGet, forged, "", nil); w.Code != 400 {
		t.Errorf("forged state: status = %d, want 400", w.Code)
	}
}
