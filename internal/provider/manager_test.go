package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/storage"
	"go.uber.org/zap"
)

func newTokenServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		*calls++
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "refreshed-token",
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestManager(t *testing.T, tokenURL string) (*Manager, *actor.Mailboxes) {
	t.Helper()

	mailboxes := actor.NewMailboxes(storage.NewMemoryStore(), zap.NewNop())
	gmail := NewGmailClient(GmailConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost/callback",
		TokenURL:     tokenURL,
	}, zap.NewNop())
	return NewManager(mailboxes, gmail, zap.NewNop()), mailboxes
}

func storeCredential(t *testing.T, mailboxes *actor.Mailboxes, expiresAt time.Time) time.Time {
	t.Helper()

	mb, err := mailboxes.Get(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("resolving mailbox: %v", err)
	}
	err = mb.UpsertProviderCredential(context.Background(), &models.ProviderCredential{
		Provider:     ProviderGmail,
		AccountEmail: "user@example.com",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("storing credential: %v", err)
	}
	cred, _ := mb.GetProviderCredential(ProviderGmail)
	return cred.ConnectedAt
}

func TestGetCredentialRefreshAhead(t *testing.T) {
	calls := 0
	server := newTokenServer(t, &calls)
	manager, mailboxes := newTestManager(t, server.URL)

	// Expiring in 2 minutes: inside the 5 minute lookahead window.
	expiry := time.Now().Add(2 * time.Minute)
	connected := storeCredential(t, mailboxes, expiry)

	cred, err := manager.GetCredential(context.Background(), "user@example.com", ProviderGmail)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}

	if calls != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", calls)
	}
	if cred.AccessToken != "refreshed-token" {
		t.Errorf("access token = %q, want refreshed", cred.AccessToken)
	}
	if !cred.ExpiresAt.After(expiry) {
		t.Errorf("ExpiresAt did not advance: %v", cred.ExpiresAt)
	}
	if !cred.ConnectedAt.Equal(connected) {
		t.Errorf("ConnectedAt changed across refresh")
	}

	// The refreshed credential was persisted, so a second read is served
	// without another token call.
	if _, err := manager.GetCredential(context.Background(), "user@example.com", ProviderGmail); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if calls != 1 {
		t.Errorf("refresh calls after second get = %d, want still 1", calls)
	}
}

func TestGetCredentialFreshTokenSkipsRefresh(t *testing.T) {
	calls := 0
	server := newTokenServer(t, &calls)
	manager, mailboxes := newTestManager(t, server.URL)

	storeCredential(t, mailboxes, time.Now().Add(time.Hour))

	cred, err := manager.GetCredential(context.Background(), "user@example.com", ProviderGmail)
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if calls != 0 {
		t.Errorf("refresh calls = %d, want 0 for a fresh token", calls)
	}
	if cred.AccessToken != "stale-token" {
		t.Errorf("access token = %q, want stored token untouched", cred.AccessToken)
	}
}

func TestGetCredentialNotConnected(t *testing.T) {
	manager, _ := newTestManager(t, "http://localhost:0")

	_, err := manager.GetCredential(context.Background(), "user@example.com", ProviderGmail)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestGetCredentialSurfacesRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_grant", http.StatusBadRequest)
	}))
	defer server.Close()

	manager, mailboxes := newTestManager(t, server.URL)
	storeCredential(t, mailboxes, time.Now().Add(time.Minute))

	if _, err := manager.GetCredential(context.Background(), "user@example.com", ProviderGmail); err == nil {
		t.Error("refresh failure was not surfaced")
	}
}

func TestConnectStoresCredential(t *testing.T) {
	manager, mailboxes := newTestManager(t, "http://localhost:0")

	cred, err := manager.Connect(context.Background(), "user@example.com", ProviderGmail, "user@gmail.com", &TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if cred.Provider != ProviderGmail || cred.AccountEmail != "user@gmail.com" {
		t.Errorf("credential = %+v", cred)
	}
	if time.Until(cred.ExpiresAt) < 55*time.Minute {
		t.Errorf("ExpiresAt = %v, want about an hour out", cred.ExpiresAt)
	}

	mb, err := mailboxes.Get(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("resolving mailbox: %v", err)
	}
	if _, exists := mb.GetProviderCredential(ProviderGmail); !exists {
		t.Error("credential not stored in mailbox")
	}
}
