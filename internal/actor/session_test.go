package actor

import (
	"context"
	"fmt"
	"testing"

	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/storage"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()

	registry := NewSessions(storage.NewMemoryStore(), zap.NewNop())
	sess, err := registry.Get(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("resolving session: %v", err)
	}
	return sess
}

func addMessage(t *testing.T, sess *Session, role models.Role, content string) *models.ChatMessage {
	t.Helper()

	msg, err := sess.AddMessage(context.Background(), role, content, nil)
	if err != nil {
		t.Fatalf("adding message: %v", err)
	}
	return msg
}

func TestGetContext(t *testing.T) {
	sess := newTestSession(t)

	if got := sess.GetContext(5); len(got) != 0 {
		t.Fatalf("empty session context = %v, want []", got)
	}

	addMessage(t, sess, models.RoleUser, "hi")
	got := sess.GetContext(5)
	if len(got) != 1 {
		t.Fatalf("context length = %d, want 1", len(got))
	}
	if got[0].Role != models.RoleUser || got[0].Content != "hi" {
		t.Errorf("context[0] = %+v, want user/hi", got[0])
	}
}

func TestAddMessageEvictsOldest(t *testing.T) {
	sess := newTestSession(t)
	for i := 0; i < maxMessages+5; i++ {
		addMessage(t, sess, models.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	stats := sess.GetStats()
	if stats.TotalMessages != maxMessages {
		t.Fatalf("total = %d, want %d", stats.TotalMessages, maxMessages)
	}

	recent := sess.GetRecentMessages(maxMessages)
	if recent[0].Content != "msg-5" {
		t.Errorf("oldest surviving message = %q, want msg-5", recent[0].Content)
	}
	if recent[len(recent)-1].Content != fmt.Sprintf("msg-%d", maxMessages+4) {
		t.Errorf("newest message = %q", recent[len(recent)-1].Content)
	}
}

func TestGetRecentMessagesChronological(t *testing.T) {
	sess := newTestSession(t)
	addMessage(t, sess, models.RoleUser, "one")
	addMessage(t, sess, models.RoleAssistant, "two")
	addMessage(t, sess, models.RoleUser, "three")

	recent := sess.GetRecentMessages(2)
	if len(recent) != 2 {
		t.Fatalf("got %d messages, want 2", len(recent))
	}
	if recent[0].Content != "two" || recent[1].Content != "three" {
		t.Errorf("recent = [%q, %q], want chronological tail", recent[0].Content, recent[1].Content)
	}
}

func TestGetMessagesPagination(t *testing.T) {
	sess := newTestSession(t)
	for i := 0; i < 7; i++ {
		addMessage(t, sess, models.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	page := sess.GetMessages(2, 3)
	if page.Total != 7 || page.Offset != 2 || page.Limit != 3 {
		t.Errorf("envelope = %+v, want total=7 offset=2 limit=3", page)
	}
	if len(page.Messages) != 3 || page.Messages[0].Content != "msg-2" {
		t.Errorf("page contents wrong: %v", page.Messages)
	}

	past := sess.GetMessages(10, 3)
	if len(past.Messages) != 0 {
		t.Errorf("out-of-range page returned %d messages", len(past.Messages))
	}
}

func TestSearchMessagesCaseInsensitive(t *testing.T) {
	sess := newTestSession(t)
	addMessage(t, sess, models.RoleUser, "Show me the Budget Report")
	addMessage(t, sess, models.RoleAssistant, "Here it is")

	matches := sess.SearchMessages("budget")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if got := sess.SearchMessages("missing"); len(got) != 0 {
		t.Error("unexpected match for absent term")
	}
}

func TestListingsReturnIsolatedCopies(t *testing.T) {
	sess := newTestSession(t)
	addMessage(t, sess, models.RoleUser, "original")

	recent := sess.GetRecentMessages(5)
	recent[0].Content = "mutated-via-recent"

	page := sess.GetMessages(0, 5)
	page.Messages[0].Content = "mutated-via-page"

	matches := sess.SearchMessages("original")
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	matches[0].Content = "mutated-via-search"

	if got := sess.GetContext(5); got[0].Content != "original" {
		t.Errorf("content = %q, listing results alias actor state", got[0].Content)
	}
}

func TestUpdateMessage(t *testing.T) {
	sess := newTestSession(t)
	msg := addMessage(t, sess, models.RoleUser, "original")

	content := "edited"
	updated, err := sess.UpdateMessage(context.Background(), msg.ID, MessageUpdate{Content: &content})
	if err != nil {
		t.Fatalf("updating: %v", err)
	}
	if updated == nil || updated.Content != "edited" {
		t.Fatalf("updated = %+v, want edited content", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("UpdatedAt not stamped")
	}

	missing, err := sess.UpdateMessage(context.Background(), "nope", MessageUpdate{Content: &content})
	if err != nil {
		t.Fatalf("updating missing: %v", err)
	}
	if missing != nil {
		t.Error("update of unknown id returned a message")
	}
}

func TestDeleteMessage(t *testing.T) {
	sess := newTestSession(t)
	msg := addMessage(t, sess, models.RoleUser, "to delete")

	found, err := sess.DeleteMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if !found {
		t.Fatal("DeleteMessage returned false for existing id")
	}

	found, err = sess.DeleteMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("deleting again: %v", err)
	}
	if found {
		t.Error("DeleteMessage returned true after removal")
	}
}

func TestGetStatsCountsRoles(t *testing.T) {
	sess := newTestSession(t)
	addMessage(t, sess, models.RoleUser, "q1")
	addMessage(t, sess, models.RoleAssistant, "a1")
	addMessage(t, sess, models.RoleUser, "q2")

	stats := sess.GetStats()
	if stats.TotalMessages != 3 || stats.UserMessages != 2 || stats.AssistantMessages != 1 {
		t.Errorf("stats = %+v, want 3/2/1", stats)
	}
	if stats.LastActivity.IsZero() {
		t.Error("LastActivity not set")
	}
}

func TestInitSessionResets(t *testing.T) {
	sess := newTestSession(t)
	addMessage(t, sess, models.RoleUser, "before")

	if err := sess.InitSession(context.Background(), "User@Example.com"); err != nil {
		t.Fatalf("initializing: %v", err)
	}
	if sess.UserID() != "user@example.com" {
		t.Errorf("user id = %q, want normalized", sess.UserID())
	}
	if stats := sess.GetStats(); stats.TotalMessages != 0 {
		t.Errorf("messages after re-init = %d, want 0", stats.TotalMessages)
	}
}
