package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/auth"
	"github.com/xaenox/email-assistant/internal/models"
	"github.com/xaenox/email-assistant/internal/provider"
	"go.uber.org/zap"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

type ingestRequest struct {
	From    string `json:"from" binding:"required"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content" binding:"required"`
}

type syncRequest struct {
	MaxResults int `json:"maxResults"`
}

/* ================================================================
   AUTH
================================================================ */

func (s *Server) handleRegister(c *gin.Context) {
	var in registerRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	identity, token, err := s.auth.Register(c.Request.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
			c.JSON(400, gin.H{"error": err.Error()})
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(409, gin.H{"error": err.Error()})
		default:
			s.logger.Error("Registration failed", zap.Error(err))
			c.JSON(500, gin.H{"error": "Registration failed"})
		}
		return
	}

	c.JSON(201, gin.H{"user": identity, "sessionToken": token})
}

func (s *Server) handleLogin(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	identity, token, err := s.auth.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(401, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Login failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(200, gin.H{"user": identity, "sessionToken": token})
}

func (s *Server) handleVerify(c *gin.Context) {
	identity, err := s.auth.VerifySession(c.Request.Context(), bearerToken(c))
	if err != nil {
		c.JSON(401, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"valid": true, "user": identity})
}

/* ================================================================
   EMAILS
================================================================ */

func (s *Server) handleListEmails(c *gin.Context) {
	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	filter := models.EmailFilter{
		Category:   models.Category(c.Query("category")),
		UnreadOnly: c.Query("unread") == "true",
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}

	emails := mailbox.GetEmails(filter)
	c.JSON(200, gin.H{"count": len(emails), "emails": emails})
}

func (s *Server) handleIngestEmail(c *gin.Context) {
	var in ingestRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	draft := s.processor.ProcessEmail(c.Request.Context(), models.RawEmail{
		From:    in.From,
		To:      in.To,
		Subject: in.Subject,
		Content: in.Content,
	})

	record, err := mailbox.AddEmail(c.Request.Context(), draft)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to store email"})
		return
	}

	c.JSON(201, gin.H{"email": record})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	found, err := mailbox.MarkRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update email"})
		return
	}
	if !found {
		c.JSON(404, gin.H{"error": "Email not found"})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleArchiveEmail(c *gin.Context) {
	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	found, err := mailbox.MarkArchived(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update email"})
		return
	}
	if !found {
		c.JSON(404, gin.H{"error": "Email not found"})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleDeleteEmail(c *gin.Context) {
	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	found, err := mailbox.DeleteEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to delete email"})
		return
	}
	if !found {
		c.JSON(404, gin.H{"error": "Email not found"})
		return
	}
	c.JSON(200, gin.H{"success": true})
}

func (s *Server) handleEmailStats(c *gin.Context) {
	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}
	c.JSON(200, mailbox.GetStats())
}

func (s *Server) handleUpdatePreferences(c *gin.Context) {
	var prefs models.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	identity := currentIdentity(c)
	mailbox, err := s.mailboxes.Get(c.Request.Context(), identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	updated, err := mailbox.UpdatePreferences(c.Request.Context(), prefs)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update preferences"})
		return
	}
	c.JSON(200, gin.H{"preferences": updated})
}

/* ================================================================
   CHAT
================================================================ */

func (s *Server) handleChat(c *gin.Context) {
	var in chatRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	identity := currentIdentity(c)
	session, err := s.sessions.Get(c.Request.Context(), in.SessionID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load session"})
		return
	}
	switch session.UserID() {
	case "":
		if err := session.InitSession(c.Request.Context(), identity.ID); err != nil {
			c.JSON(500, gin.H{"error": "Failed to initialize session"})
			return
		}
	case identity.ID:
	default:
		// First writer claims the session; everyone else sees it as missing.
		c.JSON(404, gin.H{"error": "Session not found"})
		return
	}

	reply, err := s.assistant.Respond(c.Request.Context(), identity.ID, in.SessionID, in.Message)
	if err != nil {
		s.logger.Error("Chat failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Chat failed"})
		return
	}

	c.JSON(200, gin.H{
		"response": reply.Response,
		"context": gin.H{
			"emailCount":   reply.EmailCount,
			"historyCount": reply.HistoryCount,
		},
	})
}

// ownedSession resolves the sessionId path param and requires that the
// session belongs to the authenticated user. A foreign (or unclaimed)
// session reads as missing, so the endpoint is not a session-id oracle.
func (s *Server) ownedSession(c *gin.Context) (*actor.Session, bool) {
	session, err := s.sessions.Get(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load session"})
		return nil, false
	}
	if session.UserID() != currentIdentity(c).ID {
		c.JSON(404, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}

func (s *Server) handleChatMessages(c *gin.Context) {
	session, ok := s.ownedSession(c)
	if !ok {
		return
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	if query := c.Query("q"); query != "" {
		matches := session.SearchMessages(query)
		c.JSON(200, gin.H{"count": len(matches), "messages": matches})
		return
	}

	c.JSON(200, session.GetMessages(offset, limit))
}

func (s *Server) handleChatStats(c *gin.Context) {
	session, ok := s.ownedSession(c)
	if !ok {
		return
	}
	c.JSON(200, session.GetStats())
}

/* ================================================================
   GMAIL OAUTH + SYNC
================================================================ */

func (s *Server) handleGmailAuthURL(c *gin.Context) {
	identity := currentIdentity(c)

	state, err := auth.GenerateToken(16)
	if err != nil {
		s.logger.Error("State generation failed", zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to start authorization"})
		return
	}
	s.states.issue(state, identity.ID)

	c.JSON(200, gin.H{"url": s.gmail.AuthorizationURL(state)})
}

func (s *Server) handleGmailCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(400, gin.H{"error": "Missing code or state"})
		return
	}

	userID, ok := s.states.redeem(state)
	if !ok {
		c.JSON(400, gin.H{"error": "Invalid or expired state"})
		return
	}

	tokens, err := s.gmail.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		s.logger.Error("Token exchange failed", zap.Error(err))
		c.JSON(502, gin.H{"error": "Token exchange failed"})
		return
	}

	cred, err := s.providers.Connect(c.Request.Context(), userID, provider.ProviderGmail, userID, tokens)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to store credential"})
		return
	}

	c.JSON(200, gin.H{"connected": true, "provider": cred.Provider, "expiresAt": cred.ExpiresAt})
}

// handleGmailSync pulls recent provider messages through the pipeline into
// the mailbox. Delivery is at-least-once: a message that fails to fetch is
// logged and skipped, the rest still land.
func (s *Server) handleGmailSync(c *gin.Context) {
	var in syncRequest
	_ = c.ShouldBindJSON(&in)

	identity := currentIdentity(c)
	ctx := c.Request.Context()

	cred, err := s.providers.GetCredential(ctx, identity.ID, provider.ProviderGmail)
	if err != nil {
		if errors.Is(err, provider.ErrNotConnected) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Credential lookup failed", zap.Error(err))
		c.JSON(502, gin.H{"error": "Provider unavailable"})
		return
	}

	list, err := s.gmail.ListMessages(ctx, cred.AccessToken, provider.ListOptions{MaxResults: in.MaxResults})
	if err != nil {
		s.logger.Error("Message listing failed", zap.Error(err))
		c.JSON(502, gin.H{"error": "Provider unavailable"})
		return
	}

	mailbox, err := s.mailboxes.Get(ctx, identity.ID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to load mailbox"})
		return
	}

	synced := 0
	for _, ref := range list.Messages {
		msg, err := s.gmail.GetMessage(ctx, cred.AccessToken, ref.ID)
		if err != nil {
			s.logger.Warn("Skipping message",
				zap.Error(err),
				zap.String("message_id", ref.ID))
			continue
		}

		draft := s.processor.ProcessEmail(ctx, models.RawEmail{
			From:    msg.From,
			To:      msg.To,
			Subject: msg.Subject,
			Content: msg.Content,
		})
		if _, err := mailbox.AddEmail(ctx, draft); err != nil {
			s.logger.Error("Failed to store synced email",
				zap.Error(err),
				zap.String("message_id", ref.ID))
			continue
		}
		synced++
	}

	c.JSON(200, gin.H{"synced": synced, "listed": len(list.Messages)})
}
