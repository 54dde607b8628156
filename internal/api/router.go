package api

import (
	"github.com/gin-gonic/gin"
	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/assistant"
	"github.com/xaenox/email-assistant/internal/auth"
	"github.com/xaenox/email-assistant/internal/pipeline"
	"github.com/xaenox/email-assistant/internal/provider"
	"go.uber.org/zap"
)

// Server bundles the core services behind the HTTP surface.
type Server struct {
	auth      *auth.Service
	mailboxes *actor.Mailboxes
	sessions  *actor.Sessions
	processor *pipeline.Processor
	assistant *assistant.Assistant
	gmail     *provider.GmailClient
	providers *provider.Manager
	states    *oauthStates
	logger    *zap.Logger
}

func NewServer(
	authService *auth.Service,
	mailboxes *actor.Mailboxes,
	sessions *actor.Sessions,
	processor *pipeline.Processor,
	asst *assistant.Assistant,
	gmail *provider.GmailClient,
	providers *provider.Manager,
	logger *zap.Logger,
) *Server {
	return &Server{
		auth:      authService,
		mailboxes: mailboxes,
		sessions:  sessions,
		processor: processor,
		assistant: asst,
		gmail:     gmail,
		providers: providers,
		states:    newOAuthStates(),
		logger:    logger,
	}
}

// Router wires every HTTP endpoint.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	/* ---------- public endpoints ---------- */
	r.POST("/api/auth/register", s.handleRegister)
	r.POST("/api/auth/login", s.handleLogin)
	r.GET("/api/auth/verify", s.handleVerify)
	r.GET("/api/oauth/gmail/callback", s.handleGmailCallback)

	/* ---------- protected endpoints ---------- */
	api := r.Group("/api")
	api.Use(s.authRequired())
	{
		api.GET("/emails", s.handleListEmails)
		api.POST("/emails", s.handleIngestEmail)
		api.GET("/emails/stats", s.handleEmailStats)
		api.POST("/emails/:id/read", s.handleMarkRead)
		api.POST("/emails/:id/archive", s.handleArchiveEmail)
		api.DELETE("/emails/:id", s.handleDeleteEmail)

		api.PUT("/preferences", s.handleUpdatePreferences)

		api.POST("/chat", s.handleChat)
		api.GET("/chat/:sessionId/messages", s.handleChatMessages)
		api.GET("/chat/:sessionId/stats", s.handleChatStats)

		api.GET("/oauth/gmail/url", s.handleGmailAuthURL)
		api.POST("/gmail/sync", s.handleGmailSync)
	}

	return r
}
