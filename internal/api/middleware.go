package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/email-assistant/internal/auth"
)

const identityKey = "identity"

// authRequired validates the bearer session token and stores the resolved
// identity in the request context. Handlers read the identity explicitly
// instead of trusting any client-supplied user id.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(401, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		identity, err := s.auth.VerifySession(c.Request.Context(), token)
		if err != nil {
			c.JSON(401, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func currentIdentity(c *gin.Context) auth.Identity {
	value, _ := c.Get(identityKey)
	identity, _ := value.(auth.Identity)
	return identity
}
