package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chatrelay/internal/auth"
	"go.uber.org/zap"
)

const (
	SessionCookie = "chatrelay_session"
	ClientIDKey   = "client_id"
)

// ClientSession identifies the browser session. A missing or invalid cookie
// gets a fresh client id and a newly signed cookie.
func ClientSession(secret string, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
			if id, err := auth.ParseClientToken(raw, secret); err == nil {
				c.Set(ClientIDKey, id)
				c.Next()
				return
			}
		}

		id := auth.NewClientID()
		tok, err := auth.SignClientToken(id, secret, ttl)
		if err != nil {
			log.Error("sign session cookie failed", zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, tok, int(ttl/time.Second), "/", "", false, true)
		c.Set(ClientIDKey, id)
		c.Next()
	}
}

// ClientID returns the id set by ClientSession.
func ClientID(c *gin.Context) string {
	return c.GetString(ClientIDKey)
}
