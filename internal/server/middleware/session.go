package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookie names the browser cookie carrying the session ID.
	SessionCookie = "fs_session"
	sessionKey    = "session_id"
	sessionMaxAge = 86400
)

// Session assigns each client a random session ID via cookie. There is no
// server-side session state beyond what the key and token stores track.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookie)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, sessionMaxAge, "/", "", false, true)
		}
		c.Set(sessionKey, sessionID)
		c.Next()
	}
}

// SessionID returns the session ID attached by Session.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
