package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ContextSessionKey stores the stable per-browser session id.
	ContextSessionKey = "sessionID"
	sessionIDKey      = "sid"
)

// SessionID makes sure the cookie session carries an id. It must run after sessions.Sessions.
// A failed save is logged; the request still proceeds with the fresh id.
func SessionID(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, _ := session.Get(sessionIDKey).(string)
		if id == "" {
			id = uuid.NewString()
			session.Set(sessionIDKey, id)
			if err := session.Save(); err != nil {
				logger.Warn("session save failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			}
		}
		c.Set(ContextSessionKey, id)
		c.Next()
	}
}

// Session returns the id set by SessionID, or "" when sessions are not wired.
func Session(c *gin.Context) string {
	return c.GetString(ContextSessionKey)
}
