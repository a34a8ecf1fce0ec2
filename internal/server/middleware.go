package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragchat/internal/session"
)

const (
	sessionKey      = "session_id"
	requestIDHeader = "X-Request-ID"
)

// requestLog writes one line when a request arrives and one when it completes.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		s.log.Info("request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
		c.Next()
		s.log.Info("response",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// recovery turns panics into a logged 500.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.Error("unhandled panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

// withSession attaches a session id, issuing a cookie for new browsers.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(session.CookieName)
		if err != nil || !session.Valid(id) {
			id = session.NewID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(session.CookieName, id, int(s.cfg.SessionTTL().Seconds()), "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// limit rejects requests over the route's budget for the client address.
// Routes without a rule fall back to the default rule, if any.
func (s *Server) limit(route string) gin.HandlerFunc {
	rule, ok := s.rules[route]
	if !ok {
		rule, ok = s.rules[routeDefault]
	}
	if !ok {
		return func(c *gin.Context) { c.Next() }
	}
	// Buckets are per path so routes sharing a rule keep separate budgets.
	return func(c *gin.Context) {
		if s.limiter.Allow(c.Request.Method+" "+c.FullPath()+"|"+c.ClientIP(), rule) {
			c.Next()
			return
		}
		s.metrics.RateLimited(route)
		s.log.Warn("rate limit exceeded",
			zap.String("client", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Rate limit exceeded",
			"message": rule.String(),
		})
	}
}
