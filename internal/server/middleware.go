package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Manumac86/collybrix-admin-sub001/internal/identity"
	"github.com/Manumac86/collybrix-admin-sub001/internal/repository"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionCookie   = "__session"
	principalKey    = "principal"

	// Headers honoured only while session checks are off.
	devUserHeader     = "X-User-ID"
	devUserNameHeader = "X-User-Name"
)

// devPrincipal is the caller of every request when session checks are off.
var devPrincipal = identity.Principal{ID: "local-dev", Name: "Local developer"}

// requestID tags every request with an id, reusing the caller's when sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per API request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString(requestIDHeader)))
	}
}

// recovery turns a panicking handler into an INTERNAL_ERROR envelope.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.respondError(c, fmt.Errorf("panic: %v", recovered))
	})
}

// authenticate resolves the caller from the session token.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			p := devPrincipal
			if id := strings.TrimSpace(c.GetHeader(devUserHeader)); id != "" {
				p = identity.Principal{ID: id, Name: c.GetHeader(devUserNameHeader)}
			}
			c.Set(principalKey, p)
			c.Next()
			return
		}

		token, err := sessionToken(c)
		if err != nil {
			s.respondError(c, err)
			return
		}
		p, err := s.verifier.Verify(token)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// sessionToken reads the bearer token, falling back to the session cookie
// the UI sends.
func sessionToken(c *gin.Context) (string, error) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return "", unauthorized("invalid authorization format")
		}
		return token, nil
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", identity.ErrMissingToken
}

func principal(c *gin.Context) identity.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(identity.Principal); ok {
			return p
		}
	}
	return identity.Principal{}
}

// caller is the principal as the retrospective operations see it.
func caller(c *gin.Context) repository.Caller {
	p := principal(c)
	return repository.Caller{ID: p.ID, Name: p.Name}
}
