package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	"github.com/garyjia/hr-approval/internal/domain/workflow"
	"github.com/garyjia/hr-approval/internal/infrastructure/auth"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxIdentity     = "identity"
	ctxRetryable    = "retryable"
)

// HTTPRecorder observes served requests
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, seconds float64)
}

// requestIDMiddleware propagates or assigns a correlation id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		// Log request details
		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ctxRequestID),
		)

		if s.deps.Metrics != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			s.deps.Metrics.RecordHTTPRequest(method, route, status, latency.Seconds())
		}
	}
}

// Authenticator resolves bearer tokens into caller identities. Roles always
// come from the directory, never from the token.
type Authenticator struct {
	tokens *auth.TokenManager
	users  port.UserDirectory
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(tokens *auth.TokenManager, users port.UserDirectory) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Resolve verifies a raw token and loads the caller
func (a *Authenticator) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return identity.Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return identity.Identity{}, err
	}

	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to resolve caller: %w", err)
	}
	if user == nil {
		return identity.Identity{}, fmt.Errorf("%w: unknown user %d", workflow.ErrUnauthenticated, userID)
	}
	return user.Identity(), nil
}

// Middleware requires a valid bearer token
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}

		actor, err := a.Resolve(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ctxIdentity, actor)
		c.Next()
	}
}

// TokenFromRequest reads the token of a websocket upgrade from the
// Authorization header or the token query parameter
func TokenFromRequest(c *gin.Context) string {
	if token, err := auth.BearerToken(c.GetHeader("Authorization")); err == nil {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}

// actorFrom returns the identity set by the auth middleware
func actorFrom(c *gin.Context) (identity.Identity, error) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return identity.Identity{}, workflow.ErrUnauthenticated
	}
	actor, ok := v.(identity.Identity)
	if !ok || actor.IsZero() {
		return identity.Identity{}, workflow.ErrUnauthenticated
	}
	return actor, nil
}
