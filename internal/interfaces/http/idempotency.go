package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hr-approval/internal/infrastructure/idempotency"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

type bodyRecorder struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyMiddleware replays the stored response of a repeated
// Idempotency-Key. Requests without the header pass through.
func (s *Server) idempotencyMiddleware() gin.HandlerFunc {
	store := s.deps.Idempotency
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		if store == nil || clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{Success: false, Error: "Idempotency-Key too long", Kind: "validation"})
			return
		}

		actor, err := actorFrom(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		hash := idempotency.BodyHash(body)

		scope := strconv.FormatInt(actor.UserID, 10) + ":" + c.Request.Method + ":" + c.Request.URL.Path
		key := store.Key(scope, clientKey)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		claimed, err := store.Begin(ctx, key, hash)
		if err != nil {
			cancel()
			s.logger.Error("Idempotency store unavailable", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{Success: false, Error: "idempotency store unavailable", Kind: "internal"})
			return
		}
		if !claimed {
			cur, err := store.Load(ctx, key)
			cancel()
			switch {
			case err != nil && !errors.Is(err, idempotency.ErrNotFound):
				s.logger.Error("Failed to load idempotency entry", "key", key, "error", err)
			case cur != nil && cur.BodySHA256 != hash:
				c.AbortWithStatusJSON(http.StatusConflict, Response{Success: false, Error: "Idempotency-Key reused with different body", Kind: "conflict"})
				return
			case cur != nil && !cur.InProgress && cur.Code != 0:
				c.Header(headerReplayed, "true")
				contentType := cur.ContentType
				if contentType == "" {
					contentType = "application/json; charset=utf-8"
				}
				c.Data(cur.Code, contentType, cur.Body)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, Response{Success: false, Error: "request is already in progress", Kind: "conflict"})
			return
		}
		cancel()

		rec := &bodyRecorder{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		// Server failures and retryable errors are not pinned so the client
		// can retry with the same key
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer saveCancel()
		if rec.Status() >= http.StatusInternalServerError || c.GetBool(ctxRetryable) {
			if err := store.Release(saveCtx, key); err != nil {
				s.logger.Error("Failed to release idempotency key", "key", key, "error", err)
			}
			return
		}
		err = store.Complete(saveCtx, key, idempotency.Entry{
			Code:        rec.Status(),
			Body:        rec.buf.Bytes(),
			ContentType: rec.Header().Get("Content-Type"),
			BodySHA256:  hash,
		})
		if err != nil {
			s.logger.Error("Failed to store idempotent response", "key", key, "error", err)
		}
	}
}
