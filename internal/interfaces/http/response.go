package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hr-approval/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// statusFor maps a workflow error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrInvalidState):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse builds the envelope of a failed call. Internal errors are not echoed.
func errorResponse(err error) (int, Response) {
	status := statusFor(err)
	resp := Response{
		Success:   false,
		Error:     err.Error(),
		Kind:      workflow.Kind(err),
		Retryable: workflow.IsRetryable(err),
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	return status, resp
}

// abortWithError writes the envelope of err and stops the chain
func abortWithError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	if resp.Retryable {
		c.Set(ctxRetryable, true)
	}
	c.AbortWithStatusJSON(status, resp)
}
