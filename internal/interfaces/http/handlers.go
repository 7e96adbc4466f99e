package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hr-approval/internal/application/service"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// SubmitResponse is returned by a submission
type SubmitResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TransitionRequest is the body of approve and reject calls
type TransitionRequest struct {
	Role         string                 `json:"role"`
	Comments     string                 `json:"comments"`
	StagePayload map[string]interface{} `json:"stage_payload"`
}

// TransitionResponse is returned by approve and reject
type TransitionResponse struct {
	ID             int64  `json:"id"`
	Track          string `json:"track"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	Terminal       bool   `json:"terminal"`
	Message        string `json:"message"`
}

// ListResponse wraps a projection page
type ListResponse struct {
	Scope  string            `json:"scope"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Items  []*entity.Request `json:"items"`
}

// ListRequestsQuery represents query parameters for listing requests
type ListRequestsQuery struct {
	Scope  string `form:"scope"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   "unhealthy",
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// SubmitRequest handles POST /api/v1/requests/:type
func (h *Handlers) SubmitRequest(c *gin.Context) {
	actor, requestType, ok := h.begin(c)
	if !ok {
		return
	}

	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.fail(c, fmt.Errorf("%w: invalid JSON body: %v", domainwf.ErrValidation, err))
		return
	}

	result, err := h.deps.Requests.Submit(c.Request.Context(), service.SubmitCommand{
		Type:    requestType,
		Actor:   actor,
		Payload: payload,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: SubmitResponse{
			ID:      result.Request.ID,
			Status:  result.Request.DisplayStatus(),
			Message: result.Message,
		},
	})
}

// ApproveRequest handles POST /api/v1/requests/:type/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	h.transition(c, domainwf.TriggerApprove)
}

// RejectRequest handles POST /api/v1/requests/:type/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.transition(c, domainwf.TriggerReject)
}

func (h *Handlers) transition(c *gin.Context, action domainwf.Trigger) {
	actor, requestType, ok := h.begin(c)
	if !ok {
		return
	}
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var body TransitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.fail(c, fmt.Errorf("%w: invalid JSON body: %v", domainwf.ErrValidation, err))
			return
		}
	}

	var role identity.Role
	if strings.TrimSpace(body.Role) != "" {
		r, known := identity.ParseRole(body.Role)
		if !known {
			h.fail(c, fmt.Errorf("%w: unknown role %q", domainwf.ErrValidation, body.Role))
			return
		}
		role = r
	}

	payload := body.StagePayload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if body.Comments != "" {
		if _, set := payload["comments"]; !set {
			payload["comments"] = body.Comments
		}
	}

	result, err := h.deps.Engine.AttemptTransition(c.Request.Context(), workflow.TransitionCommand{
		Type:       requestType,
		RequestID:  id,
		Actor:      actor,
		Action:     action,
		ActingRole: role,
		Payload:    payload,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: TransitionResponse{
			ID:             result.Request.ID,
			Track:          result.Track.String(),
			PreviousStatus: result.PreviousStatus.String(),
			Status:         result.NewStatus.String(),
			Terminal:       result.Terminal,
			Message:        result.Message,
		},
	})
}

// GetRequest handles GET /api/v1/requests/:type/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	actor, requestType, ok := h.begin(c)
	if !ok {
		return
	}
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	detail, err := h.deps.Projections.Get(c.Request.Context(), actor, requestType, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    detail,
	})
}

// ListRequests handles GET /api/v1/requests/:type
func (h *Handlers) ListRequests(c *gin.Context) {
	actor, requestType, ok := h.begin(c)
	if !ok {
		return
	}

	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, fmt.Errorf("%w: invalid query parameters", domainwf.ErrValidation))
		return
	}
	scope, err := service.ParseScope(q.Scope)
	if err != nil {
		h.fail(c, err)
		return
	}

	// Set defaults
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	items, err := h.deps.Projections.List(c.Request.Context(), scope, actor, requestType, service.Page{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ListResponse{
			Scope:  string(scope),
			Limit:  q.Limit,
			Offset: q.Offset,
			Items:  items,
		},
	})
}

// ExportRequests handles GET /api/v1/requests/:type/export
func (h *Handlers) ExportRequests(c *gin.Context) {
	actor, requestType, ok := h.begin(c)
	if !ok {
		return
	}
	scope, err := service.ParseScope(c.Query("scope"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	filename, err := h.deps.Exports.Export(c.Request.Context(), scope, actor, requestType, &buf)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	actor, err := actorFrom(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := h.deps.Notifications.ListByRecipient(c.Request.Context(), actor.UserID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    items,
	})
}

// begin resolves the caller and the :type path segment
func (h *Handlers) begin(c *gin.Context) (identity.Identity, entity.RequestType, bool) {
	actor, err := actorFrom(c)
	if err != nil {
		h.fail(c, err)
		return identity.Identity{}, "", false
	}
	requestType, err := entity.ParseRequestType(c.Param("type"))
	if err != nil {
		h.fail(c, err)
		return identity.Identity{}, "", false
	}
	return actor, requestType, true
}

func (h *Handlers) requestID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Error("Invalid request ID", "id", idStr)
		h.fail(c, fmt.Errorf("%w: invalid request ID %q", domainwf.ErrValidation, idStr))
		return 0, false
	}
	return id, true
}

// fail writes the error envelope, logging unexpected failures
func (h *Handlers) fail(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxRequestID),
			"error", err)
	}
	if resp.Retryable {
		c.Set(ctxRetryable, true)
	}
	c.JSON(status, resp)
}
