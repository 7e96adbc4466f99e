package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/service"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
	"github.com/garyjia/hr-approval/internal/infrastructure/auth"
	"github.com/garyjia/hr-approval/internal/infrastructure/idempotency"
	"github.com/garyjia/hr-approval/internal/infrastructure/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeDirectory serves a fixed set of users
type fakeDirectory struct {
	users map[int64]*entity.User
}

func (d *fakeDirectory) RolesOf(ctx context.Context, userID int64) (identity.RoleSet, error) {
	if u, ok := d.users[userID]; ok {
		return u.Roles, nil
	}
	return identity.NewRoleSet(), nil
}

func (d *fakeDirectory) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return d.users[id], nil
}

func (d *fakeDirectory) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) UsersWithRole(ctx context.Context, role identity.Role) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range d.users {
		if u.Roles.Has(role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Create(ctx context.Context, user *entity.User) error {
	return errors.New("read only")
}

type fakeRequests struct {
	mu    sync.Mutex
	calls int
	last  service.SubmitCommand
	err   error
}

func (f *fakeRequests) Submit(ctx context.Context, cmd service.SubmitCommand) (*service.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = cmd
	if f.err != nil {
		return nil, f.err
	}
	req := &entity.Request{ID: int64(f.calls), Type: cmd.Type, RequesterID: cmd.Actor.UserID}
	req.SetStatus(domainwf.TrackStatus, domainwf.StatePending)
	return &service.SubmitResult{Request: req, Message: "Leave request submitted"}, nil
}

func (f *fakeRequests) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	last  workflow.TransitionCommand
	errs  []error
}

func (f *fakeEngine) AttemptTransition(ctx context.Context, cmd workflow.TransitionCommand) (*workflow.TransitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = cmd
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	req := &entity.Request{ID: cmd.RequestID, Type: cmd.Type}
	req.SetStatus(domainwf.TrackStatus, domainwf.StatePendingDirectorApproval)
	return &workflow.TransitionResult{
		Request:        req,
		Track:          domainwf.TrackStatus,
		Role:           cmd.ActingRole,
		PreviousStatus: domainwf.StatePendingHRApproval,
		NewStatus:      domainwf.StatePendingDirectorApproval,
		Message:        "Leave request approved by HR",
	}, nil
}

func (f *fakeEngine) Registry() workflow.Registry {
	return workflow.DefaultRegistry()
}

type fakeProjections struct {
	scope service.Scope
	page  service.Page
	err   error
}

func (f *fakeProjections) List(ctx context.Context, scope service.Scope, actor identity.Identity, t entity.RequestType, page service.Page) ([]*entity.Request, error) {
	f.scope = scope
	f.page = page
	if f.err != nil {
		return nil, f.err
	}
	return []*entity.Request{{ID: 7, Type: t, RequesterID: actor.UserID}}, nil
}

func (f *fakeProjections) Pending(ctx context.Context, actor identity.Identity, t entity.RequestType, page service.Page) ([]*entity.Request, error) {
	return f.List(ctx, service.ScopePending, actor, t, page)
}

func (f *fakeProjections) Mine(ctx context.Context, actor identity.Identity, t entity.RequestType, page service.Page) ([]*entity.Request, error) {
	return f.List(ctx, service.ScopeMine, actor, t, page)
}

func (f *fakeProjections) Finalized(ctx context.Context, actor identity.Identity, t entity.RequestType, page service.Page) ([]*entity.Request, error) {
	return f.List(ctx, service.ScopeFinalized, actor, t, page)
}

func (f *fakeProjections) Acted(ctx context.Context, actor identity.Identity, t entity.RequestType, page service.Page) ([]*entity.Request, error) {
	return f.List(ctx, service.ScopeActed, actor, t, page)
}

func (f *fakeProjections) Get(ctx context.Context, actor identity.Identity, t entity.RequestType, id int64) (*service.RequestDetail, error) {
	if id != 7 {
		return nil, fmt.Errorf("%w: %s %d", domainwf.ErrNotFound, t, id)
	}
	return &service.RequestDetail{Request: &entity.Request{ID: 7, Type: t}}, nil
}

type fakeExports struct{}

func (fakeExports) Export(ctx context.Context, scope service.Scope, actor identity.Identity, t entity.RequestType, w io.Writer) (string, error) {
	_, err := w.Write([]byte("xlsx-bytes"))
	return fmt.Sprintf("%s_%s.xlsx", t, scope), err
}

func (fakeExports) Archive(ctx context.Context, scope service.Scope, actor identity.Identity, t entity.RequestType, store port.FileStorage) (string, error) {
	return "", nil
}

type fakeNotifications struct {
	limit int
}

func (f *fakeNotifications) Create(ctx context.Context, n *entity.Notification) error { return nil }
func (f *fakeNotifications) UpdateStatus(ctx context.Context, id int64, status string, errorMsg string) error {
	return nil
}
func (f *fakeNotifications) MarkSent(ctx context.Context, id int64) error { return nil }
func (f *fakeNotifications) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error) {
	f.limit = limit
	return []*entity.Notification{{ID: 1, RecipientID: recipientID, Channel: "websocket", Status: entity.NotificationStatusSent}}, nil
}
func (f *fakeNotifications) ListRetryable(ctx context.Context, maxAttempts int, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

type fixture struct {
	server        *Server
	tokens        *auth.TokenManager
	requests      *fakeRequests
	engine        *fakeEngine
	projections   *fakeProjections
	notifications *fakeNotifications
	mr            *miniredis.Miniredis
	health        error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := auth.NewTokenManager(auth.Config{Secret: "test-secret", Issuer: "hrflow"})
	require.NoError(t, err)

	dir := &fakeDirectory{users: map[int64]*entity.User{
		1: {ID: 1, Name: "Employee", Email: "emp@example.com", Roles: identity.NewRoleSet(identity.RoleEmployee)},
		4: {ID: 4, Name: "HR", Email: "hr@example.com", Roles: identity.NewRoleSet(identity.RoleHR, identity.RoleDirector)},
	}}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		tokens:        tokens,
		requests:      &fakeRequests{},
		engine:        &fakeEngine{},
		projections:   &fakeProjections{},
		notifications: &fakeNotifications{},
		mr:            mr,
	}

	deps := Dependencies{
		Requests:      f.requests,
		Engine:        f.engine,
		Projections:   f.projections,
		Exports:       fakeExports{},
		Notifications: f.notifications,
		Auth:          NewAuthenticator(tokens, dir),
		Idempotency:   idempotency.NewStore(rdb, time.Hour, zap.NewNop()),
		Metrics:       metrics.NewRecorder(),
		Health:        func(ctx context.Context) error { return f.health },
	}
	f.server = NewServer(DefaultServerConfig(), deps, nopLogger{})
	return f
}

func (f *fixture) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := f.tokens.Issue(userID, "")
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path string, userID int64, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) (Response, map[string]interface{}) {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := resp.Data.(map[string]interface{})
	return resp, data
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", 0, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	f.health = errors.New("database is locked")
	w = f.do(t, http.MethodGet, "/health", 0, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "unhealthy", data["status"])
}

func TestRequestIDPropagated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", 0, "", headerRequestID, "req-123")
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"unknown user", "Bearer " + f.token(t, 99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/requests/leave", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.server.Router().ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp, _ := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, domainwf.KindUnauthenticated, resp.Kind)
		})
	}
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/leaves", 1, `{"leave_type":"casual","days":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp, data := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "Pending", data["status"])
	assert.Equal(t, entity.RequestTypeLeave, f.requests.last.Type)
	assert.Equal(t, int64(1), f.requests.last.Actor.UserID)
	assert.Equal(t, "casual", f.requests.last.Payload["leave_type"])
}

func TestSubmitRequest_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/payroll", 1, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.requests.err = fmt.Errorf("%w: days must be positive", domainwf.ErrValidation)
	w = f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, domainwf.KindValidation, resp.Kind)
	assert.Contains(t, resp.Error, "days must be positive")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t)
	f.requests.err = errors.New("disk I/O error at /var/lib/hrflow.db")

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":1}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, "internal error", resp.Error)
	assert.Equal(t, domainwf.KindInternal, resp.Kind)
}

func TestApproveRequest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave/12/approve", 4,
		`{"role":"hr","comments":"ok by me","stage_payload":{"hr_signature":"HR"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, data := decode(t, w)
	assert.Equal(t, "Pending Director Approval", data["status"])
	assert.Equal(t, "Pending HR Approval", data["previous_status"])
	assert.Equal(t, "status", data["track"])

	cmd := f.engine.last
	assert.Equal(t, int64(12), cmd.RequestID)
	assert.Equal(t, domainwf.TriggerApprove, cmd.Action)
	assert.Equal(t, identity.RoleHR, cmd.ActingRole)
	assert.Equal(t, "ok by me", cmd.Payload["comments"])
	assert.Equal(t, "HR", cmd.Payload["hr_signature"])
}

func TestRejectRequest_WithoutBody(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/asset/3/reject", 4, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domainwf.TriggerReject, f.engine.last.Action)
	assert.Equal(t, entity.RequestTypeAsset, f.engine.last.Type)
	assert.Equal(t, identity.Role(""), f.engine.last.ActingRole)
}

func TestTransition_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		err       error
		status    int
		retryable bool
	}{
		{name: "bad id", path: "/api/v1/requests/leave/abc/approve", status: http.StatusBadRequest},
		{name: "unknown role", path: "/api/v1/requests/leave/1/approve", body: `{"role":"janitor"}`, status: http.StatusBadRequest},
		{name: "not found", path: "/api/v1/requests/leave/1/approve", err: domainwf.ErrNotFound, status: http.StatusNotFound},
		{name: "unauthorized", path: "/api/v1/requests/leave/1/approve", err: domainwf.ErrUnauthorized, status: http.StatusForbidden},
		{name: "invalid transition", path: "/api/v1/requests/leave/1/reject", err: domainwf.ErrInvalidTransition, status: http.StatusConflict},
		{name: "lost race", path: "/api/v1/requests/leave/1/approve", err: domainwf.ErrConcurrentModification, status: http.StatusConflict, retryable: true},
		{name: "undeclared state", path: "/api/v1/requests/leave/1/approve", err: domainwf.ErrInvalidState, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.engine.errs = []error{tt.err}

			w := f.do(t, http.MethodPost, tt.path, 4, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			resp, _ := decode(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.retryable, resp.Retryable)
		})
	}
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/requests/travel?scope=pending&limit=500&offset=-3", 4, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, service.ScopePending, f.projections.scope)
	assert.Equal(t, service.Page{Limit: 20, Offset: 0}, f.projections.page)

	_, data := decode(t, w)
	assert.Equal(t, "pending", data["scope"])
	items, ok := data["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)

	w = f.do(t, http.MethodGet, "/api/v1/requests/travel", 4, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ScopeMine, f.projections.scope)

	w = f.do(t, http.MethodGet, "/api/v1/requests/travel?scope=everything", 4, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRequest(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/requests/permission/7", 1, "")
	require.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Contains(t, data, "request")

	w = f.do(t, http.MethodGet, "/api/v1/requests/permission/8", 1, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportRequests(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/requests/conveyance/export?scope=finalized", 4, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="conveyance_finalized.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx-bytes", w.Body.String())
}

func TestListNotifications(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/notifications?limit=5", 1, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, f.notifications.limit)

	var resp struct {
		Data []*entity.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(1), resp.Data[0].RecipientID)
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	f := newFixture(t)
	body := `{"days":1}`

	first := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, body, headerIdempotencyKey, "abc-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, body, headerIdempotencyKey, "abc-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(headerReplayed))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.requests.Calls())

	// Same key from another user is a separate request
	other := f.do(t, http.MethodPost, "/api/v1/requests/leave", 4, body, headerIdempotencyKey, "abc-1")
	require.Equal(t, http.StatusCreated, other.Code)
	assert.Empty(t, other.Header().Get(headerReplayed))
	assert.Equal(t, 2, f.requests.Calls())
}

func TestIdempotency_BodyMismatch(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":1}`, headerIdempotencyKey, "k")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":2}`, headerIdempotencyKey, "k")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 1, f.requests.Calls())
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	f := newFixture(t)
	f.engine.errs = []error{errors.New("boom")}

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave/5/approve", 4, `{"role":"HR"}`, headerIdempotencyKey, "retry-me")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/leave/5/approve", 4, `{"role":"HR"}`, headerIdempotencyKey, "retry-me")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(headerReplayed))
	assert.Equal(t, 2, f.engine.calls)
}

func TestIdempotency_ConflictIsPinned(t *testing.T) {
	f := newFixture(t)
	f.engine.errs = []error{domainwf.ErrInvalidTransition}

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave/5/reject", 4, `{}`, headerIdempotencyKey, "once")
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/requests/leave/5/reject", 4, `{}`, headerIdempotencyKey, "once")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "true", w.Header().Get(headerReplayed))
	assert.Equal(t, 1, f.engine.calls)
}

func TestIdempotency_ConcurrentModificationReleasesKey(t *testing.T) {
	f := newFixture(t)
	f.engine.errs = []error{domainwf.ErrConcurrentModification}

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave/5/approve", 4, `{"role":"HR"}`, headerIdempotencyKey, "race")
	require.Equal(t, http.StatusConflict, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "concurrent_modification", resp.Kind)
	assert.True(t, resp.Retryable)

	w = f.do(t, http.MethodPost, "/api/v1/requests/leave/5/approve", 4, `{"role":"HR"}`, headerIdempotencyKey, "race")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(headerReplayed))
	assert.Equal(t, 2, f.engine.calls)

	// The successful retry is pinned
	w = f.do(t, http.MethodPost, "/api/v1/requests/leave/5/approve", 4, `{"role":"HR"}`, headerIdempotencyKey, "race")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(headerReplayed))
	assert.Equal(t, 2, f.engine.calls)
}

func TestIdempotency_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":1}`, headerIdempotencyKey, "k")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, f.requests.Calls())

	// Requests without a key do not touch the store
	w = f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{"days":1}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/requests/leave", 1, `{}`, headerIdempotencyKey, strings.Repeat("x", maxIdempotencyKeyLen+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodGet, "/api/v1/requests/leave", 1, "")

	w := f.do(t, http.MethodGet, "/metrics", 0, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hrflow_http_requests_total{method="GET",path="/api/v1/requests/:type",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/requests/leave", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://hr.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", headerIdempotencyKey)
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_ExplicitOrigins(t *testing.T) {
	cfg := corsConfig([]string{"https://hr.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://hr.example.com"}, cfg.AllowOrigins)

	cfg = corsConfig([]string{"https://a", "*"})
	assert.True(t, cfg.AllowAllOrigins)
}
