package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/event"
	"github.com/garyjia/hr-approval/internal/domain/identity"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

type mockRequestRepo struct {
	mu       sync.Mutex
	requests map[int64]*entity.Request
	nextID   int64
	listErr  error
	lists    []port.RequestFilter
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[int64]*entity.Request)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	req.ID = m.nextID
	m.requests[req.ID] = req
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, requestType entity.RequestType, id int64) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok || req.Type != requestType {
		return nil, nil
	}
	return req, nil
}

func (m *mockRequestRepo) List(ctx context.Context, requestType entity.RequestType, filter port.RequestFilter) ([]*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, filter)
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []*entity.Request
	for _, req := range m.requests {
		if req.Type != requestType || !matches(req, filter) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
		if filter.Limit < len(out) {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func matches(req *entity.Request, f port.RequestFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if req.Status(f.Track) == s {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if f.RequesterID != nil && req.RequesterID != *f.RequesterID {
		return false
	}
	if f.TeamLeadID != nil && (req.TeamLeadID == nil || *req.TeamLeadID != *f.TeamLeadID) {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if req.ID == id {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *mockRequestRepo) UpdateTransition(ctx context.Context, req *entity.Request, track domainwf.Track, expected domainwf.State, expectedVersion int64) error {
	return errors.New("not implemented")
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	histories []*entity.RequestHistory
	acted     map[int64][]int64
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.RequestHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	history.ID = int64(len(m.histories) + 1)
	m.histories = append(m.histories, history)
	return nil
}

func (m *mockHistoryRepo) GetByRequest(ctx context.Context, requestType entity.RequestType, requestID int64) ([]*entity.RequestHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.RequestHistory
	for _, h := range m.histories {
		if h.RequestType == requestType && h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) RequestIDsByActor(ctx context.Context, requestType entity.RequestType, actorID int64) ([]int64, error) {
	return m.acted[actorID], nil
}

type mockUserDirectory struct {
	users map[int64]*entity.User
}

func newMockUserDirectory(users ...*entity.User) *mockUserDirectory {
	m := &mockUserDirectory{users: make(map[int64]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserDirectory) RolesOf(ctx context.Context, userID int64) (identity.RoleSet, error) {
	if u, ok := m.users[userID]; ok {
		return u.Roles, nil
	}
	return identity.NewRoleSet(), nil
}

func (m *mockUserDirectory) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserDirectory) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserDirectory) UsersWithRole(ctx context.Context, role identity.Role) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range m.users {
		if u.Roles.Has(role) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUserDirectory) Create(ctx context.Context, user *entity.User) error {
	m.users[user.ID] = user
	return nil
}

type mockNotificationRepo struct {
	mu            sync.Mutex
	notifications []*entity.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	notification.ID = int64(len(m.notifications) + 1)
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *mockNotificationRepo) UpdateStatus(ctx context.Context, id int64, status string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notifications[id-1]
	n.Status, n.ErrorMessage = status, errorMsg
	n.Attempts++
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notifications[id-1]
	n.Status = entity.NotificationStatusSent
	n.Attempts++
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) ListRetryable(ctx context.Context, maxAttempts int, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.Status == entity.NotificationStatusFailed && n.Attempts < maxAttempts && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

type sentMessage struct {
	userID int64
	msg    port.NotificationMessage
}

type mockNotifier struct {
	mu         sync.Mutex
	sent       []sentMessage
	notifyFunc func(user *entity.User) error
}

func (m *mockNotifier) Channel() string { return "mock" }

func (m *mockNotifier) Notify(ctx context.Context, recipient *entity.User, msg port.NotificationMessage) error {
	if m.notifyFunc != nil {
		if err := m.notifyFunc(recipient); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{userID: recipient.ID, msg: msg})
	return nil
}

func (m *mockNotifier) recipients() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.sent))
	for _, s := range m.sent {
		ids = append(ids, s.userID)
	}
	return ids
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]string
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[event.Type][]string)
	}
	m.handlers[eventType] = append(m.handlers[eventType], name)
}

func (m *mockDispatcher) Publish(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Handlers(eventType event.Type) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[eventType]
}

func (m *mockDispatcher) Close() error { return nil }

type mockRecorder struct {
	mu            sync.Mutex
	submissions   []string
	notifications map[string]int
}

func (m *mockRecorder) RecordTransition(requestType, action, outcome string) {}

func (m *mockRecorder) RecordSubmission(requestType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, requestType)
}

func (m *mockRecorder) RecordNotification(channel, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifications == nil {
		m.notifications = make(map[string]int)
	}
	m.notifications[outcome]++
}

// Directory fixtures shared by the service tests
var (
	userEmployee = &entity.User{ID: 1, Name: "Asha", Email: "asha@example.com", Roles: identity.NewRoleSet(identity.RoleEmployee)}
	userLead     = &entity.User{ID: 2, Name: "Ravi", Email: "ravi@example.com", Roles: identity.NewRoleSet(identity.RoleTeamLead)}
	userLead2    = &entity.User{ID: 3, Name: "Meera", Email: "meera@example.com", Roles: identity.NewRoleSet(identity.RoleTeamLead)}
	userHR       = &entity.User{ID: 4, Name: "Kiran", Email: "kiran@example.com", Roles: identity.NewRoleSet(identity.RoleHR)}
	userDirector = &entity.User{ID: 5, Name: "Dev", Email: "dev@example.com", Roles: identity.NewRoleSet(identity.RoleDirector)}
	userLeadDir  = &entity.User{ID: 6, Name: "Nila", Email: "nila@example.com", Roles: identity.NewRoleSet(identity.RoleTeamLead, identity.RoleDirector)}
	userAccounts = &entity.User{ID: 7, Name: "Om", Email: "om@example.com", Roles: identity.NewRoleSet(identity.RoleAccounts)}
	userProc     = &entity.User{ID: 8, Name: "Pia", Email: "pia@example.com", Roles: identity.NewRoleSet(identity.RoleProcurement)}
)

func directory() *mockUserDirectory {
	return newMockUserDirectory(userEmployee, userLead, userLead2, userHR, userDirector, userLeadDir, userAccounts, userProc)
}
