package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/application/dispatcher"
	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/application/workflow"
	"github.com/garyjia/hr-approval/internal/domain/entity"
	"github.com/garyjia/hr-approval/internal/domain/event"
	domainwf "github.com/garyjia/hr-approval/internal/domain/workflow"
)

// NotificationService tells the next approvers and the requester about request progress.
// Delivery is best effort: failures are logged and recorded, never returned to the workflow.
type NotificationService interface {
	// Register subscribes the service to workflow events
	Register(d dispatcher.Dispatcher)

	// HandleSubmitted notifies the first approvers and observers of a new request
	HandleSubmitted(ctx context.Context, evt *event.Event) error

	// HandleTransitioned notifies the next approvers, or the requester once a track is final
	HandleTransitioned(ctx context.Context, evt *event.Event) error

	// Recipients resolves the users who can act on the request's track at state
	Recipients(ctx context.Context, req *entity.Request, track domainwf.Track, state domainwf.State) ([]*entity.User, error)

	// RetryFailed redelivers up to batch FAILED notifications that have had
	// fewer than maxAttempts deliveries, and returns how many went through
	RetryFailed(ctx context.Context, maxAttempts, batch int) (int, error)
}

type notificationServiceImpl struct {
	registry         workflow.Registry
	requestRepo      port.RequestRepository
	users            port.UserDirectory
	notificationRepo port.NotificationRepository
	notifiers        []port.Notifier
	recorder         port.MetricsRecorder
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	registry workflow.Registry,
	requestRepo port.RequestRepository,
	users port.UserDirectory,
	notificationRepo port.NotificationRepository,
	notifiers []port.Notifier,
	recorder port.MetricsRecorder,
	logger Logger,
) NotificationService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &notificationServiceImpl{
		registry:         registry,
		requestRepo:      requestRepo,
		users:            users,
		notificationRepo: notificationRepo,
		notifiers:        notifiers,
		recorder:         recorder,
		logger:           logger,
	}
}

// Register subscribes the service to workflow events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeRequestSubmitted, "notify-submitted", s.HandleSubmitted)
	d.Subscribe(event.TypeRequestTransitioned, "notify-transitioned", s.HandleTransitioned)
}

// HandleSubmitted notifies the first approvers and observers of a new request
func (s *notificationServiceImpl) HandleSubmitted(ctx context.Context, evt *event.Event) error {
	req, def, ok := s.load(ctx, evt)
	if !ok {
		return nil
	}

	recipients := newRecipientSet()
	for _, td := range def.Tracks {
		users, err := s.Recipients(ctx, req, td.Track, req.Status(td.Track))
		if err != nil {
			s.logger.Error("Failed to resolve approvers", "error", err, "request_type", req.Type, "request_id", req.ID)
			continue
		}
		recipients.add(users...)
	}
	for _, role := range def.Observers {
		users, err := s.users.UsersWithRole(ctx, role)
		if err != nil {
			s.logger.Error("Failed to resolve observers", "error", err, "role", role)
			continue
		}
		recipients.add(users...)
	}
	recipients.remove(req.RequesterID)

	msg := port.NotificationMessage{
		RequestType: req.Type,
		RequestID:   req.ID,
		Status:      req.DisplayStatus(),
		Text:        fmt.Sprintf("New %s #%d is awaiting your review.", req.Type.Title(), req.ID),
	}
	s.deliver(ctx, recipients.users, msg)
	return nil
}

// HandleTransitioned notifies the next approvers, or the requester once a track is final
func (s *notificationServiceImpl) HandleTransitioned(ctx context.Context, evt *event.Event) error {
	req, def, ok := s.load(ctx, evt)
	if !ok {
		return nil
	}

	track := domainwf.Track(evt.GetPayloadString(event.KeyTrack))
	td, found := def.Track(track)
	if !found {
		s.logger.Error("Event names an unknown track", "track", track, "request_type", req.Type, "request_id", req.ID)
		return nil
	}
	state := domainwf.State(evt.GetPayloadString(event.KeyNewStatus))

	msg := port.NotificationMessage{
		RequestType: req.Type,
		RequestID:   req.ID,
		Status:      state.String(),
		Text:        fmt.Sprintf("%s #%d: %s", req.Type.Title(), req.ID, evt.GetPayloadString(event.KeyMessage)),
	}

	if td.States.IsTerminal(state) {
		requester, err := s.users.GetByID(ctx, req.RequesterID)
		if err != nil || requester == nil {
			s.logger.Error("Failed to resolve requester", "error", err, "user_id", req.RequesterID)
			return nil
		}
		s.deliver(ctx, []*entity.User{requester}, msg)
		return nil
	}

	users, err := s.Recipients(ctx, req, track, state)
	if err != nil {
		s.logger.Error("Failed to resolve approvers", "error", err, "request_type", req.Type, "request_id", req.ID)
		return nil
	}
	recipients := newRecipientSet()
	recipients.add(users...)
	recipients.remove(evt.GetPayloadInt(event.KeyActorID))
	s.deliver(ctx, recipients.users, msg)
	return nil
}

// Recipients resolves the users who can act on the request's track at state.
// Ownership-scoped stages resolve to the bound owner; others to every holder
// of the stage role.
func (s *notificationServiceImpl) Recipients(ctx context.Context, req *entity.Request, track domainwf.Track, state domainwf.State) ([]*entity.User, error) {
	def, err := s.registry.Get(req.Type)
	if err != nil {
		return nil, err
	}
	td, ok := def.Track(track)
	if !ok {
		return nil, fmt.Errorf("%w: unknown track %q", domainwf.ErrValidation, track)
	}

	recipients := newRecipientSet()
	for _, tr := range td.Machine(state).Transitions() {
		if tr.From != state || tr.Trigger != domainwf.TriggerApprove {
			continue
		}

		if tr.IsOwnershipScoped() {
			ownerID, bound := req.Ref(tr.Owner)
			if !bound {
				continue
			}
			owner, err := s.users.GetByID(ctx, ownerID)
			if err != nil {
				return nil, fmt.Errorf("get owner %d: %w", ownerID, err)
			}
			if owner != nil && owner.Roles.Has(tr.Role) && owner.Roles.HasAll(tr.AlsoRequires...) {
				recipients.add(owner)
			}
			continue
		}

		users, err := s.users.UsersWithRole(ctx, tr.Role)
		if err != nil {
			return nil, fmt.Errorf("users with role %s: %w", tr.Role, err)
		}
		for _, u := range users {
			if u.Roles.HasAll(tr.AlsoRequires...) {
				recipients.add(u)
			}
		}
	}

	return recipients.users, nil
}

func (s *notificationServiceImpl) load(ctx context.Context, evt *event.Event) (*entity.Request, *workflow.Definition, bool) {
	requestType, err := entity.ParseRequestType(evt.RequestType)
	if err != nil {
		s.logger.Error("Event names an unknown request type", "error", err, "event_id", evt.ID)
		return nil, nil, false
	}
	def, err := s.registry.Get(requestType)
	if err != nil {
		s.logger.Error("No workflow for request type", "error", err, "request_type", requestType)
		return nil, nil, false
	}
	req, err := s.requestRepo.GetByID(ctx, requestType, evt.RequestID)
	if err != nil || req == nil {
		s.logger.Error("Failed to load request for notification", "error", err, "request_type", requestType, "request_id", evt.RequestID)
		return nil, nil, false
	}
	return req, def, true
}

// deliver sends msg to every recipient on every channel and records the outcome
func (s *notificationServiceImpl) deliver(ctx context.Context, recipients []*entity.User, msg port.NotificationMessage) {
	for _, user := range recipients {
		for _, notifier := range s.notifiers {
			s.send(ctx, notifier, user, msg)
		}
	}
}

func (s *notificationServiceImpl) send(ctx context.Context, notifier port.Notifier, user *entity.User, msg port.NotificationMessage) {
	record := &entity.Notification{
		RequestType: msg.RequestType,
		RequestID:   msg.RequestID,
		RecipientID: user.ID,
		Channel:     notifier.Channel(),
		Message:     msg.Text,
		Status:      entity.NotificationStatusPending,
		CreatedAt:   time.Now(),
	}
	if s.notificationRepo != nil {
		if err := s.notificationRepo.Create(ctx, record); err != nil {
			s.logger.Error("Failed to record notification", "error", err, "user_id", user.ID)
		}
	}

	s.attempt(ctx, notifier, user, msg, record.ID)
}

// attempt delivers msg once and records the outcome against notification id
func (s *notificationServiceImpl) attempt(ctx context.Context, notifier port.Notifier, user *entity.User, msg port.NotificationMessage, id int64) bool {
	outcome := "ok"
	err := notifier.Notify(ctx, user, msg)
	if err != nil {
		outcome = "failed"
		s.logger.Error("Failed to send notification",
			"error", err,
			"channel", notifier.Channel(),
			"user_id", user.ID,
			"request_type", msg.RequestType,
			"request_id", msg.RequestID,
		)
		if s.notificationRepo != nil && id != 0 {
			if err := s.notificationRepo.UpdateStatus(ctx, id, entity.NotificationStatusFailed, err.Error()); err != nil {
				s.logger.Error("Failed to update notification status", "error", err, "id", id)
			}
		}
	} else {
		s.logger.Info("Notification sent", "channel", notifier.Channel(), "user_id", user.ID, "request_id", msg.RequestID)
		if s.notificationRepo != nil && id != 0 {
			if err := s.notificationRepo.MarkSent(ctx, id); err != nil {
				s.logger.Error("Failed to mark notification sent", "error", err, "id", id)
			}
		}
	}

	if s.recorder != nil {
		s.recorder.RecordNotification(notifier.Channel(), outcome)
	}
	return err == nil
}

// RetryFailed redelivers failed notifications on the channel they were first sent on
func (s *notificationServiceImpl) RetryFailed(ctx context.Context, maxAttempts, batch int) (int, error) {
	if s.notificationRepo == nil {
		return 0, nil
	}
	pending, err := s.notificationRepo.ListRetryable(ctx, maxAttempts, batch)
	if err != nil {
		return 0, fmt.Errorf("list retryable notifications: %w", err)
	}

	channels := make(map[string]port.Notifier, len(s.notifiers))
	for _, n := range s.notifiers {
		channels[n.Channel()] = n
	}

	delivered := 0
	for _, record := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		notifier, ok := channels[record.Channel]
		if !ok {
			// channel was disabled since the first attempt; count it as spent
			if err := s.notificationRepo.UpdateStatus(ctx, record.ID, entity.NotificationStatusFailed, "channel not configured"); err != nil {
				s.logger.Error("Failed to update notification status", "error", err, "id", record.ID)
			}
			continue
		}
		user, err := s.users.GetByID(ctx, record.RecipientID)
		if err != nil || user == nil {
			s.logger.Error("Failed to resolve notification recipient", "error", err, "user_id", record.RecipientID, "id", record.ID)
			continue
		}

		msg := port.NotificationMessage{
			RequestType: record.RequestType,
			RequestID:   record.RequestID,
			Text:        record.Message,
		}
		if req, err := s.requestRepo.GetByID(ctx, record.RequestType, record.RequestID); err == nil && req != nil {
			msg.Status = req.DisplayStatus()
		}

		if s.attempt(ctx, notifier, user, msg, record.ID) {
			delivered++
		}
	}

	if len(pending) > 0 {
		s.logger.Info("Notification retry pass finished", "retried", len(pending), "delivered", delivered)
	}
	return delivered, nil
}

// recipientSet keeps users unique by id in insertion order
type recipientSet struct {
	seen  map[int64]bool
	users []*entity.User
}

func newRecipientSet() *recipientSet {
	return &recipientSet{seen: make(map[int64]bool)}
}

func (r *recipientSet) add(users ...*entity.User) {
	for _, u := range users {
		if u == nil || r.seen[u.ID] {
			continue
		}
		r.seen[u.ID] = true
		r.users = append(r.users, u)
	}
}

func (r *recipientSet) remove(id int64) {
	if !r.seen[id] {
		return
	}
	kept := r.users[:0]
	for _, u := range r.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	r.users = kept
	delete(r.seen, id)
}
