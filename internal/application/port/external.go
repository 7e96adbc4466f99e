package port

import (
	"context"

	"github.com/garyjia/hr-approval/internal/domain/entity"
)

// NotificationMessage is the content delivered to one recipient
type NotificationMessage struct {
	RequestType entity.RequestType `json:"request_type"`
	RequestID   int64              `json:"request_id"`
	Status      string             `json:"status"`
	Text        string             `json:"text"`
}

// Notifier delivers a message to a user over one channel
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, recipient *entity.User, msg NotificationMessage) error
}

// LarkMessageSender defines message sending operations
type LarkMessageSender interface {
	SendMessage(ctx context.Context, receiveID string, content string) error
}

// MetricsRecorder records workflow outcomes
type MetricsRecorder interface {
	RecordTransition(requestType, action, outcome string)
	RecordSubmission(requestType string)
	RecordNotification(channel, outcome string)
}
