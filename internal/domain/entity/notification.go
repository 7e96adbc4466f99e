package entity

import "time"

// Notification delivery states
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification records one best-effort message to a user about a request
type Notification struct {
	ID           int64       `json:"id"`
	RequestType  RequestType `json:"request_type"`
	RequestID    int64       `json:"request_id"`
	RecipientID  int64       `json:"recipient_id"`
	Channel      string      `json:"channel"`
	Message      string      `json:"message"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
	Attempts     int         `json:"attempts"`
	SentAt       *time.Time  `json:"sent_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
