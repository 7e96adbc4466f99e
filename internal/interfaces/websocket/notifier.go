package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
)

// ChannelWebSocket names the live delivery channel
const ChannelWebSocket = "websocket"

// ErrNotConnected is returned when the recipient has no open connection
var ErrNotConnected = errors.New("recipient is not connected")

// Message is the frame pushed to clients
type Message struct {
	Type        string             `json:"type"`
	RequestType entity.RequestType `json:"request_type"`
	RequestID   int64              `json:"request_id"`
	Status      string             `json:"status"`
	Text        string             `json:"text"`
	SentAt      time.Time          `json:"sent_at"`
}

// Notifier pushes notifications to the recipient's open connections
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a websocket notifier
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Channel implements port.Notifier
func (n *Notifier) Channel() string {
	return ChannelWebSocket
}

// Notify implements port.Notifier
func (n *Notifier) Notify(_ context.Context, recipient *entity.User, msg port.NotificationMessage) error {
	frame, err := json.Marshal(Message{
		Type:        "notification",
		RequestType: msg.RequestType,
		RequestID:   msg.RequestID,
		Status:      msg.Status,
		Text:        msg.Text,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if n.hub.SendToUser(recipient.ID, frame) == 0 {
		return fmt.Errorf("%w: user %d", ErrNotConnected, recipient.ID)
	}
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
