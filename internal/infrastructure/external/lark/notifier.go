package lark

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/hr-approval/internal/application/port"
	"github.com/garyjia/hr-approval/internal/domain/entity"
)

// ChannelLark names the Lark delivery channel
const ChannelLark = "lark"

// ErrNoOpenID is returned when the recipient has no Lark account bound
var ErrNoOpenID = errors.New("recipient has no lark open id")

// Notifier delivers workflow notifications as Lark direct messages
type Notifier struct {
	sender port.LarkMessageSender
	logger *zap.Logger
}

// NewNotifier creates a Lark notifier on top of a message sender
func NewNotifier(sender port.LarkMessageSender, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger,
	}
}

// Channel implements port.Notifier
func (n *Notifier) Channel() string {
	return ChannelLark
}

// Notify implements port.Notifier
func (n *Notifier) Notify(ctx context.Context, recipient *entity.User, msg port.NotificationMessage) error {
	if recipient == nil {
		return fmt.Errorf("recipient cannot be nil")
	}
	if recipient.LarkOpenID == "" {
		n.logger.Debug("Skipping lark delivery",
			zap.Int64("recipient_id", recipient.ID),
			zap.Int64("request_id", msg.RequestID))
		return fmt.Errorf("%w: user %d", ErrNoOpenID, recipient.ID)
	}

	if err := n.sender.SendMessage(ctx, recipient.LarkOpenID, msg.Text); err != nil {
		return fmt.Errorf("failed to notify user %d: %w", recipient.ID, err)
	}
	return nil
}

// Verify interface compliance
var _ port.Notifier = (*Notifier)(nil)
