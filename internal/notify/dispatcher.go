// Package notify fans store mutations out to realtime channels. Delivery is
// best effort, at most once: persistence is the durable source of truth and a
// client that misses an event falls back to polling the message list.
package notify

import (
	"context"
	"log/slog"
	"time"

	"fono/internal/channel"
	"fono/internal/observability/metrics"
	apperrors "fono/pkg/errors"
)

const (
	EventNewMessage  = "new-message"
	EventTypingStart = "user-typing-start"
	EventTypingStop  = "user-typing-stop"
)

type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(pub Publisher, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{pub: pub, timeout: timeout, logger: logger}
}

// NewMessageEvent is the plaintext-bearing payload delivered to the receiver's
// private channel after a successful insert.
type NewMessageEvent struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	ReceiverID  *string   `json:"receiverId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	CreatedAt   time.Time `json:"createdAt"`
	ReadStatus  bool      `json:"readStatus"`
}

type typingEvent struct {
	FromUserID string    `json:"fromUserId"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMessage publishes a new-message event to the receiver's private channel,
// or to the public broadcast channel when the message has no receiver. It
// returns nothing: the message is already persisted and a publish failure must
// not surface to the sender.
func (d *Dispatcher) NewMessage(ctx context.Context, ev NewMessageEvent) {
	target := channel.PublicChannel
	if ev.ReceiverID != nil {
		target = channel.PrivateChannelFor(*ev.ReceiverID)
	}
	d.publish(ctx, target, EventNewMessage, ev)
}

// Typing publishes an ephemeral typing indicator to the target's private
// channel. Action must be "start" or "stop"; that validation is the only
// checkable failure. The publish itself is fire-and-forget.
func (d *Dispatcher) Typing(ctx context.Context, fromUserID, targetUserID, action string) error {
	if action != "start" && action != "stop" {
		return apperrors.InvalidArg(`action must be "start" or "stop"`)
	}
	if targetUserID == "" {
		return apperrors.InvalidArg("target user id is required")
	}
	d.publish(ctx, channel.PrivateChannelFor(targetUserID), "user-typing-"+action, typingEvent{
		FromUserID: fromUserID,
		Action:     action,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, channelName, eventName string, payload any) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.pub.Publish(ctx, channelName, eventName, payload); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(eventName, "error").Inc()
		d.logger.Error("event publish failed",
			"channel", channelName,
			"event", eventName,
			"error", err,
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(eventName, "ok").Inc()
}
