package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fono/internal/channel"
	apperrors "fono/pkg/errors"
)

type recordedEvent struct {
	Channel string
	Event   string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, channelName, eventName string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, recordedEvent{Channel: channelName, Event: eventName, Payload: payload})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) recorded() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}

func TestNewMessageTargetsReceiverChannel(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, time.Second, nil)

	receiver := "auth0|bob"
	d.NewMessage(context.Background(), NewMessageEvent{
		ID:          "m1",
		SenderID:    "auth0|alice",
		ReceiverID:  &receiver,
		Content:     "hi",
		MessageType: "text",
	})

	events := pub.recorded()
	require.Len(t, events, 1)
	require.Equal(t, channel.PrivateChannelFor("auth0|bob"), events[0].Channel)
	require.Equal(t, EventNewMessage, events[0].Event)
}

func TestNewMessageWithoutReceiverBroadcasts(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, time.Second, nil)

	d.NewMessage(context.Background(), NewMessageEvent{ID: "m1", SenderID: "auth0|alice", Content: "hello all"})

	events := pub.recorded()
	require.Len(t, events, 1)
	require.Equal(t, channel.PublicChannel, events[0].Channel)
}

func TestNewMessageSwallowsPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewDispatcher(pub, time.Second, nil)

	// Must not panic and has nothing to return; the send already succeeded.
	d.NewMessage(context.Background(), NewMessageEvent{ID: "m1", SenderID: "auth0|alice"})
}

func TestTypingValidation(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, time.Second, nil)
	ctx := context.Background()

	err := d.Typing(ctx, "auth0|alice", "auth0|bob", "pause")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	err = d.Typing(ctx, "auth0|alice", "", "start")
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	require.Empty(t, pub.recorded(), "invalid requests must not publish")
}

func TestTypingPublishesToTargetChannel(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub, time.Second, nil)
	ctx := context.Background()

	require.NoError(t, d.Typing(ctx, "auth0|alice", "auth0|bob", "start"))
	require.NoError(t, d.Typing(ctx, "auth0|alice", "auth0|bob", "stop"))

	events := pub.recorded()
	require.Len(t, events, 2)
	require.Equal(t, channel.PrivateChannelFor("auth0|bob"), events[0].Channel)
	require.Equal(t, EventTypingStart, events[0].Event)
	require.Equal(t, EventTypingStop, events[1].Event)

	payload, ok := events[0].Payload.(typingEvent)
	require.True(t, ok)
	require.Equal(t, "auth0|alice", payload.FromUserID)
	require.Equal(t, "start", payload.Action)
	require.False(t, payload.Timestamp.IsZero())
}

func TestTypingPublishFailureIsBestEffort(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewDispatcher(pub, time.Second, nil)

	// A broker failure is not the caller's problem.
	require.NoError(t, d.Typing(context.Background(), "auth0|alice", "auth0|bob", "start"))
}
