package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fono/internal/auth"
	"fono/internal/cipher"
	"fono/internal/notify"
	"fono/internal/store"
	apperrors "fono/pkg/errors"
)

type capturedEvent struct {
	Channel string
	Event   string
	Payload any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
	fail   bool
}

func (c *capturePublisher) Publish(_ context.Context, channelName, eventName string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("publisher unavailable")
	}
	c.events = append(c.events, capturedEvent{Channel: channelName, Event: eventName, Payload: payload})
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) captured() []capturedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedEvent(nil), c.events...)
}

func setupService(t *testing.T) (*MessageService, *store.Store, *capturePublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	st := store.New(db)
	require.NoError(t, st.AutoMigrate(context.Background()))

	key := make([]byte, cipher.KeySize)
	for i := range key {
		key[i] = byte(i * 7)
	}
	eng, err := cipher.New(key)
	require.NoError(t, err)

	pub := &capturePublisher{}
	svc := NewMessageService(st, eng, notify.NewDispatcher(pub, time.Second, nil), 5*time.Second, nil)
	return svc, st, pub
}

func alice() auth.Principal { return auth.Principal{UserID: "auth0|alice"} }
func bob() auth.Principal   { return auth.Principal{UserID: "auth0|bob"} }

func strptr(s string) *string { return &s }

func TestSendPersistsAndDispatches(t *testing.T) {
	svc, st, pub := setupService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice(), SendInput{ReceiverID: strptr("auth0|bob"), Content: "hello bob"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)
	require.Equal(t, "text", msg.MessageType)

	// Only ciphertext hits the store.
	var row store.Message
	require.NoError(t, st.DB.First(&row, "id = ?", msg.ID).Error)
	require.NotContains(t, string(row.Ciphertext), "hello bob")
	require.Len(t, row.IV, cipher.IVSize)
	require.Len(t, row.AuthTag, cipher.TagSize)

	// The realtime event carries the plaintext for the receiver's channel.
	events := pub.captured()
	require.Len(t, events, 1)
	require.Equal(t, notify.EventNewMessage, events[0].Event)
	payload, ok := events[0].Payload.(notify.NewMessageEvent)
	require.True(t, ok)
	require.Equal(t, "hello bob", payload.Content)
	require.Equal(t, msg.ID.String(), payload.ID)
}

func TestSendValidation(t *testing.T) {
	svc, st, pub := setupService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, auth.Principal{}, SendInput{Content: "hi"})
	require.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))

	_, err = svc.Send(ctx, alice(), SendInput{Content: ""})
	require.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	// Nothing persisted, nothing published.
	var count int64
	require.NoError(t, st.DB.Model(&store.Message{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, pub.captured())
}

func TestSendSucceedsWhenDispatchFails(t *testing.T) {
	svc, st, pub := setupService(t)
	pub.fail = true

	msg, err := svc.Send(context.Background(), alice(), SendInput{ReceiverID: strptr("auth0|bob"), Content: "still delivered"})
	require.NoError(t, err)

	var count int64
	require.NoError(t, st.DB.Model(&store.Message{}).Where("id = ?", msg.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestListDecryptsInOrder(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		_, err := svc.Send(ctx, alice(), SendInput{ReceiverID: strptr("auth0|bob"), Content: content})
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, bob(), strptr("auth0|alice"), false)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, want := range []string{"one", "two", "three"} {
		require.Equal(t, want, list[i].Content)
		require.False(t, list[i].DecryptionError)
	}
}

func TestListIsolatesDecryptFailure(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, content := range []string{"first", "second", "third"} {
		msg, err := svc.Send(ctx, alice(), SendInput{ReceiverID: strptr("auth0|bob"), Content: content})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Corrupt the middle row's tag directly in the store.
	require.NoError(t, st.DB.Model(&store.Message{}).
		Where("id = ?", ids[1]).
		Update("auth_tag", []byte("sixteen bad bytes")[:cipher.TagSize]).Error)

	list, err := svc.List(ctx, alice(), strptr("auth0|bob"), false)
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.Equal(t, "first", list[0].Content)
	require.False(t, list[0].DecryptionError)

	require.True(t, list[1].DecryptionError)
	require.Equal(t, "[Could not decrypt message]", list[1].Content)

	require.Equal(t, "third", list[2].Content)
	require.False(t, list[2].DecryptionError)
}

func TestListRequiresPrincipal(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.List(context.Background(), auth.Principal{}, nil, false)
	require.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestDeleteLifecycleThroughService(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, alice(), SendInput{ReceiverID: strptr("auth0|bob"), Content: "ephemeral"})
	require.NoError(t, err)

	// The receiver cannot delete the sender's message.
	err = svc.SoftDelete(ctx, bob(), msg.ID)
	require.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	require.NoError(t, svc.SoftDelete(ctx, alice(), msg.ID))

	list, err := svc.List(ctx, bob(), strptr("auth0|alice"), false)
	require.NoError(t, err)
	require.Empty(t, list)

	err = svc.SoftDelete(ctx, alice(), msg.ID)
	require.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))

	require.NoError(t, svc.Restore(ctx, alice(), msg.ID))

	restored, err := svc.List(ctx, alice(), strptr("auth0|bob"), false)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	require.False(t, restored[0].IsDeleted)
	require.Nil(t, restored[0].DeletedAt)

	require.NoError(t, svc.HardDelete(ctx, alice(), msg.ID))
	err = svc.Restore(ctx, alice(), msg.ID)
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}
