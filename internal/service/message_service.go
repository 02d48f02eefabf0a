package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fono/internal/auth"
	"fono/internal/cipher"
	"fono/internal/notify"
	"fono/internal/observability/metrics"
	"fono/internal/store"
	apperrors "fono/pkg/errors"
)

// placeholderContent stands in for a row whose authentication tag failed to
// verify. Clients render it verbatim.
const placeholderContent = "[Could not decrypt message]"

type MessageService struct {
	store        *store.Store
	cipher       *cipher.Engine
	dispatcher   *notify.Dispatcher
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

func NewMessageService(st *store.Store, eng *cipher.Engine, d *notify.Dispatcher, storeTimeout time.Duration, logger *slog.Logger) *MessageService {
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageService{
		store:        st,
		cipher:       eng,
		dispatcher:   d,
		storeTimeout: storeTimeout,
		logger:       logger,
		now:          time.Now,
	}
}

type SendInput struct {
	ReceiverID  *string
	Content     string
	MessageType string
}

// DecryptedMessage is one list entry after decryption. DecryptionError marks a
// row whose body could not be authenticated; Content then carries the
// placeholder instead of plaintext.
type DecryptedMessage struct {
	ID              uuid.UUID  `json:"id"`
	SenderID        string     `json:"senderId"`
	ReceiverID      *string    `json:"receiverId"`
	Content         string     `json:"content"`
	MessageType     string     `json:"messageType"`
	CreatedAt       time.Time  `json:"createdAt"`
	ReadStatus      bool       `json:"readStatus"`
	IsDeleted       bool       `json:"isDeleted,omitempty"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
	DecryptionError bool       `json:"decryptionError,omitempty"`
}

// Send encrypts and persists a message, then fires the realtime notification.
// The send is committed once the insert succeeds; a dispatch failure cannot
// roll it back or surface to the caller.
func (s *MessageService) Send(ctx context.Context, principal auth.Principal, in SendInput) (store.Message, error) {
	if principal.UserID == "" {
		return store.Message{}, apperrors.Unauthorized("sender not authenticated")
	}
	if in.Content == "" {
		return store.Message{}, apperrors.InvalidArg("message content is required")
	}

	sealed, err := s.cipher.Encrypt(in.Content)
	if err != nil {
		// Nothing was persisted, so the whole send fails.
		return store.Message{}, apperrors.Wrap(apperrors.CodeInternal, "message encryption failed", err)
	}

	msg := store.Message{
		SenderID:    principal.UserID,
		ReceiverID:  in.ReceiverID,
		Ciphertext:  sealed.Ciphertext,
		IV:          sealed.IV,
		AuthTag:     sealed.Tag,
		MessageType: in.MessageType,
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.store.Messages().Insert(insertCtx, &msg); err != nil {
		return store.Message{}, err
	}
	metrics.MessagesSentTotal.Inc()

	s.dispatcher.NewMessage(ctx, notify.NewMessageEvent{
		ID:          msg.ID.String(),
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
		Content:     in.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt,
		ReadStatus:  msg.ReadStatus,
	})

	return msg, nil
}

// List fetches the conversation and decrypts each row independently. One bad
// row becomes a placeholder entry; it never aborts the batch.
func (s *MessageService) List(ctx context.Context, principal auth.Principal, peerID *string, includeDeleted bool) ([]DecryptedMessage, error) {
	if principal.UserID == "" {
		return nil, apperrors.Unauthorized("user not authenticated")
	}

	listCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	rows, err := s.store.Messages().ListForParticipant(listCtx, principal.UserID, peerID, includeDeleted)
	if err != nil {
		return nil, err
	}

	out := make([]DecryptedMessage, 0, len(rows))
	for _, row := range rows {
		entry := DecryptedMessage{
			ID:          row.ID,
			SenderID:    row.SenderID,
			ReceiverID:  row.ReceiverID,
			MessageType: row.MessageType,
			CreatedAt:   row.CreatedAt,
			ReadStatus:  row.ReadStatus,
			IsDeleted:   row.IsDeleted,
			DeletedAt:   row.DeletedAt,
		}
		plaintext, err := s.cipher.Decrypt(cipher.Sealed{
			IV:         row.IV,
			Ciphertext: row.Ciphertext,
			Tag:        row.AuthTag,
		})
		if err != nil {
			metrics.MessageDecryptFailuresTotal.Inc()
			s.logger.Error("failed to decrypt message", "message_id", row.ID, "error", err)
			entry.Content = placeholderContent
			entry.DecryptionError = true
		} else {
			entry.Content = plaintext
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *MessageService) SoftDelete(ctx context.Context, principal auth.Principal, messageID uuid.UUID) error {
	if principal.UserID == "" {
		return apperrors.Unauthorized("user not authenticated")
	}
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Messages().SoftDelete(opCtx, messageID, principal.UserID)
}

func (s *MessageService) Restore(ctx context.Context, principal auth.Principal, messageID uuid.UUID) error {
	if principal.UserID == "" {
		return apperrors.Unauthorized("user not authenticated")
	}
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Messages().Restore(opCtx, messageID, principal.UserID)
}

func (s *MessageService) HardDelete(ctx context.Context, principal auth.Principal, messageID uuid.UUID) error {
	if principal.UserID == "" {
		return apperrors.Unauthorized("user not authenticated")
	}
	opCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.store.Messages().HardDelete(opCtx, messageID, principal.UserID)
}
