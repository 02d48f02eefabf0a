package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "fono/pkg/errors"
)

// Message is one stored chat message. The body is ciphertext only; plaintext
// never touches the store. IsDeleted/DeletedAt move together under the
// conditional updates below, so a row is never half soft-deleted.
type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SenderID    string     `gorm:"not null;index:idx_messages_sender"`
	ReceiverID  *string    `gorm:"index:idx_messages_receiver"`
	Ciphertext  []byte     `gorm:"not null"`
	IV          []byte     `gorm:"not null"`
	AuthTag     []byte     `gorm:"not null"`
	MessageType string     `gorm:"not null;default:text"`
	ReadStatus  bool       `gorm:"not null;default:false"`
	IsDeleted   bool       `gorm:"not null;default:false"`
	DeletedAt   *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"not null;index"`
}

type MessageStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Insert persists a new message, assigning its id and creation timestamp.
func (m *MessageStore) Insert(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	msg.CreatedAt = m.now().UTC()
	msg.ReadStatus = false
	msg.IsDeleted = false
	msg.DeletedAt = nil
	if err := m.db.WithContext(ctx).Create(msg).Error; err != nil {
		return apperrors.Unavailable("message store insert failed", err)
	}
	return nil
}

// ListForParticipant returns the user's conversation with peerID when given,
// otherwise every message the user sent or received. Rows come back in
// canonical history order: created_at ascending, id ascending on ties.
func (m *MessageStore) ListForParticipant(ctx context.Context, userID string, peerID *string, includeDeleted bool) ([]Message, error) {
	tx := m.db.WithContext(ctx).Model(&Message{})
	if peerID != nil {
		tx = tx.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, *peerID, *peerID, userID)
	} else {
		tx = tx.Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}
	if !includeDeleted {
		tx = tx.Where("is_deleted = ?", false)
	}
	var msgs []Message
	if err := tx.Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, apperrors.Unavailable("message store query failed", err)
	}
	return msgs, nil
}

// SoftDelete hides a message. Only the sender may do this, and only once; the
// ownership and state checks ride in the UPDATE's WHERE clause so concurrent
// requests for the same id cannot both succeed.
func (m *MessageStore) SoftDelete(ctx context.Context, id uuid.UUID, requestingUserID string) error {
	now := m.now().UTC()
	res := m.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", id, requestingUserID, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": now})
	if res.Error != nil {
		return apperrors.Unavailable("message store update failed", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return m.classifyFailure(ctx, id, requestingUserID, true)
}

// Restore undoes a soft delete, clearing both flags in one statement.
func (m *MessageStore) Restore(ctx context.Context, id uuid.UUID, requestingUserID string) error {
	res := m.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", id, requestingUserID, true).
		Updates(map[string]any{"is_deleted": false, "deleted_at": nil})
	if res.Error != nil {
		return apperrors.Unavailable("message store update failed", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return m.classifyFailure(ctx, id, requestingUserID, false)
}

// HardDelete removes the row permanently. There is no undo.
func (m *MessageStore) HardDelete(ctx context.Context, id uuid.UUID, requestingUserID string) error {
	res := m.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", id, requestingUserID).
		Delete(&Message{})
	if res.Error != nil {
		return apperrors.Unavailable("message store delete failed", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var row Message
	err := m.db.WithContext(ctx).Select("sender_id").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("message not found")
	}
	if err != nil {
		return apperrors.Unavailable("message store query failed", err)
	}
	return apperrors.Forbidden("only the sender may delete a message")
}

// classifyFailure explains a zero-row conditional update. The follow-up read
// is for error reporting only; it does not retry the mutation.
func (m *MessageStore) classifyFailure(ctx context.Context, id uuid.UUID, requestingUserID string, wantDeleted bool) error {
	var row Message
	err := m.db.WithContext(ctx).Select("sender_id", "is_deleted").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("message not found")
	}
	if err != nil {
		return apperrors.Unavailable("message store query failed", err)
	}
	if row.SenderID != requestingUserID {
		return apperrors.Forbidden("only the sender may modify a message")
	}
	if wantDeleted && row.IsDeleted {
		return apperrors.Conflict("message is already deleted")
	}
	if !wantDeleted && !row.IsDeleted {
		return apperrors.Conflict("message is not deleted")
	}
	// Owner and state both look valid now: the row flipped under a concurrent
	// request between our update and this read.
	return apperrors.Unavailable("message modified concurrently, retry", nil)
}
