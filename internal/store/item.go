package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "fono/pkg/errors"
)

// Item is a user-owned note-like record. Every operation is scoped to the
// owning principal; a foreign item is indistinguishable from a missing one.
type Item struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"not null;index"`
	Title       string    `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type ItemStore struct {
	db  *gorm.DB
	now func() time.Time
}

// ItemUpdate carries the optional fields of an item update; nil means leave
// the column alone.
type ItemUpdate struct {
	Title       *string
	Description *string
}

func (i *ItemStore) Create(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := i.now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := i.db.WithContext(ctx).Create(item).Error; err != nil {
		return apperrors.Unavailable("item store insert failed", err)
	}
	return nil
}

func (i *ItemStore) ListForUser(ctx context.Context, userID string) ([]Item, error) {
	var items []Item
	err := i.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, apperrors.Unavailable("item store query failed", err)
	}
	return items, nil
}

func (i *ItemStore) GetForUser(ctx context.Context, id uuid.UUID, userID string) (*Item, error) {
	var item Item
	err := i.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFound("item not found")
	}
	if err != nil {
		return nil, apperrors.Unavailable("item store query failed", err)
	}
	return &item, nil
}

func (i *ItemStore) UpdateForUser(ctx context.Context, id uuid.UUID, userID string, upd ItemUpdate) (*Item, error) {
	changes := map[string]any{"updated_at": i.now().UTC()}
	if upd.Title != nil {
		changes["title"] = *upd.Title
	}
	if upd.Description != nil {
		changes["description"] = *upd.Description
	}
	res := i.db.WithContext(ctx).Model(&Item{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(changes)
	if res.Error != nil {
		return nil, apperrors.Unavailable("item store update failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("item not found")
	}
	return i.GetForUser(ctx, id, userID)
}

func (i *ItemStore) DeleteForUser(ctx context.Context, id uuid.UUID, userID string) error {
	res := i.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&Item{})
	if res.Error != nil {
		return apperrors.Unavailable("item store delete failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("item not found")
	}
	return nil
}
