package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "fono/pkg/errors"
)

// UserProfile is the directory record for a principal. The primary key is the
// opaque identifier issued by the identity provider.
type UserProfile struct {
	UserID        string `gorm:"primaryKey"`
	Email         string `gorm:"not null"`
	DisplayName   string `gorm:"not null"`
	AvatarURL     *string
	Status        string `gorm:"not null;default:offline"`
	StatusMessage *string
	LastSeen      *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type ProfileStore struct {
	db  *gorm.DB
	now func() time.Time
}

// ProfileUpdate carries the optional fields of a profile update. Display name
// and avatar keep their current value when nil; the status message is always
// overwritten, matching the client contract.
type ProfileUpdate struct {
	DisplayName   *string
	AvatarURL     *string
	StatusMessage *string
}

var validStatuses = map[string]bool{"online": true, "offline": true, "away": true}

func ValidStatus(s string) bool { return validStatuses[s] }

func (p *ProfileStore) List(ctx context.Context) ([]UserProfile, error) {
	var profiles []UserProfile
	if err := p.db.WithContext(ctx).Order("display_name ASC").Find(&profiles).Error; err != nil {
		return nil, apperrors.Unavailable("profile store query failed", err)
	}
	return profiles, nil
}

func (p *ProfileStore) Get(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	err := p.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, apperrors.Unavailable("profile store query failed", err)
	}
	return &profile, nil
}

// GetOrCreate returns the profile for userID, creating it on first contact.
// Concurrent first requests for the same user race benignly: the insert is an
// upsert that leaves an existing row untouched.
func (p *ProfileStore) GetOrCreate(ctx context.Context, profile *UserProfile) (*UserProfile, error) {
	existing, err := p.Get(ctx, profile.UserID)
	if err == nil {
		return existing, nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return nil, err
	}
	now := p.now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	if profile.Status == "" {
		profile.Status = "offline"
	}
	err = p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, apperrors.Unavailable("profile store insert failed", err)
	}
	return p.Get(ctx, profile.UserID)
}

func (p *ProfileStore) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*UserProfile, error) {
	changes := map[string]any{
		"updated_at":     p.now().UTC(),
		"status_message": upd.StatusMessage,
	}
	if upd.DisplayName != nil {
		changes["display_name"] = *upd.DisplayName
	}
	if upd.AvatarURL != nil {
		changes["avatar_url"] = *upd.AvatarURL
	}
	res := p.db.WithContext(ctx).Model(&UserProfile{}).
		Where("user_id = ?", userID).
		Updates(changes)
	if res.Error != nil {
		return nil, apperrors.Unavailable("profile store update failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("user profile not found")
	}
	return p.Get(ctx, userID)
}

func (p *ProfileStore) UpdateStatus(ctx context.Context, userID, status string) (*UserProfile, error) {
	if !ValidStatus(status) {
		return nil, apperrors.InvalidArg("invalid status value")
	}
	res := p.db.WithContext(ctx).Model(&UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"status": status, "last_seen": p.now().UTC()})
	if res.Error != nil {
		return nil, apperrors.Unavailable("profile store update failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("user profile not found")
	}
	return p.Get(ctx, userID)
}
