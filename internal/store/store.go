package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Store struct {
	DB  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx, now: s.now})
	})
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(&Message{}, &Item{}, &UserProfile{})
}

func (s *Store) Messages() *MessageStore { return &MessageStore{db: s.DB, now: s.now} }
func (s *Store) Items() *ItemStore { return &ItemStore{db: s.DB, now: s.now} }
func (s *Store) Profiles() *ProfileStore { return &ProfileStore{db: s.DB, now: s.now} }
