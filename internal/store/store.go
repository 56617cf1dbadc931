package store

import (
	"context"
	"time"

	"github.com/nhle/shopnotify/internal/model"
)

// CachedPage is the last notification page written to the cache.
type CachedPage struct {
	Items   []model.Notification
	Info    model.PageInfo
	SavedAt time.Time
}

// Store defines the persistence interface for the offline copy of the
// inbox. The cache holds at most one page and one stats snapshot; every
// save replaces what was there.
type Store interface {
	SaveNotifications(ctx context.Context, items []model.Notification, info model.PageInfo) error
	LoadNotifications(ctx context.Context) (*CachedPage, error)

	SaveStats(ctx context.Context, stats model.Stats) error
	// LoadStats returns nil when no snapshot has been saved.
	LoadStats(ctx context.Context) (*model.Stats, error)

	Clear(ctx context.Context) error
	Close() error
}
