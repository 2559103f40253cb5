package configs

import (
	"context"
	"time"
)

// ListFilter narrows and pages a listing query.
type ListFilter struct {
	Category string
	Tag      string
	Search   string
	Limit    int
	Offset   int
}

// Repo defines persistence operations for marketplace listings. Tag rows for
// unknown names are created inside Create (tag auto-creation); rating
// aggregates are recomputed inside UpsertRating relying on the store's
// transactional guarantees.
type Repo interface {
	Create(ctx context.Context, cfg Config) error
	GetByID(ctx context.Context, id string) (Config, error)
	List(ctx context.Context, filter ListFilter) ([]Config, error)
	IncrementDownloads(ctx context.Context, id string) error
	UpsertRating(ctx context.Context, configID, userID string, score int, now time.Time) (avg float64, count int, err error)
	AddComment(ctx context.Context, comment Comment) error
	ListComments(ctx context.Context, configID string, limit, offset int) ([]Comment, error)
	CreatePurchase(ctx context.Context, configID, userID string, priceCents int64, now time.Time) error
	HasPurchase(ctx context.Context, configID, userID string) (bool, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
