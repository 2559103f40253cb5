package configs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo for development and
// tests. Categories mirror the migration seed.
type MemoryRepo struct {
	mu        sync.RWMutex
	configs   map[string]Config
	ratings   map[string]map[string]int // configID -> userID -> score
	comments  map[string][]Comment
	purchases map[string]map[string]struct{} // configID -> userID
	cats      []Category
}

// NewMemoryRepo constructs a MemoryRepo with the seeded categories.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		configs:   make(map[string]Config),
		ratings:   make(map[string]map[string]int),
		comments:  make(map[string][]Comment),
		purchases: make(map[string]map[string]struct{}),
		cats: []Category{
			{ID: "survival", Name: "Survival"},
			{ID: "skyblock", Name: "Skyblock"},
			{ID: "factions", Name: "Factions"},
			{ID: "minigames", Name: "Minigames"},
			{ID: "pvp", Name: "PvP"},
			{ID: "other", Name: "Other"},
		},
	}
}

// Create stores a new listing.
func (r *MemoryRepo) Create(ctx context.Context, cfg Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
	return nil
}

// GetByID fetches a listing by id.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return Config{}, ErrNotFound
	}
	return cfg, nil
}

// List returns listings matching the filter, newest first.
func (r *MemoryRepo) List(ctx context.Context, filter ListFilter) ([]Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Config
	for _, cfg := range r.configs {
		if filter.Category != "" && cfg.CategoryID != filter.Category {
			continue
		}
		if filter.Tag != "" && !hasTag(cfg.Tags, filter.Tag) {
			continue
		}
		if filter.Search != "" && !matchesSearch(cfg, filter.Search) {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit, offset := clampPage(filter.Limit, filter.Offset)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// IncrementDownloads bumps a listing's download counter.
func (r *MemoryRepo) IncrementDownloads(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.DownloadCount++
	r.configs[id] = cfg
	return nil
}

// UpsertRating records a score and recomputes the listing's aggregate.
func (r *MemoryRepo) UpsertRating(ctx context.Context, configID, userID string, score int, now time.Time) (float64, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[configID]
	if !ok {
		return 0, 0, ErrNotFound
	}
	scores, ok := r.ratings[configID]
	if !ok {
		scores = make(map[string]int)
		r.ratings[configID] = scores
	}
	scores[userID] = score

	sum := 0
	for _, s := range scores {
		sum += s
	}
	count := len(scores)
	avg := float64(sum) / float64(count)

	cfg.RatingAvg = avg
	cfg.RatingCount = count
	cfg.UpdatedAt = now
	r.configs[configID] = cfg
	return avg, count, nil
}

// AddComment appends a comment.
func (r *MemoryRepo) AddComment(ctx context.Context, comment Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[comment.ConfigID]; !ok {
		return ErrNotFound
	}
	r.comments[comment.ConfigID] = append(r.comments[comment.ConfigID], comment)
	return nil
}

// ListComments returns a listing's comments, newest first.
func (r *MemoryRepo) ListComments(ctx context.Context, configID string, limit, offset int) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.comments[configID]
	out := make([]Comment, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit, offset = clampPage(limit, offset)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreatePurchase records an entitlement.
func (r *MemoryRepo) CreatePurchase(ctx context.Context, configID, userID string, priceCents int64, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[configID]; !ok {
		return ErrNotFound
	}
	buyers, ok := r.purchases[configID]
	if !ok {
		buyers = make(map[string]struct{})
		r.purchases[configID] = buyers
	}
	if _, ok := buyers[userID]; ok {
		return ErrAlreadyPurchased
	}
	buyers[userID] = struct{}{}
	return nil
}

// HasPurchase reports whether the user holds an entitlement.
func (r *MemoryRepo) HasPurchase(ctx context.Context, configID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.purchases[configID][userID]
	return ok, nil
}

// ListCategories returns the seeded taxonomy.
func (r *MemoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Category, len(r.cats))
	copy(out, r.cats)
	return out, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func matchesSearch(cfg Config, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(cfg.Title), needle) ||
		strings.Contains(strings.ToLower(cfg.Description), needle)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
