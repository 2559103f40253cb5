package configs

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"configmarket-backend/internal/shared/metrics"
	"configmarket-backend/internal/uploads"
)

const (
	maxTitleLen       = 140
	maxDescriptionLen = 4000
	maxCommentLen     = 2000
	maxTags           = 10
	maxVersions       = 20
)

// FileSource resolves stored files for listings. Satisfied by
// *uploads.Service.
type FileSource interface {
	FileByID(ctx context.Context, id string) (uploads.StoredFile, error)
	OpenContent(ctx context.Context, file uploads.StoredFile) (io.ReadCloser, error)
}

// Service implements marketplace operations over a Repo and the upload
// store.
type Service struct {
	Repo  Repo
	Files FileSource

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateInput carries the fields a client supplies for a new listing.
type CreateInput struct {
	FileID      string
	Title       string
	Description string
	CategoryID  string
	Versions    []string
	PriceCents  int64
	Tags        []string
}

// Create publishes a stored file as a listing. The file must belong to the
// creator. Tags are normalized and auto-created by the repo.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Config, error) {
	if ownerID == "" {
		return Config{}, ErrInvalidInput
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLen {
		return Config{}, ErrInvalidInput
	}
	if len(in.Description) > maxDescriptionLen {
		return Config{}, ErrInvalidInput
	}
	if in.PriceCents < 0 {
		return Config{}, ErrInvalidInput
	}
	if in.CategoryID == "" {
		return Config{}, ErrInvalidInput
	}
	if ok, err := s.categoryExists(ctx, in.CategoryID); err != nil {
		return Config{}, err
	} else if !ok {
		return Config{}, ErrInvalidInput
	}

	file, err := s.Files.FileByID(ctx, in.FileID)
	if err != nil {
		return Config{}, ErrInvalidInput
	}
	if file.OwnerID != ownerID {
		return Config{}, ErrForbidden
	}

	now := s.now()
	cfg := Config{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		FileID:      file.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Versions:    normalizeVersions(in.Versions),
		PriceCents:  in.PriceCents,
		Tags:        NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.Create(ctx, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s *Service) categoryExists(ctx context.Context, id string) (bool, error) {
	cats, err := s.Repo.ListCategories(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range cats {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Get returns a single listing.
func (s *Service) Get(ctx context.Context, id string) (Config, error) {
	if id == "" {
		return Config{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns listings matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Config, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Tag = normalizeTag(filter.Tag)
	return s.Repo.List(ctx, filter)
}

// Download resolves the listing's stored file for streaming, enforcing the
// paid-entitlement rule and bumping the download counter. The caller owns
// closing the reader.
func (s *Service) Download(ctx context.Context, requester, id string) (uploads.StoredFile, io.ReadCloser, error) {
	cfg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return uploads.StoredFile{}, nil, err
	}
	if cfg.PriceCents > 0 && requester != cfg.OwnerID {
		owned, err := s.Repo.HasPurchase(ctx, cfg.ID, requester)
		if err != nil {
			return uploads.StoredFile{}, nil, err
		}
		if !owned {
			return uploads.StoredFile{}, nil, ErrPaymentRequired
		}
	}
	file, err := s.Files.FileByID(ctx, cfg.FileID)
	if err != nil {
		return uploads.StoredFile{}, nil, err
	}
	rc, err := s.Files.OpenContent(ctx, file)
	if err != nil {
		return uploads.StoredFile{}, nil, err
	}
	if err := s.Repo.IncrementDownloads(ctx, cfg.ID); err != nil {
		rc.Close()
		return uploads.StoredFile{}, nil, err
	}
	metrics.IncDownload()
	return file, rc, nil
}

// Rate records or replaces the caller's score and returns the recomputed
// aggregate. Owners cannot rate their own listings.
func (s *Service) Rate(ctx context.Context, userID, configID string, score int) (avg float64, count int, err error) {
	if userID == "" || score < 1 || score > 5 {
		return 0, 0, ErrInvalidInput
	}
	cfg, err := s.Repo.GetByID(ctx, configID)
	if err != nil {
		return 0, 0, err
	}
	if cfg.OwnerID == userID {
		return 0, 0, ErrForbidden
	}
	return s.Repo.UpsertRating(ctx, configID, userID, score, s.now())
}

// AddComment appends a flat comment to a listing.
func (s *Service) AddComment(ctx context.Context, userID, configID, body string) (Comment, error) {
	body = strings.TrimSpace(body)
	if userID == "" || body == "" || len(body) > maxCommentLen {
		return Comment{}, ErrInvalidInput
	}
	if _, err := s.Repo.GetByID(ctx, configID); err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:        uuid.NewString(),
		ConfigID:  configID,
		UserID:    userID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.Repo.AddComment(ctx, comment); err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// ListComments returns a listing's comments, newest first.
func (s *Service) ListComments(ctx context.Context, configID string, limit, offset int) ([]Comment, error) {
	if _, err := s.Repo.GetByID(ctx, configID); err != nil {
		return nil, err
	}
	return s.Repo.ListComments(ctx, configID, limit, offset)
}

// Purchase records an entitlement at the listing's current price. Owners
// already hold an implicit entitlement, and duplicates are rejected.
func (s *Service) Purchase(ctx context.Context, userID, configID string) error {
	if userID == "" {
		return ErrInvalidInput
	}
	cfg, err := s.Repo.GetByID(ctx, configID)
	if err != nil {
		return err
	}
	if cfg.OwnerID == userID {
		return ErrForbidden
	}
	owned, err := s.Repo.HasPurchase(ctx, configID, userID)
	if err != nil {
		return err
	}
	if owned {
		return ErrAlreadyPurchased
	}
	return s.Repo.CreatePurchase(ctx, configID, userID, cfg.PriceCents, s.now())
}

// Categories returns the seeded taxonomy.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.Repo.ListCategories(ctx)
}

// NormalizeTags lowercases, trims, dedupes, and caps a tag list. Empty
// entries are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func normalizeVersions(versions []string) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == maxVersions {
			break
		}
	}
	return out
}
