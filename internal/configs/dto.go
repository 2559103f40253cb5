package configs

import "time"

// ConfigResponse is the outward-facing representation of a listing.
type ConfigResponse struct {
	ConfigID      string    `json:"configId"`
	OwnerID       string    `json:"ownerId"`
	FileID        string    `json:"fileId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Versions      []string  `json:"versions"`
	PriceCents    int64     `json:"priceCents"`
	RatingAvg     float64   `json:"ratingAvg"`
	RatingCount   int       `json:"ratingCount"`
	DownloadCount int64     `json:"downloadCount"`
	Tags          []string  `json:"tags"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toResponse(cfg Config) ConfigResponse {
	versions := cfg.Versions
	if versions == nil {
		versions = []string{}
	}
	tags := cfg.Tags
	if tags == nil {
		tags = []string{}
	}
	return ConfigResponse{
		ConfigID:      cfg.ID,
		OwnerID:       cfg.OwnerID,
		FileID:        cfg.FileID,
		Title:         cfg.Title,
		Description:   cfg.Description,
		Category:      cfg.CategoryID,
		Versions:      versions,
		PriceCents:    cfg.PriceCents,
		RatingAvg:     cfg.RatingAvg,
		RatingCount:   cfg.RatingCount,
		DownloadCount: cfg.DownloadCount,
		Tags:          tags,
		CreatedAt:     cfg.CreatedAt,
		UpdatedAt:     cfg.UpdatedAt,
	}
}

// CommentResponse is the outward-facing representation of a comment.
type CommentResponse struct {
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func toCommentResponse(c Comment) CommentResponse {
	return CommentResponse{
		CommentID: c.ID,
		UserID:    c.UserID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}

// RatingResponse carries the recomputed aggregate after a rating upsert.
type RatingResponse struct {
	ConfigID    string  `json:"configId"`
	RatingAvg   float64 `json:"ratingAvg"`
	RatingCount int     `json:"ratingCount"`
}

// CategoryResponse is a taxonomy entry.
type CategoryResponse struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
}
