package configs

import "time"

// Config is a marketplace listing backed by a stored file.
type Config struct {
	ID            string
	OwnerID       string
	FileID        string
	Title         string
	Description   string
	CategoryID    string
	Versions      []string
	PriceCents    int64
	RatingAvg     float64
	RatingCount   int
	DownloadCount int64
	Tags          []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Comment is a flat user comment on a listing.
type Comment struct {
	ID        string
	ConfigID  string
	UserID    string
	Body      string
	CreatedAt time.Time
}

// Category is a fixed taxonomy entry seeded by migration.
type Category struct {
	ID   string
	Name string
}
