package configs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres. Supported versions are stored as a
// comma-joined TEXT column; tags live in a join table and are auto-created
// inside the Create transaction.
type PGRepo struct {
	DB *sql.DB
}

const configColumns = `id, owner_id, file_id, title, description, category_id, versions,
price_cents, rating_avg, rating_count, download_count, created_at, updated_at`

// Create inserts a listing and its tags in one transaction.
func (r *PGRepo) Create(ctx context.Context, cfg Config) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertConfig = `
INSERT INTO configs (
    id, owner_id, file_id, title, description, category_id, versions,
    price_cents, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.ExecContext(
		ctx,
		insertConfig,
		cfg.ID,
		cfg.OwnerID,
		cfg.FileID,
		cfg.Title,
		cfg.Description,
		cfg.CategoryID,
		joinVersions(cfg.Versions),
		cfg.PriceCents,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	); err != nil {
		return err
	}

	for _, tag := range cfg.Tags {
		tagID, err := ensureTag(ctx, tx, tag)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO config_tags (config_id, tag_id) VALUES ($1, $2)`,
			cfg.ID, tagID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ensureTag returns the id of an existing tag or creates it.
func ensureTag(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name,
	); err != nil {
		return "", err
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// GetByID fetches a listing with its tags.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Config, error) {
	query := `
SELECT ` + configColumns + `
FROM configs
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`

	cfg, err := scanConfig(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, ErrNotFound
		}
		return Config{}, err
	}

	tags, err := r.tagsFor(ctx, []string{cfg.ID})
	if err != nil {
		return Config{}, err
	}
	cfg.Tags = tags[cfg.ID]
	return cfg, nil
}

// List returns listings matching the filter, newest first.
func (r *PGRepo) List(ctx context.Context, filter ListFilter) ([]Config, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	var (
		where []string
		args  []any
	)
	where = append(where, "c.deleted_at IS NULL")
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("c.category_id = $%d", len(args)))
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		where = append(where, fmt.Sprintf(
			`EXISTS (
    SELECT 1 FROM config_tags ct
    JOIN tags t ON t.id = ct.tag_id
    WHERE ct.config_id = c.id AND t.name = $%d
)`, len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(c.title ILIKE $%d OR c.description ILIKE $%d)", len(args), len(args)))
	}
	args = append(args, limit, offset)

	query := `
SELECT c.id, c.owner_id, c.file_id, c.title, c.description, c.category_id, c.versions,
c.price_cents, c.rating_avg, c.rating_count, c.download_count, c.created_at, c.updated_at
FROM configs c
WHERE ` + strings.Join(where, " AND ") + `
ORDER BY c.created_at DESC
` + fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Config
	var ids []string
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
		ids = append(ids, cfg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tags = tags[out[i].ID]
	}
	return out, nil
}

// tagsFor loads tag names for a set of listings.
func (r *PGRepo) tagsFor(ctx context.Context, configIDs []string) (map[string][]string, error) {
	placeholders := make([]string, len(configIDs))
	args := make([]any, len(configIDs))
	for i, id := range configIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `
SELECT ct.config_id, t.name
FROM config_tags ct
JOIN tags t ON t.id = ct.tag_id
WHERE ct.config_id IN (` + strings.Join(placeholders, ", ") + `)
ORDER BY t.name`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var configID, name string
		if err := rows.Scan(&configID, &name); err != nil {
			return nil, err
		}
		out[configID] = append(out[configID], name)
	}
	return out, rows.Err()
}

// IncrementDownloads bumps a listing's download counter.
func (r *PGRepo) IncrementDownloads(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(
		ctx,
		`UPDATE configs SET download_count = download_count + 1 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRating records a score and recomputes the aggregate in the same
// transaction; concurrent raters are serialized by the row update.
func (r *PGRepo) UpsertRating(ctx context.Context, configID, userID string, score int, now time.Time) (float64, int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	const upsert = `
INSERT INTO ratings (config_id, user_id, score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (config_id, user_id)
DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`

	if _, err := tx.ExecContext(ctx, upsert, configID, userID, score, now); err != nil {
		return 0, 0, err
	}

	const recompute = `
UPDATE configs SET
    rating_avg = agg.avg,
    rating_count = agg.count,
    updated_at = $2
FROM (
    SELECT AVG(score)::DOUBLE PRECISION AS avg, COUNT(*) AS count
    FROM ratings WHERE config_id = $1
) agg
WHERE configs.id = $1
RETURNING configs.rating_avg, configs.rating_count`

	var avg float64
	var count int
	if err := tx.QueryRowContext(ctx, recompute, configID, now).Scan(&avg, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

// AddComment inserts a comment.
func (r *PGRepo) AddComment(ctx context.Context, comment Comment) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO comments (id, config_id, user_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		comment.ID,
		comment.ConfigID,
		comment.UserID,
		comment.Body,
		comment.CreatedAt,
	)
	return err
}

// ListComments returns a listing's comments, newest first.
func (r *PGRepo) ListComments(ctx context.Context, configID string, limit, offset int) ([]Comment, error) {
	limit, offset = clampPage(limit, offset)
	const query = `
SELECT id, config_id, user_id, body, created_at
FROM comments
WHERE config_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, configID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ConfigID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreatePurchase records an entitlement at the captured price.
func (r *PGRepo) CreatePurchase(ctx context.Context, configID, userID string, priceCents int64, now time.Time) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO purchases (config_id, user_id, price_cents, created_at) VALUES ($1, $2, $3, $4)`,
		configID, userID, priceCents, now,
	)
	return err
}

// HasPurchase reports whether the user holds an entitlement.
func (r *PGRepo) HasPurchase(ctx context.Context, configID, userID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE config_id = $1 AND user_id = $2)`,
		configID, userID,
	).Scan(&exists)
	return exists, err
}

// ListCategories returns the seeded taxonomy.
func (r *PGRepo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (Config, error) {
	var cfg Config
	var versions string
	err := row.Scan(
		&cfg.ID,
		&cfg.OwnerID,
		&cfg.FileID,
		&cfg.Title,
		&cfg.Description,
		&cfg.CategoryID,
		&versions,
		&cfg.PriceCents,
		&cfg.RatingAvg,
		&cfg.RatingCount,
		&cfg.DownloadCount,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return Config{}, err
	}
	cfg.Versions = splitVersions(versions)
	return cfg, nil
}

func joinVersions(versions []string) string {
	return strings.Join(versions, ",")
}

func splitVersions(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

var _ Repo = (*PGRepo)(nil)
