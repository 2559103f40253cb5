package uploads

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new stored-file record.
func (r *PGRepo) Create(ctx context.Context, file StoredFile) error {
	const query = `
INSERT INTO stored_files (
    id,
    owner_id,
    original_name,
    storage_key,
    size_bytes,
    extension,
    media_type,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var mediaType sql.NullString
	if file.MediaType != "" {
		mediaType = sql.NullString{String: file.MediaType, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		file.ID,
		file.OwnerID,
		file.OriginalName,
		file.StorageKey,
		file.SizeBytes,
		file.Extension,
		mediaType,
		file.CreatedAt,
	)
	return err
}

// GetByID fetches a stored file by id.
func (r *PGRepo) GetByID(ctx context.Context, id string) (StoredFile, error) {
	const query = `
SELECT id, owner_id, original_name, storage_key, size_bytes, extension, media_type, created_at
FROM stored_files
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`

	var file StoredFile
	var mediaType sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&file.ID,
		&file.OwnerID,
		&file.OriginalName,
		&file.StorageKey,
		&file.SizeBytes,
		&file.Extension,
		&mediaType,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, err
	}
	if mediaType.Valid {
		file.MediaType = mediaType.String
	}
	return file, nil
}

// ListByOwner lists an identity's files, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]StoredFile, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, owner_id, original_name, storage_key, size_bytes, extension, media_type, created_at
FROM stored_files
WHERE owner_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredFile
	for rows.Next() {
		var file StoredFile
		var mediaType sql.NullString
		if err := rows.Scan(
			&file.ID,
			&file.OwnerID,
			&file.OriginalName,
			&file.StorageKey,
			&file.SizeBytes,
			&file.Extension,
			&mediaType,
			&file.CreatedAt,
		); err != nil {
			return nil, err
		}
		if mediaType.Valid {
			file.MediaType = mediaType.String
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
