package uploads

import "context"

// Repo defines persistence operations for stored files.
type Repo interface {
	Create(ctx context.Context, file StoredFile) error
	GetByID(ctx context.Context, id string) (StoredFile, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]StoredFile, error)
}
