package member

import "context"

// Repository defines persistence operations for Member records.
type Repository interface {
	// GetByID returns nil, nil when no record exists.
	GetByID(ctx context.Context, id int64) (*Member, error)
	// MarkVerified inserts or updates the record with verified=true. Idempotent.
	MarkVerified(ctx context.Context, id int64) error
}
