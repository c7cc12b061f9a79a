package listing

import "context"

// Repository defines persistence operations for listing projections.
type Repository interface {
	// FindByKey returns ErrEntityNotFound when absent.
	FindByKey(ctx context.Context, entityType, entityID string) (*Listing, error)

	// FindByKeyForUpdate is FindByKey holding a row lock until the
	// surrounding transaction ends.
	FindByKeyForUpdate(ctx context.Context, entityType, entityID string) (*Listing, error)

	// Upsert inserts or replaces a listing.
	Upsert(ctx context.Context, l *Listing) error

	// UpdateStatus persists a status change made by MarkSold.
	UpdateStatus(ctx context.Context, l *Listing) error
}
