package booking

import (
	"context"

	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/google/uuid"
)

// Filter selects bookings of one entity type. Empty fields are ignored;
// at least one of BuyerID, SellerID or EntityID must be set.
type Filter struct {
	EntityType string
	BuyerID    string
	SellerID   string
	EntityID   string
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking with its full conversation.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByIDForUpdate is FindByID holding a row lock for the surrounding transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindOpenByKey returns the non-terminal booking for key, or nil.
	FindOpenByKey(ctx context.Context, key Key) (*Booking, error)

	// FindOpenByListingForUpdate locks and returns every non-terminal booking of a listing.
	FindOpenByListingForUpdate(ctx context.Context, entityType, entityID string) ([]*Booking, error)

	// Find returns matching bookings, most recent activity first.
	Find(ctx context.Context, filter Filter) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking. A concurrent open booking for the same
	// key surfaces as ErrDuplicateRequest.
	Save(ctx context.Context, booking *Booking) error

	// Update persists status changes and newly appended messages with
	// optimistic locking.
	Update(ctx context.Context, booking *Booking) error
}

// Store groups the repositories that must change together. WithinTx runs fn
// against a transactional Store; fn's error rolls everything back.
type Store interface {
	Bookings() BookingRepository
	Listings() listing.Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
