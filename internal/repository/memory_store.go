package repository

import (
	"context"
	"sort"
	"sync"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
	"github.com/google/uuid"
)

type listingKey struct {
	entityType string
	entityID   string
}

type memoryState struct {
	bookings map[uuid.UUID]*bookingDomain.Booking
	listings map[listingKey]*listing.Listing
}

func newMemoryState() *memoryState {
	return &memoryState{
		bookings: make(map[uuid.UUID]*bookingDomain.Booking),
		listings: make(map[listingKey]*listing.Listing),
	}
}

// clone copies the maps. Stored aggregates are never mutated in place, so
// sharing the pointers is safe.
func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		bookings: make(map[uuid.UUID]*bookingDomain.Booking, len(st.bookings)),
		listings: make(map[listingKey]*listing.Listing, len(st.listings)),
	}
	for k, v := range st.bookings {
		out.bookings[k] = v
	}
	for k, v := range st.listings {
		out.listings[k] = v
	}
	return out
}

// MemoryStore is an in-process booking.Store. One mutex serializes every
// operation; a transaction works on a copy of the state that replaces the
// live state on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (s *MemoryStore) view(fn func(st *memoryState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// Bookings returns a repository that locks the store per call.
func (s *MemoryStore) Bookings() bookingDomain.BookingRepository {
	return &memoryBookingRepository{view: s.view}
}

// Listings returns a repository that locks the store per call.
func (s *MemoryStore) Listings() listing.Repository {
	return &memoryListingRepository{view: s.view}
}

// WithinTx holds the store lock for the whole of fn.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx bookingDomain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) view(fn func(st *memoryState) error) error {
	return fn(t.state)
}

func (t *memoryTx) Bookings() bookingDomain.BookingRepository {
	return &memoryBookingRepository{view: t.view}
}

func (t *memoryTx) Listings() listing.Repository {
	return &memoryListingRepository{view: t.view}
}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx bookingDomain.Store) error) error {
	nested := &memoryTx{state: t.state.clone()}
	if err := fn(ctx, nested); err != nil {
		return err
	}
	t.state = nested.state
	return nil
}

// --- Bookings ---

type memoryBookingRepository struct {
	view func(fn func(st *memoryState) error) error
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var out *bookingDomain.Booking
	err := r.view(func(st *memoryState) error {
		bk, ok := st.bookings[id]
		if !ok {
			return bookingDomain.NotFound(id.String())
		}
		out = copyBooking(bk)
		return nil
	})
	return out, err
}

func (r *memoryBookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryBookingRepository) FindOpenByKey(_ context.Context, key bookingDomain.Key) (*bookingDomain.Booking, error) {
	var out *bookingDomain.Booking
	err := r.view(func(st *memoryState) error {
		if bk := findOpen(st, key); bk != nil {
			out = copyBooking(bk)
		}
		return nil
	})
	return out, err
}

func (r *memoryBookingRepository) FindOpenByListingForUpdate(_ context.Context, entityType, entityID string) ([]*bookingDomain.Booking, error) {
	var out []*bookingDomain.Booking
	err := r.view(func(st *memoryState) error {
		for _, bk := range st.bookings {
			if bk.EntityType() == entityType && bk.EntityID() == entityID && bk.Status().IsOpen() {
				out = append(out, copyBooking(bk))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID().String() < out[j].ID().String() })
	return out, err
}

func (r *memoryBookingRepository) Find(_ context.Context, filter bookingDomain.Filter) ([]*bookingDomain.Booking, error) {
	var out []*bookingDomain.Booking
	err := r.view(func(st *memoryState) error {
		for _, bk := range st.bookings {
			if matches(bk, filter) {
				out = append(out, copyBooking(bk))
			}
		}
		return nil
	})
	sortByActivity(out)
	return out, err
}

func (r *memoryBookingRepository) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var all []*bookingDomain.Booking
	err := r.view(func(st *memoryState) error {
		for _, bk := range st.bookings {
			all = append(all, copyBooking(bk))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt().Equal(all[j].CreatedAt()) {
			return all[i].CreatedAt().After(all[j].CreatedAt())
		}
		return all[i].ID().String() < all[j].ID().String()
	})
	result := domain.Paginate(all, page, limit)
	return result.Items, result.Total, nil
}

func (r *memoryBookingRepository) CountByStatus(context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := r.view(func(st *memoryState) error {
		for _, bk := range st.bookings {
			counts[string(bk.Status())]++
		}
		return nil
	})
	return counts, err
}

func (r *memoryBookingRepository) Save(_ context.Context, bk *bookingDomain.Booking) error {
	err := r.view(func(st *memoryState) error {
		if _, exists := st.bookings[bk.ID()]; exists {
			return domain.NewConflictError("booking already exists")
		}
		if bk.Status().IsOpen() && findOpen(st, bk.Key()) != nil {
			return bookingDomain.DuplicateRequest(bk.Key())
		}
		st.bookings[bk.ID()] = copyBooking(bk)
		return nil
	})
	if err == nil {
		bk.MarkPersisted()
	}
	return err
}

func (r *memoryBookingRepository) Update(_ context.Context, bk *bookingDomain.Booking) error {
	err := r.view(func(st *memoryState) error {
		current, ok := st.bookings[bk.ID()]
		if !ok {
			return bookingDomain.NotFound(bk.ID().String())
		}
		if current.Version() != bk.Version()-1 {
			return bookingDomain.ErrConflict
		}
		st.bookings[bk.ID()] = copyBooking(bk)
		return nil
	})
	if err == nil {
		bk.MarkPersisted()
	}
	return err
}

func findOpen(st *memoryState, key bookingDomain.Key) *bookingDomain.Booking {
	for _, bk := range st.bookings {
		if bk.Key() == key && bk.Status().IsOpen() {
			return bk
		}
	}
	return nil
}

func matches(bk *bookingDomain.Booking, f bookingDomain.Filter) bool {
	if bk.EntityType() != f.EntityType {
		return false
	}
	if f.BuyerID != "" && bk.BuyerID() != f.BuyerID {
		return false
	}
	if f.SellerID != "" && bk.SellerID() != f.SellerID {
		return false
	}
	if f.EntityID != "" && bk.EntityID() != f.EntityID {
		return false
	}
	return true
}

func sortByActivity(bookings []*bookingDomain.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.LastActivityAt().Equal(b.LastActivityAt()) {
			return a.LastActivityAt().After(b.LastActivityAt())
		}
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().After(b.CreatedAt())
		}
		return a.ID().String() < b.ID().String()
	})
}

func copyBooking(bk *bookingDomain.Booking) *bookingDomain.Booking {
	var preferred = bk.PreferredDate()
	if preferred != nil {
		p := *preferred
		preferred = &p
	}
	return bookingDomain.ReconstructBooking(
		bk.ID(), bk.EntityType(), bk.EntityID(), bk.BuyerID(), bk.SellerID(),
		bk.Status(), bk.Conversation(), preferred,
		bk.Version(), bk.CreatedAt(), bk.UpdatedAt(),
	)
}

// --- Listings ---

type memoryListingRepository struct {
	view func(fn func(st *memoryState) error) error
}

func (r *memoryListingRepository) FindByKey(_ context.Context, entityType, entityID string) (*listing.Listing, error) {
	var out *listing.Listing
	err := r.view(func(st *memoryState) error {
		l, ok := st.listings[listingKey{entityType, entityID}]
		if !ok {
			return listing.NotFound(entityType, entityID)
		}
		out = copyListing(l)
		return nil
	})
	return out, err
}

func (r *memoryListingRepository) FindByKeyForUpdate(ctx context.Context, entityType, entityID string) (*listing.Listing, error) {
	return r.FindByKey(ctx, entityType, entityID)
}

func (r *memoryListingRepository) Upsert(_ context.Context, l *listing.Listing) error {
	return r.view(func(st *memoryState) error {
		st.listings[listingKey{l.EntityType(), l.EntityID()}] = copyListing(l)
		return nil
	})
}

func (r *memoryListingRepository) UpdateStatus(_ context.Context, l *listing.Listing) error {
	return r.view(func(st *memoryState) error {
		key := listingKey{l.EntityType(), l.EntityID()}
		current, ok := st.listings[key]
		if !ok {
			return listing.NotFound(l.EntityType(), l.EntityID())
		}
		if current.Version() != l.Version()-1 {
			return domain.NewConflictError("listing was modified by another transaction")
		}
		st.listings[key] = copyListing(l)
		return nil
	})
}

func copyListing(l *listing.Listing) *listing.Listing {
	snap := l.Snapshot()
	snap.Images = append([]string(nil), snap.Images...)
	return listing.Reconstruct(
		l.EntityType(), l.EntityID(), l.SellerID(),
		l.Status(), snap, l.Version(), l.CreatedAt(), l.UpdatedAt(),
	)
}
