package repository

import (
	"context"
	"errors"
	"testing"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedListing(t *testing.T, store *MemoryStore, entityType, entityID, sellerID string) {
	t.Helper()
	l, err := listing.NewListing(entityType, entityID, sellerID, listing.StatusActive, listing.Snapshot{Title: "item"})
	require.NoError(t, err)
	require.NoError(t, store.Listings().Upsert(context.Background(), l))
}

func newBooking(t *testing.T, buyer string) *bookingDomain.Booking {
	t.Helper()
	bk, err := bookingDomain.NewBooking("mobile", "101", buyer, "50", "Is this available?", nil)
	require.NoError(t, err)
	return bk
}

func TestMemoryStore_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bk := newBooking(t, "7")

	require.NoError(t, store.Bookings().Save(ctx, bk))
	assert.Empty(t, bk.UnpersistedMessages())

	got, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bk.Status(), got.Status())
	assert.Len(t, got.Conversation(), 1)

	open, err := store.Bookings().FindOpenByKey(ctx, bk.Key())
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, bk.ID(), open.ID())
}

func TestMemoryStore_FindByIDNotFound(t *testing.T) {
	store := NewMemoryStore()
	bk := newBooking(t, "7")

	_, err := store.Bookings().FindByID(context.Background(), bk.ID())
	assert.True(t, errors.Is(err, bookingDomain.ErrBookingNotFound))
}

func TestMemoryStore_SaveRejectsDuplicateOpenBooking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Bookings().Save(ctx, newBooking(t, "7")))
	err := store.Bookings().Save(ctx, newBooking(t, "7"))
	assert.True(t, errors.Is(err, bookingDomain.ErrDuplicateRequest))

	require.NoError(t, store.Bookings().Save(ctx, newBooking(t, "8")))
}

func TestMemoryStore_TerminalBookingDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := newBooking(t, "7")
	require.NoError(t, store.Bookings().Save(ctx, first))
	require.NoError(t, first.Reject())
	first.IncrementVersion()
	require.NoError(t, store.Bookings().Update(ctx, first))

	require.NoError(t, store.Bookings().Save(ctx, newBooking(t, "7")))
}

func TestMemoryStore_UpdateOptimisticLock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bk := newBooking(t, "7")
	require.NoError(t, store.Bookings().Save(ctx, bk))

	a, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)
	b, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)

	_, _, err = a.AppendMessage("50", bookingDomain.SenderSeller, "Yes")
	require.NoError(t, err)
	a.IncrementVersion()
	require.NoError(t, store.Bookings().Update(ctx, a))

	require.NoError(t, b.Accept())
	b.IncrementVersion()
	err = store.Bookings().Update(ctx, b)
	assert.True(t, errors.Is(err, bookingDomain.ErrConflict))

	got, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusInNegotiation, got.Status())
	assert.Len(t, got.Conversation(), 2)
}

func TestMemoryStore_ReturnedBookingsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bk := newBooking(t, "7")
	require.NoError(t, store.Bookings().Save(ctx, bk))

	got, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)
	require.NoError(t, got.Reject())

	again, err := store.Bookings().FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, again.Status())
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedListing(t, store, "mobile", "101", "50")
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		l, err := tx.Listings().FindByKeyForUpdate(ctx, "mobile", "101")
		if err != nil {
			return err
		}
		if err := l.MarkSold(); err != nil {
			return err
		}
		if err := tx.Listings().UpdateStatus(ctx, l); err != nil {
			return err
		}
		if err := tx.Bookings().Save(ctx, newBooking(t, "7")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	l, err := store.Listings().FindByKey(ctx, "mobile", "101")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, l.Status())

	found, err := store.Bookings().Find(ctx, bookingDomain.Filter{EntityType: "mobile", EntityID: "101"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	bk := newBooking(t, "7")

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx bookingDomain.Store) error {
		return tx.Bookings().Save(ctx, bk)
	}))

	_, err := store.Bookings().FindByID(ctx, bk.ID())
	assert.NoError(t, err)
}

func TestMemoryStore_FindOrdersByActivity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	older := newBooking(t, "7")
	require.NoError(t, store.Bookings().Save(ctx, older))
	newer := newBooking(t, "8")
	require.NoError(t, store.Bookings().Save(ctx, newer))

	_, _, err := older.AppendMessage("7", bookingDomain.SenderBuyer, "still there?")
	require.NoError(t, err)
	older.IncrementVersion()
	require.NoError(t, store.Bookings().Update(ctx, older))

	found, err := store.Bookings().Find(ctx, bookingDomain.Filter{EntityType: "mobile", SellerID: "50"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, older.ID(), found[0].ID())

	byBuyer, err := store.Bookings().Find(ctx, bookingDomain.Filter{EntityType: "mobile", BuyerID: "8"})
	require.NoError(t, err)
	require.Len(t, byBuyer, 1)
	assert.Equal(t, newer.ID(), byBuyer[0].ID())

	none, err := store.Bookings().Find(ctx, bookingDomain.Filter{EntityType: "car", SellerID: "50"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_AdminQueries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, buyer := range []string{"1", "2", "3"} {
		require.NoError(t, store.Bookings().Save(ctx, newBooking(t, buyer)))
	}

	page, total, err := store.Bookings().ListAll(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	counts, err := store.Bookings().CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["PENDING"])
}
