//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kilat-Marketplace/service-booking/internal/application"
	"github.com/Kilat-Marketplace/service-booking/internal/contract"
	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentCreate_OneOpenRequest verifies that parallel requests from
// the same buyer for the same listing leave exactly one open booking.
func TestConcurrentCreate_OneOpenRequest(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	stack := setupBookingStack(t, db, nil)
	seedListing(t, stack, "car", "c-1", "seller-1")

	var created, duplicates atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := stack.Bookings.CreateBooking(context.Background(), application.CreateBookingRequest{
				EntityType: "car",
				EntityID:   "c-1",
				BuyerID:    "buyer-1",
				Message:    "still available?",
			})
			switch {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, bookingDomain.ErrDuplicateRequest):
				duplicates.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(9), duplicates.Load())

	var count int64
	require.NoError(t, db.Table("bookings").
		Where("entity_type = ? AND entity_id = ? AND buyer_id = ?", "car", "c-1", "buyer-1").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestConcurrentComplete_OneDealPerListing verifies that racing completions on
// one listing produce a single winner and foreclose everyone else.
func TestConcurrentComplete_OneDealPerListing(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	stack := setupBookingStack(t, db, nil)
	seedListing(t, stack, "laptop", "l-1", "seller-1")

	ids := make([]uuid.UUID, 4)
	for i := range ids {
		bk, err := stack.Bookings.CreateBooking(ctx, application.CreateBookingRequest{
			EntityType: "laptop",
			EntityID:   "l-1",
			BuyerID:    fmt.Sprintf("buyer-%d", i),
			Message:    "offer",
		})
		require.NoError(t, err)
		ids[i] = bk.ID
	}

	var completed, illegal atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := stack.Bookings.CompleteDeal(ctx, id)
			switch {
			case err == nil:
				completed.Add(1)
			case assert.ErrorIs(t, err, bookingDomain.ErrIllegalTransition):
				illegal.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), completed.Load())
	assert.Equal(t, int32(3), illegal.Load())

	stats, err := stack.Bookings.GetBookingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ByStatus["COMPLETED"])
	assert.Equal(t, int64(3), stats.ByStatus["REJECTED"])

	l, err := stack.Listings.GetListing(ctx, "laptop", "l-1")
	require.NoError(t, err)
	assert.Equal(t, "SOLD", l.Status)
}

// TestNegotiation_PersistsConversation verifies message ordering and the
// seller auto-advance survive a round trip through postgres.
func TestNegotiation_PersistsConversation(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	stack := setupBookingStack(t, db, nil)
	seedListing(t, stack, "bike", "b-1", "seller-1")

	bk, err := stack.Bookings.CreateBooking(ctx, application.CreateBookingRequest{
		EntityType: "bike",
		EntityID:   "b-1",
		BuyerID:    "buyer-1",
		Message:    "hi",
	})
	require.NoError(t, err)

	_, err = stack.Bookings.AppendMessage(ctx, bk.ID, "seller-1", "SELLER", "hello")
	require.NoError(t, err)
	_, err = stack.Bookings.AppendMessage(ctx, bk.ID, "buyer-1", "BUYER", "  lower price?  ")
	require.NoError(t, err)

	got, err := stack.Bookings.GetBooking(ctx, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_NEGOTIATION", got.Status)
	require.Len(t, got.Conversation, 3)
	for i, msg := range got.Conversation {
		assert.Equal(t, i+1, msg.Seq)
	}
	assert.Equal(t, "lower price?", got.Conversation[2].Message)

	tail, err := stack.Bookings.GetMessages(ctx, bk.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "BUYER", tail[0].SenderType)
}

// TestCompleteDeal_PublishesEvents verifies the outbound events of a deal on
// the booking topic.
func TestCompleteDeal_PublishesEvents(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	ctx := context.Background()
	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	seedListing(t, stack, "mobile", "m-1", "seller-1")

	winner, err := stack.Bookings.CreateBooking(ctx, application.CreateBookingRequest{
		EntityType: "mobile", EntityID: "m-1", BuyerID: "buyer-1", Message: "mine",
	})
	require.NoError(t, err)
	rival, err := stack.Bookings.CreateBooking(ctx, application.CreateBookingRequest{
		EntityType: "mobile", EntityID: "m-1", BuyerID: "buyer-2", Message: "no, mine",
	})
	require.NoError(t, err)

	_, err = stack.Bookings.CompleteDeal(ctx, winner.ID)
	require.NoError(t, err)

	seen := consumeEvents(t, infra.KafkaBrokers, contract.TopicBookingEvents, map[string]int{
		contract.BookingRequested: 2,
		contract.BookingCompleted: 1,
		contract.ListingSold:      1,
	}, 20*time.Second)

	var completed contract.BookingCompletedEvent
	require.NoError(t, seen[contract.BookingCompleted][0].ParseData(&completed))
	assert.Equal(t, winner.ID, completed.BookingID)
	assert.Equal(t, []uuid.UUID{rival.ID}, completed.RejectedBookingIDs)

	var sold contract.ListingSoldEvent
	require.NoError(t, seen[contract.ListingSold][0].ParseData(&sold))
	assert.Equal(t, "mobile", sold.EntityType)
	assert.Equal(t, "m-1", sold.EntityID)
	assert.Equal(t, "buyer-1", sold.BuyerID)
}

// TestCatalogEvents_SyncListing verifies that catalog events published to
// Kafka reach the listing projection.
func TestCatalogEvents_SyncListing(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	doc, _ := json.Marshal(map[string]interface{}{
		"carId":    "c-42",
		"sellerId": "seller-9",
		"title":    "Civic 2019",
		"price":    18500,
		"status":   "ACTIVE",
	})
	publishTestEvent(t, infra.KafkaBrokers, contract.TopicCatalogEvents,
		"service-catalog", contract.CatalogListingUpserted,
		contract.CatalogListingUpsertedEvent{EntityType: "car", Document: doc})

	require.Eventually(t, func() bool {
		l, err := stack.Listings.GetListing(ctx, "car", "c-42")
		return err == nil && l.SellerID == "seller-9"
	}, 15*time.Second, 200*time.Millisecond, "listing was not projected")

	publishTestEvent(t, infra.KafkaBrokers, contract.TopicCatalogEvents,
		"service-catalog", contract.CatalogListingStatusChanged,
		contract.CatalogListingStatusChangedEvent{EntityType: "car", EntityID: "c-42", Status: "DRAFT"})

	require.Eventually(t, func() bool {
		l, err := stack.Listings.GetListing(ctx, "car", "c-42")
		return err == nil && l.Status == "DRAFT"
	}, 15*time.Second, 200*time.Millisecond, "listing status was not synced")

	_, err := stack.Bookings.CreateBooking(ctx, application.CreateBookingRequest{
		EntityType: "car", EntityID: "c-42", BuyerID: "buyer-1", Message: "hi",
	})
	assert.Error(t, err, "draft listing must not take bookings")
}
