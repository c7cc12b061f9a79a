// Package contract defines the topics, CloudEvent types and payloads this
// service publishes and consumes.
package contract

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvents source of every event published here.
const Source = "service-booking"

// Topics.
const (
	TopicBookingEvents = "marketplace.booking.events"
	TopicCatalogEvents = "catalog.listing.events"
)

// Published event types.
const (
	BookingRequested     = "booking.requested"
	BookingMessageAdded  = "booking.message_appended"
	BookingStatusChanged = "booking.status_changed"
	BookingCompleted     = "booking.completed"
	ListingSold          = "listing.sold"
)

// Consumed event types.
const (
	CatalogListingUpserted      = "catalog.listing.upserted"
	CatalogListingStatusChanged = "catalog.listing.status_changed"
)

// BookingRequestedEvent is published when a buyer opens a booking.
type BookingRequestedEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	BuyerID       string     `json:"buyer_id"`
	SellerID      string     `json:"seller_id"`
	Message       string     `json:"message"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BookingMessageAppendedEvent is published for every message after the first.
type BookingMessageAppendedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	MessageID   string    `json:"message_id"`
	Seq         int       `json:"seq"`
	SenderType  string    `json:"sender_type"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingStatusChangedEvent is published for every status transition,
// including foreclosed rivals of a completed deal.
type BookingStatusChangedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Status change reasons.
const (
	ReasonSellerReply = "seller_reply"
	ReasonForeclosed  = "listing_sold"
)

// BookingCompletedEvent is published once per completed deal.
type BookingCompletedEvent struct {
	BookingID          uuid.UUID   `json:"booking_id"`
	EntityType         string      `json:"entity_type"`
	EntityID           string      `json:"entity_id"`
	BuyerID            string      `json:"buyer_id"`
	SellerID           string      `json:"seller_id"`
	RejectedBookingIDs []uuid.UUID `json:"rejected_booking_ids"`
	OccurredAt         time.Time   `json:"occurred_at"`
}

// ListingSoldEvent tells the catalog to mark its record SOLD.
type ListingSoldEvent struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	SellerID   string    `json:"seller_id"`
	BuyerID    string    `json:"buyer_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CatalogListingUpsertedEvent carries a raw catalog document, shaped by the
// entity type's field names.
type CatalogListingUpsertedEvent struct {
	EntityType string          `json:"entity_type"`
	Document   json.RawMessage `json:"document"`
}

// CatalogListingStatusChangedEvent carries a catalog-side status change.
type CatalogListingStatusChangedEvent struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Status     string `json:"status"`
}
