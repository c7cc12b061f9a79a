package application

import (
	"time"

	bookingDomain "github.com/Kilat-Marketplace/service-booking/internal/domain/booking"
	"github.com/Kilat-Marketplace/service-booking/internal/domain/listing"
	"github.com/google/uuid"
)

// CreateBookingRequest holds the data needed to open a booking.
type CreateBookingRequest struct {
	EntityType    string     `json:"-"`
	EntityID      string     `json:"entity_id" binding:"required"`
	BuyerID       string     `json:"-"`
	Message       string     `json:"message" binding:"required,max=2000"`
	PreferredDate *time.Time `json:"preferred_date"`
}

// ListBookingsQuery selects one party's bookings of an entity type.
type ListBookingsQuery struct {
	EntityType string
	BuyerID    string
	SellerID   string
	EntityID   string
	Class      string
	Page       int
	Limit      int
}

// AppendMessageRequest is the body of a chat message post.
type AppendMessageRequest struct {
	SenderType string `json:"sender_type" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

// UpdateStatusRequest is the body of a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpsertListingRequest seeds or replaces a listing projection.
type UpsertListingRequest struct {
	SellerID    string   `json:"seller_id" binding:"required"`
	Status      string   `json:"status" binding:"omitempty,oneof=DRAFT ACTIVE SOLD draft active sold"`
	Title       string   `json:"title"`
	Price       float64  `json:"price" binding:"gte=0"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
}

// MessageDTO is the response representation of a conversation message.
type MessageDTO struct {
	ID         string    `json:"id"`
	Seq        int       `json:"seq"`
	SenderType string    `json:"sender_type"`
	SenderID   string    `json:"sender_id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID    `json:"id"`
	EntityType    string       `json:"entity_type"`
	EntityID      string       `json:"entity_id"`
	BuyerID       string       `json:"buyer_id"`
	SellerID      string       `json:"seller_id"`
	Status        string       `json:"status"`
	StatusLabel   string       `json:"status_label"`
	ChatEnabled   bool         `json:"chat_enabled"`
	PreferredDate *time.Time   `json:"preferred_date,omitempty"`
	Conversation  []MessageDTO `json:"conversation"`
	Version       int64        `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// BookingStatsDTO holds aggregate booking statistics.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListingDTO is the response representation of a listing projection.
type ListingDTO struct {
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	SellerID    string    `json:"seller_id"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Helpers ---

func toMessageDTOs(msgs []bookingDomain.Message) []MessageDTO {
	out := make([]MessageDTO, len(msgs))
	for i, m := range msgs {
		out[i] = MessageDTO{
			ID:         m.ID,
			Seq:        m.Seq,
			SenderType: string(m.SenderType),
			SenderID:   m.SenderID,
			Message:    m.Body,
			Timestamp:  m.Timestamp,
		}
	}
	return out
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		EntityType:    bk.EntityType(),
		EntityID:      bk.EntityID(),
		BuyerID:       bk.BuyerID(),
		SellerID:      bk.SellerID(),
		Status:        string(bk.Status()),
		StatusLabel:   bk.Status().Label(),
		ChatEnabled:   !bk.Status().IsTerminal(),
		PreferredDate: bk.PreferredDate(),
		Conversation:  toMessageDTOs(bk.Conversation()),
		Version:       bk.Version(),
		CreatedAt:     bk.CreatedAt(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	out := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		out[i] = toBookingDTO(bk)
	}
	return out
}

func toListingDTO(l *listing.Listing) ListingDTO {
	images := l.Images()
	if images == nil {
		images = []string{}
	}
	return ListingDTO{
		EntityType:  l.EntityType(),
		EntityID:    l.EntityID(),
		SellerID:    l.SellerID(),
		Status:      string(l.Status()),
		StatusLabel: l.Status().Label(),
		Title:       l.Title(),
		Price:       l.Price(),
		Images:      images,
		Description: l.Description(),
		UpdatedAt:   l.UpdatedAt(),
	}
}
