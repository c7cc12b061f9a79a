package booking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key identifies the (listing, buyer) pair guarded against duplicate open requests.
type Key struct {
	EntityType string
	EntityID   string
	BuyerID    string
}

// Booking is the aggregate root for a buyer's negotiation with a seller
// about one listing.
type Booking struct {
	id         uuid.UUID
	entityType string
	entityID   string
	buyerID    string
	sellerID   string
	status     BookingStatus

	conversation []Message
	// persisted counts the leading conversation entries already stored.
	persisted int

	preferredDate *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking opens a PENDING booking whose conversation starts with the
// buyer's message.
func NewBooking(
	entityType string,
	entityID string,
	buyerID string,
	sellerID string,
	message string,
	preferredDate *time.Time,
) (*Booking, error) {
	if strings.TrimSpace(entityType) == "" {
		return nil, validationError("entity type is required")
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, validationError("entity ID is required")
	}
	if strings.TrimSpace(buyerID) == "" {
		return nil, validationError("buyer ID is required")
	}
	if strings.TrimSpace(sellerID) == "" {
		return nil, validationError("seller ID is required")
	}
	if buyerID == sellerID {
		return nil, validationError("you cannot request your own listing")
	}
	body, err := NormalizeMessage(message)
	if err != nil {
		return nil, err
	}

	var preferred *time.Time
	if preferredDate != nil && !preferredDate.IsZero() {
		p := preferredDate.UTC()
		preferred = &p
	}

	now := time.Now().UTC()
	return &Booking{
		id:            uuid.New(),
		entityType:    entityType,
		entityID:      entityID,
		buyerID:       buyerID,
		sellerID:      sellerID,
		status:        StatusPending,
		conversation:  []Message{newMessage(1, SenderBuyer, buyerID, body, now)},
		preferredDate: preferred,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
// The conversation must be in sequence order.
func ReconstructBooking(
	id uuid.UUID,
	entityType string,
	entityID string,
	buyerID string,
	sellerID string,
	status BookingStatus,
	conversation []Message,
	preferredDate *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		entityType:    entityType,
		entityID:      entityID,
		buyerID:       buyerID,
		sellerID:      sellerID,
		status:        status,
		conversation:  conversation,
		persisted:     len(conversation),
		preferredDate: preferredDate,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// EntityType returns the listing's category tag.
func (b *Booking) EntityType() string { return b.entityType }

// EntityID returns the listing id.
func (b *Booking) EntityID() string { return b.entityID }

// BuyerID returns the requesting buyer.
func (b *Booking) BuyerID() string { return b.buyerID }

// SellerID returns the listing's seller.
func (b *Booking) SellerID() string { return b.sellerID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// PreferredDate returns the buyer's optional preferred meeting date.
func (b *Booking) PreferredDate() *time.Time { return b.preferredDate }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// Key returns the duplicate-guard key.
func (b *Booking) Key() Key {
	return Key{EntityType: b.entityType, EntityID: b.entityID, BuyerID: b.buyerID}
}

// LastActivityAt is updatedAt, falling back to createdAt.
func (b *Booking) LastActivityAt() time.Time {
	if b.updatedAt.IsZero() {
		return b.createdAt
	}
	return b.updatedAt
}

// Conversation returns a copy of the full thread in append order.
func (b *Booking) Conversation() []Message {
	out := make([]Message, len(b.conversation))
	copy(out, b.conversation)
	return out
}

// MessagesAfter returns up to limit messages with Seq > afterSeq. A
// non-positive limit returns the rest of the thread.
func (b *Booking) MessagesAfter(afterSeq, limit int) []Message {
	start := afterSeq
	if start < 0 {
		start = 0
	}
	if start > len(b.conversation) {
		start = len(b.conversation)
	}
	end := len(b.conversation)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]Message, end-start)
	copy(out, b.conversation[start:end])
	return out
}

// UnpersistedMessages returns messages appended since the booking was loaded or saved.
func (b *Booking) UnpersistedMessages() []Message {
	out := make([]Message, len(b.conversation)-b.persisted)
	copy(out, b.conversation[b.persisted:])
	return out
}

// MarkPersisted records that every message has been stored.
func (b *Booking) MarkPersisted() {
	b.persisted = len(b.conversation)
}

// --- Behavior ---

// AppendMessage adds a message from one of the two parties. A seller's reply
// to a PENDING booking first moves it to IN_NEGOTIATION; advanced reports
// whether that happened. Both changes are one mutation of the aggregate.
func (b *Booking) AppendMessage(senderID string, senderType SenderType, body string) (msg Message, advanced bool, err error) {
	if b.status.IsTerminal() {
		return Message{}, false, ChatDisabled(b.status)
	}
	if err := b.checkSender(senderID, senderType); err != nil {
		return Message{}, false, err
	}
	text, err := NormalizeMessage(body)
	if err != nil {
		return Message{}, false, err
	}

	now := time.Now().UTC()
	if senderType == SenderSeller && b.status == StatusPending {
		b.status = StatusInNegotiation
		advanced = true
	}

	msg = newMessage(len(b.conversation)+1, senderType, senderID, text, now)
	b.conversation = append(b.conversation, msg)
	b.updatedAt = now
	return msg, advanced, nil
}

func (b *Booking) checkSender(senderID string, senderType SenderType) error {
	var expected string
	switch senderType {
	case SenderBuyer:
		expected = b.buyerID
	case SenderSeller:
		expected = b.sellerID
	default:
		return validationError("sender type must be BUYER or SELLER")
	}
	if senderID == "" || senderID != expected {
		return ErrSenderMismatch.WithMessage(
			"sender " + senderID + " is not the " + strings.ToLower(string(senderType)) + " of this booking")
	}
	return nil
}

// StartNegotiation moves a PENDING booking to IN_NEGOTIATION.
func (b *Booking) StartNegotiation() error {
	return b.transition(StatusInNegotiation)
}

// Accept records the seller's acceptance. Valid from PENDING or IN_NEGOTIATION.
func (b *Booking) Accept() error {
	return b.transition(StatusAccepted)
}

// Reject records the seller's refusal. Valid from PENDING or IN_NEGOTIATION.
func (b *Booking) Reject() error {
	return b.transition(StatusRejected)
}

// Complete closes the deal. Valid from IN_NEGOTIATION or ACCEPTED.
func (b *Booking) Complete() error {
	return b.transition(StatusCompleted)
}

// Foreclose rejects an open booking because a rival booking completed the
// sale of the same listing. Unlike Reject it applies to ACCEPTED bookings.
func (b *Booking) Foreclose() error {
	if b.status.IsTerminal() {
		return IllegalTransition(b.status, StatusRejected)
	}
	b.status = StatusRejected
	b.updatedAt = time.Now().UTC()
	return nil
}

// TransitionTo applies a client-requested status change through the state
// machine. COMPLETED is reachable here only as a bare status change; the
// service routes it through deal completion for its side effects.
func (b *Booking) TransitionTo(target BookingStatus) error {
	switch target {
	case StatusInNegotiation:
		return b.StartNegotiation()
	case StatusAccepted:
		return b.Accept()
	case StatusRejected:
		return b.Reject()
	case StatusCompleted:
		return b.Complete()
	default:
		return IllegalTransition(b.status, target)
	}
}

func (b *Booking) transition(target BookingStatus) error {
	if !b.status.CanTransitionTo(target) {
		return IllegalTransition(b.status, target)
	}
	b.status = target
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
