package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
)

// Status is the catalog lifecycle state of a listing.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusActive Status = "ACTIVE"
	StatusSold   Status = "SOLD"
)

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusSold:
		return true
	}
	return false
}

// Label is the UI text for the status.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusActive:
		return "Live"
	case StatusSold:
		return "Sold"
	}
	return string(s)
}

// ParseStatus converts a catalog status string. Empty input means ACTIVE.
func ParseStatus(s string) (Status, error) {
	if strings.TrimSpace(s) == "" {
		return StatusActive, nil
	}
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid listing status: %s", s))
	}
	return status, nil
}

const (
	CodeEntityNotFound     = "ENTITY_NOT_FOUND"
	CodeListingUnavailable = "LISTING_UNAVAILABLE"
)

var (
	// ErrEntityNotFound matches a missing listing.
	ErrEntityNotFound = domain.NewError(domain.KindNotFound, CodeEntityNotFound, "listing not found")
	// ErrListingUnavailable matches a listing that cannot take new bookings.
	ErrListingUnavailable = domain.NewError(domain.KindConflict, CodeListingUnavailable, "listing is not available")
)

// NotFound returns ErrEntityNotFound for a specific listing.
func NotFound(entityType, entityID string) error {
	return ErrEntityNotFound.WithMessage(fmt.Sprintf("%s listing %s not found", entityType, entityID))
}

// Listing is the booking service's projection of a catalog listing. The
// catalog owns everything except the SOLD transition made on deal completion.
type Listing struct {
	entityType  string
	entityID    string
	sellerID    string
	status      Status
	title       string
	price       float64
	images      []string
	description string
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// Snapshot is the display data copied from the catalog.
type Snapshot struct {
	Title       string
	Price       float64
	Images      []string
	Description string
}

// NewListing creates a listing projection with validated identity fields.
func NewListing(entityType, entityID, sellerID string, status Status, snap Snapshot) (*Listing, error) {
	if entityType == "" {
		return nil, domain.NewValidationError("entity type is required")
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, domain.NewValidationError("entity id is required")
	}
	if strings.TrimSpace(sellerID) == "" {
		return nil, domain.NewValidationError("seller id is required")
	}
	if !status.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid listing status: %s", status))
	}

	now := time.Now().UTC()
	return &Listing{
		entityType:  entityType,
		entityID:    entityID,
		sellerID:    sellerID,
		status:      status,
		title:       snap.Title,
		price:       snap.Price,
		images:      append([]string(nil), snap.Images...),
		description: snap.Description,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Listing from persistence data (no validation).
func Reconstruct(
	entityType, entityID, sellerID string,
	status Status,
	snap Snapshot,
	version int64,
	createdAt, updatedAt time.Time,
) *Listing {
	return &Listing{
		entityType:  entityType,
		entityID:    entityID,
		sellerID:    sellerID,
		status:      status,
		title:       snap.Title,
		price:       snap.Price,
		images:      snap.Images,
		description: snap.Description,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (l *Listing) EntityType() string   { return l.entityType }
func (l *Listing) EntityID() string     { return l.entityID }
func (l *Listing) SellerID() string     { return l.sellerID }
func (l *Listing) Status() Status       { return l.status }
func (l *Listing) Title() string        { return l.title }
func (l *Listing) Price() float64       { return l.price }
func (l *Listing) Images() []string     { return l.images }
func (l *Listing) Description() string  { return l.description }
func (l *Listing) Version() int64       { return l.version }
func (l *Listing) CreatedAt() time.Time { return l.createdAt }
func (l *Listing) UpdatedAt() time.Time { return l.updatedAt }

// Snapshot returns the display data.
func (l *Listing) Snapshot() Snapshot {
	return Snapshot{Title: l.title, Price: l.price, Images: l.images, Description: l.description}
}

// IsAvailable reports whether buyers may open bookings on the listing.
func (l *Listing) IsAvailable() bool {
	return l.status == StatusActive
}

// EnsureAvailable returns ErrListingUnavailable unless the listing is ACTIVE.
func (l *Listing) EnsureAvailable() error {
	if l.IsAvailable() {
		return nil
	}
	return ErrListingUnavailable.WithMessage(
		fmt.Sprintf("%s listing %s is %s", l.entityType, l.entityID, l.status))
}

// MarkSold sets the listing SOLD. Selling twice is an error.
func (l *Listing) MarkSold() error {
	if l.status == StatusSold {
		return domain.NewInvalidStateError(string(l.status), string(StatusSold))
	}
	l.status = StatusSold
	l.version++
	l.updatedAt = time.Now().UTC()
	return nil
}

// Refresh applies catalog-owned changes. A SOLD projection is never
// reopened by a stale catalog update.
func (l *Listing) Refresh(sellerID string, status Status, snap Snapshot) {
	if sellerID != "" {
		l.sellerID = sellerID
	}
	if status.IsValid() && l.status != StatusSold {
		l.status = status
	}
	l.title = snap.Title
	l.price = snap.Price
	l.images = append([]string(nil), snap.Images...)
	l.description = snap.Description
	l.version++
	l.updatedAt = time.Now().UTC()
}
