package booking

import (
	"fmt"
	"strings"

	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
)

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending       BookingStatus = "PENDING"
	StatusInNegotiation BookingStatus = "IN_NEGOTIATION"
	StatusAccepted      BookingStatus = "ACCEPTED"
	StatusRejected      BookingStatus = "REJECTED"
	StatusCompleted     BookingStatus = "COMPLETED"
)

// validTransitions defines the state machine for booking status transitions.
// Foreclosure of rival bookings on deal completion is the one edge outside
// this table; see Booking.Foreclose.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:       {StatusInNegotiation, StatusAccepted, StatusRejected},
	StatusInNegotiation: {StatusAccepted, StatusRejected, StatusCompleted},
	StatusAccepted:      {StatusCompleted},
	StatusRejected:      {},
	StatusCompleted:     {},
}

// OpenStatuses are the non-terminal statuses covered by the duplicate-request guard.
var OpenStatuses = []BookingStatus{StatusPending, StatusInNegotiation, StatusAccepted}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// IsOpen is the complement of IsTerminal for valid statuses.
func (s BookingStatus) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal()
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// Label is the UI text for the status.
func (s BookingStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInNegotiation:
		return "Negotiating"
	case StatusAccepted:
		return "Accepted"
	case StatusRejected:
		return "Rejected"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, case-insensitively.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", domain.NewValidationError(fmt.Sprintf("invalid booking status: %s", s))
	}
	return status, nil
}

// StatusClass groups statuses for list views.
type StatusClass string

const (
	ClassAll       StatusClass = ""
	ClassActive    StatusClass = "active"
	ClassCompleted StatusClass = "completed"
)

// ParseStatusClass validates a list filter value.
func ParseStatusClass(s string) (StatusClass, error) {
	switch c := StatusClass(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassAll, ClassActive, ClassCompleted:
		return c, nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("invalid status class: %s", s))
}

// Includes reports whether status belongs to the class. ACCEPTED is listed
// under completed because the buyer has nothing left to negotiate.
func (c StatusClass) Includes(status BookingStatus) bool {
	switch c {
	case ClassActive:
		return status == StatusPending || status == StatusInNegotiation
	case ClassCompleted:
		return status == StatusCompleted || status == StatusRejected || status == StatusAccepted
	}
	return true
}
