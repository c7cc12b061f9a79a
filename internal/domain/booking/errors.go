package booking

import (
	"fmt"

	"github.com/Kilat-Marketplace/service-booking/pkg/domain"
)

const (
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeChatDisabled      = "CHAT_DISABLED"
	CodeSenderMismatch    = "SENDER_MISMATCH"
	CodeBookingNotFound   = "BOOKING_NOT_FOUND"
)

// Sentinels for errors.Is. Returned errors carry specific messages but match
// these by code.
var (
	ErrDuplicateRequest  = domain.NewError(domain.KindConflict, CodeDuplicateRequest, "you have already requested this listing")
	ErrIllegalTransition = domain.NewError(domain.KindInvalidState, CodeIllegalTransition, "illegal status transition")
	ErrChatDisabled      = domain.NewError(domain.KindInvalidState, CodeChatDisabled, "chat is closed for this booking")
	ErrSenderMismatch    = domain.NewError(domain.KindForbidden, CodeSenderMismatch, "sender does not match booking party")
	ErrBookingNotFound   = domain.NewError(domain.KindNotFound, CodeBookingNotFound, "booking not found")
	ErrValidation        = domain.NewValidationError("invalid booking input")
	ErrConflict          = domain.NewConflictError("booking was modified by another transaction")
)

// DuplicateRequest reports an existing open booking for the key.
func DuplicateRequest(key Key) error {
	return ErrDuplicateRequest.WithMessage(
		fmt.Sprintf("buyer %s already has an open request for %s %s", key.BuyerID, key.EntityType, key.EntityID))
}

// IllegalTransition reports a disallowed status change.
func IllegalTransition(from, to BookingStatus) error {
	return ErrIllegalTransition.WithMessage(fmt.Sprintf("cannot transition booking from %s to %s", from, to))
}

// ChatDisabled reports a message sent to a terminal booking.
func ChatDisabled(status BookingStatus) error {
	return ErrChatDisabled.WithMessage(fmt.Sprintf("booking is %s; chat is read-only", status))
}

// NotFound reports a missing booking.
func NotFound(id string) error {
	return ErrBookingNotFound.WithMessage(fmt.Sprintf("booking %s not found", id))
}

func validationError(msg string) error {
	return ErrValidation.WithMessage(msg)
}
