package booking

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// MaxMessageLength bounds a single conversation message, in characters.
const MaxMessageLength = 500

// SenderType identifies which party wrote a message.
type SenderType string

const (
	SenderBuyer  SenderType = "BUYER"
	SenderSeller SenderType = "SELLER"
)

// ParseSenderType converts a client-supplied sender type.
func ParseSenderType(s string) (SenderType, error) {
	switch st := SenderType(strings.ToUpper(strings.TrimSpace(s))); st {
	case SenderBuyer, SenderSeller:
		return st, nil
	}
	return "", validationError(fmt.Sprintf("invalid sender type: %q", s))
}

// Message is one immutable entry of a booking's conversation. Seq is the
// 1-based append position and is the ordering authority; Timestamp is
// informational.
type Message struct {
	ID         string     `json:"id"`
	Seq        int        `json:"seq"`
	SenderType SenderType `json:"sender_type"`
	SenderID   string     `json:"sender_id"`
	Body       string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
}

func newMessage(seq int, senderType SenderType, senderID, body string, at time.Time) Message {
	return Message{
		ID:         ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		Seq:        seq,
		SenderType: senderType,
		SenderID:   senderID,
		Body:       body,
		Timestamp:  at,
	}
}

// NormalizeMessage trims body and enforces the length bounds.
func NormalizeMessage(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", validationError("message is required")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxMessageLength {
		return "", validationError(fmt.Sprintf("message is %d characters; the limit is %d", n, MaxMessageLength))
	}
	return trimmed, nil
}
