package booking

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking("mobile", "101", "7", "50", "Is it still available?", nil)
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	preferred := time.Date(2026, 11, 2, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	b, err := NewBooking("mobile", "101", "7", "50", "  Is it still available?  ", &preferred)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, int64(1), b.Version())
	assert.Equal(t, Key{EntityType: "mobile", EntityID: "101", BuyerID: "7"}, b.Key())
	require.NotNil(t, b.PreferredDate())
	assert.Equal(t, time.UTC, b.PreferredDate().Location())

	conv := b.Conversation()
	require.Len(t, conv, 1)
	assert.Equal(t, 1, conv[0].Seq)
	assert.Equal(t, SenderBuyer, conv[0].SenderType)
	assert.Equal(t, "7", conv[0].SenderID)
	assert.Equal(t, "Is it still available?", conv[0].Body)
	assert.NotEmpty(t, conv[0].ID)
	assert.Len(t, b.UnpersistedMessages(), 1)
}

func TestNewBooking_Validation(t *testing.T) {
	tests := []struct {
		name                                string
		entityType, entityID, buyer, seller string
		message                             string
	}{
		{"missing entity type", "", "101", "7", "50", "hi"},
		{"missing entity id", "mobile", " ", "7", "50", "hi"},
		{"missing buyer", "mobile", "101", "", "50", "hi"},
		{"missing seller", "mobile", "101", "7", "", "hi"},
		{"own listing", "mobile", "101", "50", "50", "hi"},
		{"blank message", "mobile", "101", "7", "50", "   "},
		{"message too long", "mobile", "101", "7", "50", strings.Repeat("a", MaxMessageLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBooking(tt.entityType, tt.entityID, tt.buyer, tt.seller, tt.message, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestNormalizeMessage_CountsCharacters(t *testing.T) {
	body, err := NormalizeMessage(strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)
	assert.Equal(t, MaxMessageLength, len([]rune(body)))
}

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		allowed  bool
	}{
		{StatusPending, StatusInNegotiation, true},
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, false},
		{StatusInNegotiation, StatusAccepted, true},
		{StatusInNegotiation, StatusRejected, true},
		{StatusInNegotiation, StatusCompleted, true},
		{StatusInNegotiation, StatusPending, false},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusRejected, false},
		{StatusAccepted, StatusInNegotiation, false},
		{StatusRejected, StatusPending, false},
		{StatusRejected, StatusAccepted, false},
		{StatusCompleted, StatusRejected, false},
		{StatusCompleted, StatusInNegotiation, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusAccepted.IsOpen())
	assert.False(t, BookingStatus("BOGUS").IsOpen())
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("in_negotiation")
	require.NoError(t, err)
	assert.Equal(t, StatusInNegotiation, s)
	assert.Equal(t, "Negotiating", s.Label())

	_, err = ParseBookingStatus("cancelled")
	assert.Error(t, err)
}

func TestStatusClass(t *testing.T) {
	c, err := ParseStatusClass("Active")
	require.NoError(t, err)
	assert.True(t, c.Includes(StatusPending))
	assert.True(t, c.Includes(StatusInNegotiation))
	assert.False(t, c.Includes(StatusAccepted))

	assert.True(t, ClassCompleted.Includes(StatusAccepted))
	assert.True(t, ClassCompleted.Includes(StatusRejected))
	assert.False(t, ClassCompleted.Includes(StatusPending))
	assert.True(t, ClassAll.Includes(StatusPending))

	_, err = ParseStatusClass("archived")
	assert.Error(t, err)
}

func TestAppendMessage_SellerReplyStartsNegotiation(t *testing.T) {
	b := newTestBooking(t)
	b.MarkPersisted()

	msg, advanced, err := b.AppendMessage("50", SenderSeller, "Yes, still available")
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, StatusInNegotiation, b.Status())
	assert.Equal(t, 2, msg.Seq)

	msg, advanced, err = b.AppendMessage("7", SenderBuyer, "Great")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 3, msg.Seq)

	unsaved := b.UnpersistedMessages()
	require.Len(t, unsaved, 2)
	assert.Equal(t, 2, unsaved[0].Seq)
	b.MarkPersisted()
	assert.Empty(t, b.UnpersistedMessages())
}

func TestAppendMessage_BuyerDoesNotAdvance(t *testing.T) {
	b := newTestBooking(t)

	_, advanced, err := b.AppendMessage("7", SenderBuyer, "Any scratches?")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, StatusPending, b.Status())
}

func TestAppendMessage_SenderMismatch(t *testing.T) {
	b := newTestBooking(t)

	_, _, err := b.AppendMessage("8", SenderBuyer, "hello")
	assert.True(t, errors.Is(err, ErrSenderMismatch))

	_, _, err = b.AppendMessage("7", SenderSeller, "hello")
	assert.True(t, errors.Is(err, ErrSenderMismatch))
	assert.Equal(t, StatusPending, b.Status())
	assert.Len(t, b.Conversation(), 1)
}

func TestAppendMessage_TerminalChatDisabled(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.Reject())

	_, _, err := b.AppendMessage("7", SenderBuyer, "why?")
	assert.True(t, errors.Is(err, ErrChatDisabled))
	assert.Len(t, b.Conversation(), 1)
}

func TestAppendMessage_InvalidBodyLeavesBookingUnchanged(t *testing.T) {
	b := newTestBooking(t)

	_, _, err := b.AppendMessage("50", SenderSeller, "   ")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, StatusPending, b.Status())
}

func TestTransitionTo(t *testing.T) {
	b := newTestBooking(t)

	require.NoError(t, b.TransitionTo(StatusAccepted))
	err := b.TransitionTo(StatusRejected)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	err = b.TransitionTo(StatusPending)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	require.NoError(t, b.TransitionTo(StatusCompleted))
	assert.Equal(t, StatusCompleted, b.Status())
}

func TestForeclose(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.Accept())

	require.NoError(t, b.Foreclose())
	assert.Equal(t, StatusRejected, b.Status())

	err := b.Foreclose()
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func TestMessagesAfter(t *testing.T) {
	b := newTestBooking(t)
	for i := 0; i < 4; i++ {
		_, _, err := b.AppendMessage("7", SenderBuyer, "ping")
		require.NoError(t, err)
	}

	page := b.MessagesAfter(1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Seq)
	assert.Equal(t, 3, page[1].Seq)

	assert.Len(t, b.MessagesAfter(0, 0), 5)
	assert.Empty(t, b.MessagesAfter(9, 10))
}

func TestIncrementVersion(t *testing.T) {
	b := newTestBooking(t)
	b.IncrementVersion()
	assert.Equal(t, int64(2), b.Version())
}
