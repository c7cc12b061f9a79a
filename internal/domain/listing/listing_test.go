package listing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewListing_Validation(t *testing.T) {
	_, err := NewListing("", "1", "50", StatusActive, Snapshot{})
	assert.Error(t, err)
	_, err = NewListing("mobile", " ", "50", StatusActive, Snapshot{})
	assert.Error(t, err)
	_, err = NewListing("mobile", "1", "", StatusActive, Snapshot{})
	assert.Error(t, err)
	_, err = NewListing("mobile", "1", "50", Status("GONE"), Snapshot{})
	assert.Error(t, err)
}

func TestListing_MarkSold(t *testing.T) {
	l, err := NewListing("mobile", "101", "50", StatusActive, Snapshot{Title: "Pixel"})
	require.NoError(t, err)
	require.NoError(t, l.EnsureAvailable())

	require.NoError(t, l.MarkSold())
	assert.Equal(t, StatusSold, l.Status())
	assert.Equal(t, int64(2), l.Version())

	assert.Error(t, l.MarkSold())
	assert.True(t, errors.Is(l.EnsureAvailable(), ErrListingUnavailable))
}

func TestListing_RefreshDoesNotReopenSold(t *testing.T) {
	l, err := NewListing("car", "9", "50", StatusActive, Snapshot{})
	require.NoError(t, err)
	require.NoError(t, l.MarkSold())

	l.Refresh("50", StatusActive, Snapshot{Title: "Civic", Price: 9000})
	assert.Equal(t, StatusSold, l.Status())
	assert.Equal(t, "Civic", l.Title())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	s, err = ParseStatus("draft")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, s)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestNotFound(t *testing.T) {
	err := NotFound("bike", "3")
	assert.True(t, errors.Is(err, ErrEntityNotFound))
	assert.Contains(t, err.Error(), "bike listing 3")
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Live", StatusActive.Label())
	assert.Equal(t, "Sold", StatusSold.Label())
	assert.Equal(t, "Draft", StatusDraft.Label())
}
