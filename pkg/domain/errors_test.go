package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	sentinel := NewError(KindConflict, "DUPLICATE_REQUEST", "already requested")
	specific := sentinel.WithMessage("buyer 7 already requested mobile 101")
	wrapped := fmt.Errorf("create booking: %w", specific)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, NewConflictError("other")))
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestAppError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("pq: deadlock")
	err := NewConflictError("booking was modified").Wrap(cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "deadlock")
}

func TestKindOf_Untyped(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page.Items)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	past := Paginate(items, 9, 2)
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)
}
