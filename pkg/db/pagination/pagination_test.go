package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimAndDecode(t *testing.T) {
	items := []int64{50, 40, 30}
	page, info := Trim(items, 2, func(v int64) int64 { return v })
	assert.Equal(t, []int64{50, 40}, page)
	require.True(t, info.HasMore)

	id, err := DecodeCursorID(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(40), id)

	_, info = Trim(items, 3, func(v int64) int64 { return v })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestDecodeCursorIDRejectsGarbage(t *testing.T) {
	_, err := DecodeCursorID("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	id, err := DecodeCursorID("")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}
