package storeutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	opts := Paginate(12, 3)
	assert.Equal(t, int64(12), *opts.Limit)
	assert.Equal(t, int64(24), *opts.Skip)

	opts = Paginate(0, 0)
	assert.Equal(t, int64(20), *opts.Limit)
	assert.Equal(t, int64(0), *opts.Skip)
}

func TestSkip_Saturates(t *testing.T) {
	assert.Equal(t, int64(0), Skip(1, 100))
	assert.Equal(t, int64(200), Skip(3, 100))
	assert.Equal(t, int64(math.MaxInt64), Skip(100000000000000000, 100))
	assert.Equal(t, int64(math.MaxInt64), Skip(math.MaxInt64, 2))

	assert.True(t, PageInRange(1, 100))
	assert.True(t, PageInRange(math.MaxInt64/100+1, 100))
	assert.False(t, PageInRange(math.MaxInt64/100+2, 100))
	assert.False(t, PageInRange(100000000000000000, 100))
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, limit, want int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 100, 1},
		{101, 100, 2},
		{5, 1, 5},
		{7, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.total, tt.limit), "total=%d limit=%d", tt.total, tt.limit)
	}
}

func TestTotalPages_MatchesCeil(t *testing.T) {
	for total := int64(0); total <= 250; total++ {
		for _, limit := range []int64{1, 7, 10, 12, 20, 100} {
			got := TotalPages(total, limit)
			// every page but the last is full, the last is non-empty
			if total == 0 {
				assert.Zero(t, got)
				continue
			}
			assert.True(t, (got-1)*limit < total && total <= got*limit, "total=%d limit=%d got=%d", total, limit, got)
		}
	}
}
