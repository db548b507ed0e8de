package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		p := New(0, 0)
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 20, p.PerPage)
	})

	t.Run("caps per page", func(t *testing.T) {
		p := New(1, 1000)
		assert.Equal(t, 200, p.PerPage)
	})

	t.Run("negative values fall back", func(t *testing.T) {
		p := New(-3, -1)
		assert.Equal(t, 1, p.Page)
		assert.Equal(t, 20, p.PerPage)
	})
}

func TestOffsetLimit(t *testing.T) {
	p := New(3, 25)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 25, p.Limit())
}

func TestNewResult(t *testing.T) {
	t.Run("computes total pages with remainder", func(t *testing.T) {
		r := NewResult([]int{1, 2, 3}, 101, New(1, 25))
		assert.Equal(t, int64(101), r.Total)
		assert.Equal(t, 5, r.TotalPages)
	})

	t.Run("exact division", func(t *testing.T) {
		r := NewResult([]int{1}, 100, New(1, 25))
		assert.Equal(t, 4, r.TotalPages)
	})

	t.Run("nil data becomes empty slice", func(t *testing.T) {
		r := NewResult[int](nil, 0, New(1, 25))
		assert.NotNil(t, r.Data)
		assert.Empty(t, r.Data)
		assert.Equal(t, 0, r.TotalPages)
	})
}
