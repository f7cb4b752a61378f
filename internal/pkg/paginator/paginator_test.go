package paginator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name      string
		page      int
		limit     int
		items     []int
		prev      *int
		next      *int
		pages     int
		wantTotal int
	}{
		{"first page", 1, 2, []int{1, 2}, nil, intp(2), 3, 5},
		{"middle page", 2, 2, []int{3, 4}, intp(1), intp(3), 3, 5},
		{"last page", 3, 2, []int{5}, intp(2), nil, 3, 5},
		{"past the end", 9, 2, []int{}, intp(8), nil, 3, 5},
		{"defaults", 0, 0, []int{1, 2, 3, 4, 5}, nil, nil, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(all, tt.page, tt.limit)
			assert.Equal(t, tt.items, got.Items)
			assert.Equal(t, tt.prev, got.PrevPage)
			assert.Equal(t, tt.next, got.NextPage)
			assert.Equal(t, tt.pages, got.TotalPages)
			assert.Equal(t, tt.wantTotal, got.TotalItems)
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	got := Paginate([]string(nil), 1, 10)
	assert.Empty(t, got.Items)
	assert.Zero(t, got.TotalPages)
	assert.Nil(t, got.NextPage)
}

func intp(i int) *int { return &i }
