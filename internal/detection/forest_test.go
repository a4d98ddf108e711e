package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewForest(t *testing.T) {
	f, err := NewForest([]int{-1, 0, 1, 0, -1, 4})
	require.NoError(t, err)

	assert.Equal(t, 6, f.Len())
	assert.Equal(t, []int{1, 3}, f.Children(0))
	assert.Equal(t, []int{2}, f.Children(1))
	assert.Empty(t, f.Children(2))
	assert.Equal(t, []int{5}, f.Children(4))
	assert.Equal(t, []int{0, 4}, f.Roots())
	assert.Equal(t, 2, f.Depth(2))
	require.NoError(t, f.Validate())
}

func TestNewForest_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		parents []int
	}{
		{"self parent", []int{-1, 1}},
		{"forward parent", []int{1, -1}},
		{"out of range", []int{-1, 7}},
		{"below sentinel", []int{-2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewForest(tt.parents)
			assert.ErrorIs(t, err, ErrMalformedHierarchy)
		})
	}
}

func TestForest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
	}{
		{
			"cycle",
			[]Node{{Parent: 1, Children: []int{1}}, {Parent: 0, Children: []int{0}}},
		},
		{
			"child not listed by parent",
			[]Node{{Parent: -1}, {Parent: 0}},
		},
		{
			"child listed twice",
			[]Node{{Parent: -1, Children: []int{1, 1}}, {Parent: 0}},
		},
		{
			"child disagrees with parent",
			[]Node{{Parent: -1, Children: []int{1}}, {Parent: -1}},
		},
		{
			"parent out of range",
			[]Node{{Parent: 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Forest{Nodes: tt.nodes}
			assert.ErrorIs(t, f.Validate(), ErrMalformedHierarchy)
		})
	}

	empty := &Forest{}
	assert.NoError(t, empty.Validate())
}
