package detection

import (
	"errors"
	"fmt"
)

// ErrMalformedHierarchy is returned when a parent array or forest violates the
// nesting invariants (cycles, out-of-range parents, one-sided links).
var ErrMalformedHierarchy = errors.New("malformed contour hierarchy")

// Node is one entry of a Forest.
type Node struct {
	// Parent is the index of the enclosing contour, or -1 for a root.
	Parent int `json:"parent"`

	// Children are the indices of directly nested contours, ascending.
	Children []int `json:"children"`
}

// Forest is the parent/child nesting relation over contours, stored as an
// arena indexed like the contours it describes.
type Forest struct {
	Nodes []Node `json:"nodes"`
}

// NewForest builds the adjacency in one pass from a raw parent array, where
// parents[i] is the index of the contour enclosing contour i or -1.
//
// A parent must be a prior index (parents[i] < i), which is what raster-order
// border following produces and which rules out cycles by construction.
func NewForest(parents []int) (*Forest, error) {
	f := &Forest{Nodes: make([]Node, len(parents))}
	for i, p := range parents {
		if p < -1 || p >= i {
			return nil, fmt.Errorf("%w: contour %d has parent %d", ErrMalformedHierarchy, i, p)
		}
		f.Nodes[i].Parent = p
		if p >= 0 {
			f.Nodes[p].Children = append(f.Nodes[p].Children, i)
		}
	}
	return f, nil
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.Nodes)
}

// Parent returns the parent index of node i, or -1.
func (f *Forest) Parent(i int) int {
	return f.Nodes[i].Parent
}

// Children returns the direct children of node i.
func (f *Forest) Children(i int) []int {
	return f.Nodes[i].Children
}

// Roots returns the indices of nodes without a parent.
func (f *Forest) Roots() []int {
	var roots []int
	for i, n := range f.Nodes {
		if n.Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// Depth returns the number of ancestors of node i.
func (f *Forest) Depth(i int) int {
	d := 0
	for p := f.Nodes[i].Parent; p >= 0; p = f.Nodes[p].Parent {
		d++
	}
	return d
}

// Validate checks that every parent index is in range, that the parent
// relation has no cycles, and that parent and child links agree in both
// directions (each child listed exactly once by its parent).
func (f *Forest) Validate() error {
	n := len(f.Nodes)
	listed := make([]int, n)
	for i, node := range f.Nodes {
		if node.Parent < -1 || node.Parent >= n {
			return fmt.Errorf("%w: node %d has parent %d out of range", ErrMalformedHierarchy, i, node.Parent)
		}
		for _, c := range node.Children {
			if c < 0 || c >= n {
				return fmt.Errorf("%w: node %d lists child %d out of range", ErrMalformedHierarchy, i, c)
			}
			if f.Nodes[c].Parent != i {
				return fmt.Errorf("%w: node %d lists child %d whose parent is %d",
					ErrMalformedHierarchy, i, c, f.Nodes[c].Parent)
			}
			listed[c]++
		}
	}
	for i, node := range f.Nodes {
		want := 0
		if node.Parent >= 0 {
			want = 1
		}
		if listed[i] != want {
			return fmt.Errorf("%w: node %d listed %d times by its parent %d",
				ErrMalformedHierarchy, i, listed[i], node.Parent)
		}
	}

	// 0 = unvisited, 1 = on the current walk, 2 = known to reach a root.
	state := make([]uint8, n)
	for i := range f.Nodes {
		var walk []int
		j := i
		for j >= 0 && state[j] == 0 {
			state[j] = 1
			walk = append(walk, j)
			j = f.Nodes[j].Parent
		}
		if j >= 0 && state[j] == 1 {
			return fmt.Errorf("%w: cycle through node %d", ErrMalformedHierarchy, j)
		}
		for _, k := range walk {
			state[k] = 2
		}
	}
	return nil
}
