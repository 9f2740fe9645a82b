package graph

import (
	"slices"

	"roadnet/pkg/sensors"
)

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 { return uf.size[uf.Find(x)] }

// Components groups the sensors of adj into weakly connected components,
// treating every directed edge as undirected. Components are ordered by size,
// largest first, with ties broken by their first gate; gates within a
// component are in stable gate order.
func Components(adj Adjacency) [][]sensors.GateName {
	gates := adj.Gates()
	if len(gates) == 0 {
		return nil
	}
	idx := make(map[sensors.GateName]uint32, len(gates))
	for i, g := range gates {
		idx[g] = uint32(i)
	}

	uf := NewUnionFind(uint32(len(gates)))
	for _, k := range adj.Edges() {
		to, ok := idx[k.To]
		if !ok {
			// Edge to a gate without its own entry; nothing to join.
			continue
		}
		uf.Union(idx[k.From], to)
	}

	byRoot := make(map[uint32]int)
	var comps [][]sensors.GateName
	for i, g := range gates {
		root := uf.Find(uint32(i))
		c, ok := byRoot[root]
		if !ok {
			c = len(comps)
			byRoot[root] = c
			comps = append(comps, make([]sensors.GateName, 0, uf.size[root]))
		}
		comps[c] = append(comps[c], g)
	}

	slices.SortStableFunc(comps, func(a, b []sensors.GateName) int {
		return len(b) - len(a)
	})
	return comps
}

// LargestComponent returns the gates of the largest weakly connected
// component, or nil for an empty map.
func LargestComponent(adj Adjacency) []sensors.GateName {
	comps := Components(adj)
	if len(comps) == 0 {
		return nil
	}
	return comps[0]
}
