package routing

import (
	"context"
	"math"
	"slices"
)

// noNode marks a node with no predecessor.
const noNode = ^uint32(0)

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist uint32
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node, dist uint32) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() uint32 {
	if len(h.items) == 0 {
		return math.MaxUint32
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// csr is the sensor graph in compressed sparse row form. Weights are raw
// pixel steps along each edge.
type csr struct {
	firstOut []uint32
	head     []uint32
	weight   []uint32
}

func (g *csr) numNodes() int { return len(g.firstOut) - 1 }

// shortestPath runs Dijkstra from src and stops when dst is settled. It
// returns the node sequence src..dst and its total weight, or a nil path when
// dst is unreachable.
func shortestPath(ctx context.Context, g *csr, src, dst uint32) ([]uint32, uint32, error) {
	n := g.numNodes()
	dist := make([]uint32, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = math.MaxUint32
		pred[i] = noNode
	}
	dist[src] = 0

	var pq MinHeap
	pq.Push(src, 0)
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		item := pq.Pop()
		u, d := item.Node, item.Dist
		if d > dist[u] {
			continue // stale entry
		}
		if u == dst {
			break
		}
		for e := g.firstOut[u]; e < g.firstOut[u+1]; e++ {
			v := g.head[e]
			nd := d + g.weight[e]
			if nd < dist[v] {
				dist[v] = nd
				pred[v] = u
				pq.Push(v, nd)
			}
		}
	}

	if dist[dst] == math.MaxUint32 {
		return nil, 0, nil
	}
	var path []uint32
	for v := dst; v != noNode; v = pred[v] {
		path = append(path, v)
	}
	slices.Reverse(path)
	return path, dist[dst], nil
}
