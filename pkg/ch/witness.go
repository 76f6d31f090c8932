package ch

import (
	"math"

	"github.com/tomerab1/shepherd/pkg/graph"
)

// witnessHeapItem is an entry in the witness search min-heap.
type witnessHeapItem struct {
	node uint32
	dist float64
}

// witnessHeap is a concrete-typed binary min-heap for witness search.
type witnessHeap struct {
	items []witnessHeapItem
}

func (h *witnessHeap) Len() int { return len(h.items) }

func (h *witnessHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, witnessHeapItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *witnessHeap) Pop() witnessHeapItem {
	top := h.items[0]
	n := len(h.items) - 1
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top
}

// siftUp uses hole-sift: saves the floating item and does 1 assignment per
// level instead of 3 (swap).
func (h *witnessHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

// siftDown uses hole-sift: saves the floating item and does 1 assignment per
// level instead of 3 (swap).
func (h *witnessHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

func (h *witnessHeap) Reset() {
	h.items = h.items[:0]
}

// WitnessSearcher is a reusable single-source upper-bounded Dijkstra that
// treats one node as removed. It is sized to the graph once; Init resets it
// via a touched list, and repeated Search calls against the same source
// resume the search where the previous call stopped.
type WitnessSearcher struct {
	weights []float64
	touched []uint32
	heap    witnessHeap
	source  uint32
	ignore  uint32
}

// NewWitnessSearcher creates a searcher for a graph with numNodes nodes.
func NewWitnessSearcher(numNodes uint32) *WitnessSearcher {
	weights := make([]float64, numNodes)
	for i := range weights {
		weights[i] = math.Inf(1)
	}
	return &WitnessSearcher{
		weights: weights,
		heap:    witnessHeap{items: make([]witnessHeapItem, 0, 256)},
	}
}

// Init resets the searcher and seeds it at source, with ignore treated as
// removed from the graph.
func (ws *WitnessSearcher) Init(source, ignore uint32) {
	for _, n := range ws.touched {
		ws.weights[n] = math.Inf(1)
	}
	ws.touched = ws.touched[:0]
	ws.heap.Reset()

	ws.source = source
	ws.ignore = ignore
	ws.weights[source] = 0
	ws.touched = append(ws.touched, source)
	ws.heap.Push(source, 0)
}

// Search continues the Dijkstra until target's tentative weight is at or
// below limit, target is popped, maxHops pops have occurred in this call, or
// the queue drains. The returned tentative
// weight may be +Inf; a return value above limit means no witness was found.
func (ws *WitnessSearcher) Search(g *graph.Graph, target uint32, limit float64, maxHops int) float64 {
	hops := 0
	for {
		if ws.weights[target] <= limit {
			return ws.weights[target]
		}
		if hops >= maxHops {
			break
		}

		var cur witnessHeapItem
		for {
			if ws.heap.Len() == 0 {
				return ws.weights[target]
			}
			cur = ws.heap.Pop()
			if cur.dist <= ws.weights[cur.node] {
				break
			}
			// Stale entry superseded by a cheaper path.
		}

		for _, edgeID := range g.FwdNeighbors(cur.node) {
			e := g.GetEdge(edgeID)
			if e.DestID == ws.ignore {
				continue
			}
			w := ws.weights[cur.node] + float64(g.EdgeWeight(edgeID))
			if w < ws.weights[e.DestID] {
				if math.IsInf(ws.weights[e.DestID], 1) {
					ws.touched = append(ws.touched, e.DestID)
				}
				ws.weights[e.DestID] = w
				ws.heap.Push(e.DestID, w)
			}
		}

		hops++
		if cur.node == target {
			return ws.weights[target]
		}
	}
	return ws.weights[target]
}
