package routing

import (
	"context"
	"math"

	"github.com/tomerab1/shepherd/pkg/graph"
)

const noNode = ^uint32(0)

// PackedEdge is one step of a CH query result: a position in the snapshot's
// values array plus the search direction that produced it.
type PackedEdge struct {
	Value   uint32
	Forward bool
}

// PackedPath is the result of a bidirectional CH query. Forward entries run
// source → meeting node, backward entries meeting node → target; both kinds
// may be shortcuts that still need unpacking.
type PackedPath struct {
	Edges       []PackedEdge
	MeetingNode uint32
	Weight      float64
}

// MinHeap is a concrete-typed min-heap for the query priority queues.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
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

// PeekDist returns the smallest key, or +Inf for an empty heap.
func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
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

// QueryState holds per-query state for the bidirectional CH Dijkstra. It is
// sized to the graph once and reset through a touched list, so pooled reuse
// across queries is cheap.
type QueryState struct {
	DistFwd     []float64
	DistBwd     []float64
	PredFwdNode []uint32
	PredBwdNode []uint32
	PredFwdEdge []uint32 // value index of the relaxed entry, noNode if seed
	PredBwdEdge []uint32
	Touched     []uint32
	FwdPQ       MinHeap
	BwdPQ       MinHeap
}

// NewQueryState creates a QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	qs := &QueryState{
		DistFwd:     make([]float64, n),
		DistBwd:     make([]float64, n),
		PredFwdNode: make([]uint32, n),
		PredBwdNode: make([]uint32, n),
		PredFwdEdge: make([]uint32, n),
		PredBwdEdge: make([]uint32, n),
		Touched:     make([]uint32, 0, 1024),
		FwdPQ:       MinHeap{items: make([]PQItem, 0, 256)},
		BwdPQ:       MinHeap{items: make([]PQItem, 0, 256)},
	}
	for i := range qs.DistFwd {
		qs.DistFwd[i] = math.Inf(1)
		qs.DistBwd[i] = math.Inf(1)
		qs.PredFwdNode[i] = noNode
		qs.PredBwdNode[i] = noNode
		qs.PredFwdEdge[i] = noNode
		qs.PredBwdEdge[i] = noNode
	}
	return qs
}

// Reset clears only the touched entries for reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.DistFwd[node] = math.Inf(1)
		qs.DistBwd[node] = math.Inf(1)
		qs.PredFwdNode[node] = noNode
		qs.PredBwdNode[node] = noNode
		qs.PredFwdEdge[node] = noNode
		qs.PredBwdEdge[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.FwdPQ.Reset()
	qs.BwdPQ.Reset()
}

func (qs *QueryState) touch(node uint32) {
	if math.IsInf(qs.DistFwd[node], 1) && math.IsInf(qs.DistBwd[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
}

// SeedFwd seeds the forward search at node with the given start cost.
func (qs *QueryState) SeedFwd(node uint32, dist float64) {
	qs.touch(node)
	if dist < qs.DistFwd[node] {
		qs.DistFwd[node] = dist
		qs.FwdPQ.Push(node, dist)
	}
}

// SeedBwd seeds the backward search at node with the given start cost.
func (qs *QueryState) SeedBwd(node uint32, dist float64) {
	qs.touch(node)
	if dist < qs.DistBwd[node] {
		qs.DistBwd[node] = dist
		qs.BwdPQ.Push(node, dist)
	}
}

// Init resets the state and seeds a plain node-to-node query.
func (qs *QueryState) Init(source, target uint32) {
	qs.Reset()
	qs.SeedFwd(source, 0)
	qs.SeedBwd(target, 0)
}

// Search runs the bidirectional upward CH Dijkstra over the snapshot using
// previously planted seeds. It returns the packed path and true, or nil and
// false when the frontiers never meet. The context is checked between pops;
// on cancellation the best path found so far (possibly none) is returned.
func Search(ctx context.Context, csr *graph.CSRGraph, qs *QueryState) (*PackedPath, bool) {
	mu := math.Inf(1)
	meetNode := noNode

	iterations := 0

	for {
		fwdMin := qs.FwdPQ.PeekDist()
		bwdMin := qs.BwdPQ.PeekDist()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		// Check cancellation periodically (bitmask avoids modulo).
		iterations++
		if iterations&255 == 0 && ctx.Err() != nil {
			break
		}

		// Forward step from the smaller side first.
		if fwdMin <= bwdMin && fwdMin < mu {
			item := qs.FwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d <= qs.DistFwd[u] {
				if candidate := d + qs.DistBwd[u]; candidate < mu {
					mu = candidate
					meetNode = u
				}

				rankU := csr.Rank(u)
				start, end := csr.FwdRange(u)
				for i := start; i < end; i++ {
					valueIdx := csr.ColsFwd[i]
					hot := &csr.ValuesHot[valueIdx]
					v := hot.Target
					if csr.Rank(v) < rankU {
						continue
					}
					newDist := d + float64(hot.Weight)
					if newDist < qs.DistFwd[v] {
						qs.touch(v)
						qs.DistFwd[v] = newDist
						qs.PredFwdNode[v] = u
						qs.PredFwdEdge[v] = valueIdx
						qs.FwdPQ.Push(v, newDist)
						if candidate := newDist + qs.DistBwd[v]; candidate < mu {
							mu = candidate
							meetNode = v
						}
					}
				}
			}
			continue
		}

		// Backward step.
		if bwdMin < mu {
			item := qs.BwdPQ.Pop()
			u := item.Node
			d := item.Dist

			if d <= qs.DistBwd[u] {
				if candidate := qs.DistFwd[u] + d; candidate < mu {
					mu = candidate
					meetNode = u
				}

				rankU := csr.Rank(u)
				start, end := csr.BwdRange(u)
				for i := start; i < end; i++ {
					valueIdx := csr.ColsBwd[i]
					hot := &csr.ValuesHot[valueIdx]
					v := hot.Target
					if csr.Rank(v) < rankU {
						continue
					}
					newDist := d + float64(hot.Weight)
					if newDist < qs.DistBwd[v] {
						qs.touch(v)
						qs.DistBwd[v] = newDist
						qs.PredBwdNode[v] = u
						qs.PredBwdEdge[v] = valueIdx
						qs.BwdPQ.Push(v, newDist)
						if candidate := qs.DistFwd[v] + newDist; candidate < mu {
							mu = candidate
							meetNode = v
						}
					}
				}
			}
		}
	}

	if meetNode == noNode || math.IsInf(mu, 1) {
		return nil, false
	}

	return reconstruct(qs, meetNode, mu), true
}

// Query answers a plain node-to-node shortest path question. A query from a
// node to itself costs zero, unless the node has no incident edges at all:
// an isolated node is not on the road network and gets no path.
func Query(ctx context.Context, csr *graph.CSRGraph, qs *QueryState, source, target uint32) (*PackedPath, bool) {
	if source == target {
		fs, fe := csr.FwdRange(source)
		bs, be := csr.BwdRange(source)
		if fs == fe && bs == be {
			return nil, false
		}
		return &PackedPath{MeetingNode: source, Weight: 0}, true
	}
	qs.Init(source, target)
	return Search(ctx, csr, qs)
}

// reconstruct builds the packed path around the meeting node: forward
// predecessor edges reversed into source → meeting order, then backward
// predecessor edges in meeting → target order.
func reconstruct(qs *QueryState, meetNode uint32, mu float64) *PackedPath {
	var fwdEdges []PackedEdge
	node := meetNode
	for qs.PredFwdNode[node] != noNode {
		fwdEdges = append(fwdEdges, PackedEdge{Value: qs.PredFwdEdge[node], Forward: true})
		node = qs.PredFwdNode[node]
	}
	for i, j := 0, len(fwdEdges)-1; i < j; i, j = i+1, j-1 {
		fwdEdges[i], fwdEdges[j] = fwdEdges[j], fwdEdges[i]
	}

	node = meetNode
	for qs.PredBwdNode[node] != noNode {
		fwdEdges = append(fwdEdges, PackedEdge{Value: qs.PredBwdEdge[node], Forward: false})
		node = qs.PredBwdNode[node]
	}

	return &PackedPath{Edges: fwdEdges, MeetingNode: meetNode, Weight: mu}
}
