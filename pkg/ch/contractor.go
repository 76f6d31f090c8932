package ch

import (
	"container/heap"
	"log"
	"runtime"
	"sync"

	"github.com/tomerab1/shepherd/pkg/graph"
)

// witnessMaxHops bounds the pops of a single witness search.
const witnessMaxHops = 500

// Contract runs Contraction Hierarchies preprocessing. The passed graph is
// consumed: its adjacency shrinks as nodes are contracted, which keeps
// witness searches local. The returned overlay shares the node array (and
// therefore the final ranks) and accumulates every original edge plus every
// shortcut; it is the graph to freeze into a CSR snapshot.
//
// Shortcuts are appended to the search graph and the overlay in lockstep, so
// an edge ID means the same edge in both and the PrevEdge/NextEdge
// back-pointers recorded here are valid overlay edge IDs.
func Contract(g *graph.Graph) *graph.Graph {
	n := g.NumNodes()
	overlay := g.Clone()
	if n == 0 {
		return overlay
	}

	ws := NewWitnessSearcher(n)

	log.Printf("Ranking %d nodes...", n)
	pq := buildQueue(g)

	log.Printf("Starting contraction of %d nodes...", n)

	var totalShortcuts int
	contractedCount := uint32(0)

	for pq.Len() > 0 {
		entry := heap.Pop(&pq).(*pqEntry)
		u := entry.node

		// Insert a shortcut for every (w, v) pair that loses its only
		// shortest path when u goes away.
		for _, bwdEdgeID := range g.BwdNeighbors(u) {
			w := g.GetEdge(bwdEdgeID).SrcID
			if w == u {
				continue
			}
			ws.Init(w, u)
			for _, fwdEdgeID := range g.FwdNeighbors(u) {
				v := g.GetEdge(fwdEdgeID).DestID
				if v == w || v == u {
					continue
				}

				combined := float64(g.EdgeWeight(bwdEdgeID)) + float64(g.EdgeWeight(fwdEdgeID))
				witness := ws.Search(g, v, combined, witnessMaxHops)
				if witness > combined {
					overlay.AddShortcutEdge(w, v, float32(combined), bwdEdgeID, fwdEdgeID)
					g.AddShortcutEdge(w, v, float32(combined), bwdEdgeID, fwdEdgeID)
					totalShortcuts++
				}
			}
		}

		// Raise neighbor ranks and refresh their priorities before u's
		// edges disappear.
		newLevel := g.Nodes[u].Rank + 1
		for _, nb := range neighborsOf(g, u) {
			if g.Nodes[nb].Rank < newLevel {
				g.Nodes[nb].Rank = newLevel
			}
			if e := pq.entryOf(nb); e != nil {
				e.importance = importance(g, ws, nb)
				heap.Fix(&pq, e.index)
			}
		}

		g.RemoveIncident(u)

		contractedCount++
		if interval := logInterval(n - contractedCount); contractedCount%interval == 0 {
			log.Printf("Contracted %d/%d nodes, %d shortcuts so far", contractedCount, n, totalShortcuts)
		}
	}

	log.Printf("Contraction complete: %d shortcuts created (%d overlay edges)",
		totalShortcuts, overlay.NumEdges())

	return overlay
}

// importance scores a node for contraction ordering: the number of shortcuts
// its removal would force, minus its degree. Lower contracts first.
func importance(g *graph.Graph, ws *WitnessSearcher, u uint32) int {
	inList := g.BwdNeighbors(u)
	outList := g.FwdNeighbors(u)

	needed := 0
	for _, bwdEdgeID := range inList {
		w := g.GetEdge(bwdEdgeID).SrcID
		if w == u {
			continue
		}
		ws.Init(w, u)
		for _, fwdEdgeID := range outList {
			v := g.GetEdge(fwdEdgeID).DestID
			if v == w || v == u {
				continue
			}
			combined := float64(g.EdgeWeight(bwdEdgeID)) + float64(g.EdgeWeight(fwdEdgeID))
			if ws.Search(g, v, combined, witnessMaxHops) > combined {
				needed++
			}
		}
	}

	return needed - (len(inList) + len(outList))
}

// buildQueue ranks all nodes in parallel against the not-yet-mutated graph
// and heapifies the result. Each worker owns its searcher; the graph is only
// read.
func buildQueue(g *graph.Graph) importanceQueue {
	n := g.NumNodes()
	importances := make([]int, n)

	workers := runtime.NumCPU()
	if workers > int(n) {
		workers = int(n)
	}
	chunk := (int(n) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > int(n) {
			end = int(n)
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			ws := NewWitnessSearcher(n)
			for i := start; i < end; i++ {
				importances[i] = importance(g, ws, uint32(i))
			}
		}(start, end)
	}
	wg.Wait()

	pq := importanceQueue{
		entries: make([]*pqEntry, n),
		byNode:  make([]*pqEntry, n),
	}
	for i := uint32(0); i < n; i++ {
		e := &pqEntry{node: i, importance: importances[i], index: int(i)}
		pq.entries[i] = e
		pq.byNode[i] = e
	}
	heap.Init(&pq)
	return pq
}

// neighborsOf collects the distinct neighbors of u in either direction,
// in adjacency order.
func neighborsOf(g *graph.Graph, u uint32) []uint32 {
	seen := make(map[uint32]struct{})
	var out []uint32
	add := func(v uint32) {
		if v == u {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, edgeID := range g.BwdNeighbors(u) {
		add(g.GetEdge(edgeID).SrcID)
	}
	for _, edgeID := range g.FwdNeighbors(u) {
		add(g.GetEdge(edgeID).DestID)
	}
	return out
}

func logInterval(remaining uint32) uint32 {
	switch {
	case remaining < 1_000:
		return 100
	case remaining < 10_000:
		return 1_000
	case remaining < 100_000:
		return 10_000
	default:
		return 50_000
	}
}

// pqEntry is a node in the contraction priority queue.
type pqEntry struct {
	node       uint32
	importance int
	index      int // position in the heap, -1 once popped
}

// importanceQueue is an indexed min-heap over node importance. Ties break by
// dense ID ascending so the contraction order is stable across runs.
type importanceQueue struct {
	entries []*pqEntry
	byNode  []*pqEntry
}

func (pq importanceQueue) Len() int { return len(pq.entries) }

func (pq importanceQueue) Less(i, j int) bool {
	a, b := pq.entries[i], pq.entries[j]
	if a.importance != b.importance {
		return a.importance < b.importance
	}
	return a.node < b.node
}

func (pq importanceQueue) Swap(i, j int) {
	pq.entries[i], pq.entries[j] = pq.entries[j], pq.entries[i]
	pq.entries[i].index = i
	pq.entries[j].index = j
}

func (pq *importanceQueue) Push(x any) {
	e := x.(*pqEntry)
	e.index = len(pq.entries)
	pq.entries = append(pq.entries, e)
}

func (pq *importanceQueue) Pop() any {
	old := pq.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	pq.entries = old[:n-1]
	return e
}

// entryOf returns the live queue entry for a node, or nil once it was popped.
func (pq *importanceQueue) entryOf(node uint32) *pqEntry {
	e := pq.byNode[node]
	if e == nil || e.index < 0 {
		return nil
	}
	return e
}
