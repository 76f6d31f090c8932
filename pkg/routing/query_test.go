package routing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomerab1/shepherd/pkg/ch"
	"github.com/tomerab1/shepherd/pkg/graph"
)

// fixtureRoads are the bidirectional roads of the 7-node test graph:
//
//	0 -- 1 -- 2 -- 3 -- 4 -- 5
//	          \         /
//	           6 ------
type fixtureRoad struct {
	u, v uint32
	w    float32
}

var fixtureRoads = []fixtureRoad{
	{0, 1, 10},
	{1, 2, 3},
	{2, 3, 6},
	{3, 4, 7},
	{4, 5, 8},
	{2, 6, 9},
	{4, 6, 4},
}

// buildFixture creates the test graph, optionally leaving out some roads.
func buildFixture(skip ...fixtureRoad) *graph.Graph {
	osmIDs := []int64{101, 103, 104, 105, 106, 107, 108}
	nodes := make([]graph.Node, len(osmIDs))
	for i, id := range osmIDs {
		nodes[i] = graph.Node{DenseID: uint32(i), OSMID: id}
	}
	g := graph.New(nodes)

	for _, r := range fixtureRoads {
		skipped := false
		for _, s := range skip {
			if s.u == r.u && s.v == r.v {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		mi := g.AddMetadata(graph.OriginalMetadata(r.w))
		g.AddEdge(r.u, r.v, mi)
		g.AddEdge(r.v, r.u, mi)
	}

	return g
}

// contractAndFreeze runs the full preprocessing pipeline on a fresh graph.
func contractAndFreeze(g *graph.Graph) *graph.CSRGraph {
	return graph.Freeze(ch.Contract(g))
}

// plainDijkstra runs a straightforward Dijkstra on the original graph.
func plainDijkstra(g *graph.Graph, source, target uint32) float64 {
	dist := make([]float64, g.NumNodes())
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[source] = 0

	type item struct {
		node uint32
		dist float64
	}
	pq := []item{{source, 0}}

	for len(pq) > 0 {
		minIdx := 0
		for i := 1; i < len(pq); i++ {
			if pq[i].dist < pq[minIdx].dist {
				minIdx = i
			}
		}
		cur := pq[minIdx]
		pq[minIdx] = pq[len(pq)-1]
		pq = pq[:len(pq)-1]

		if cur.dist > dist[cur.node] {
			continue
		}

		for _, e := range g.FwdNeighbors(cur.node) {
			v := g.GetEdge(e).DestID
			nd := cur.dist + float64(g.EdgeWeight(e))
			if nd < dist[v] {
				dist[v] = nd
				pq = append(pq, item{v, nd})
			}
		}
	}

	return dist[target]
}

func TestQueryChainPath(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 0, 5)
	require.True(t, ok)
	assert.InDelta(t, 34, packed.Weight, 1e-4)

	nodes := Unpack(csr, packed)
	// Two equal-cost optimal walks exist (via 3 or via 6, both 34).
	assert.Contains(t, [][]uint32{
		{0, 1, 2, 3, 4, 5},
		{0, 1, 2, 6, 4, 5},
	}, nodes)
}

func TestQueryBranchPath(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 0, 6)
	require.True(t, ok)
	assert.InDelta(t, 22, packed.Weight, 1e-4)
	assert.Equal(t, []uint32{0, 1, 2, 6}, Unpack(csr, packed))
}

func TestQueryShortHop(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 5, 6)
	require.True(t, ok)
	assert.InDelta(t, 12, packed.Weight, 1e-4)
	assert.Equal(t, []uint32{5, 4, 6}, Unpack(csr, packed))
}

func TestQuerySourceEqualsTarget(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 3, 3)
	require.True(t, ok)
	assert.Equal(t, 0.0, packed.Weight)
	assert.Equal(t, []uint32{3}, Unpack(csr, packed))
}

func TestQueryIsolatedNode(t *testing.T) {
	g := buildFixture()
	g.RemoveIncident(0)
	csr := contractAndFreeze(g)
	qs := NewQueryState(csr.NumNodes())

	_, ok := Query(context.Background(), csr, qs, 0, 0)
	assert.False(t, ok, "isolated node must have no path, even to itself")

	_, ok = Query(context.Background(), csr, qs, 0, 5)
	assert.False(t, ok)
}

func TestQueryAfterEdgeRemoval(t *testing.T) {
	// Without the 4-6 road, 0 -> 6 still goes through 2-6.
	csr := contractAndFreeze(buildFixture(fixtureRoad{u: 4, v: 6}))
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 0, 6)
	require.True(t, ok)
	assert.InDelta(t, 22, packed.Weight, 1e-4)
	assert.Equal(t, []uint32{0, 1, 2, 6}, Unpack(csr, packed))

	// With 2-6 gone as well, node 6 is unreachable.
	csr = contractAndFreeze(buildFixture(fixtureRoad{u: 4, v: 6}, fixtureRoad{u: 2, v: 6}))
	qs = NewQueryState(csr.NumNodes())

	_, ok = Query(context.Background(), csr, qs, 0, 6)
	assert.False(t, ok)
}

func TestQueryMatchesPlainDijkstra(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	original := buildFixture()
	qs := NewQueryState(csr.NumNodes())

	for s := uint32(0); s < original.NumNodes(); s++ {
		for d := uint32(0); d < original.NumNodes(); d++ {
			want := plainDijkstra(original, s, d)
			packed, ok := Query(context.Background(), csr, qs, s, d)

			if math.IsInf(want, 1) {
				assert.False(t, ok, "%d->%d should have no path", s, d)
				continue
			}
			require.True(t, ok, "%d->%d", s, d)
			assert.InDelta(t, want, packed.Weight, 1e-4, "%d->%d", s, d)
		}
	}
}

func TestQueryDisconnectedComponents(t *testing.T) {
	// Splitting the chain at 3-4 leaves {0,1,2,3,6?}... 6 connects 2 and 4,
	// so drop 2-6 as well: components {0,1,2,3} and {4,5,6}.
	csr := contractAndFreeze(buildFixture(fixtureRoad{u: 3, v: 4}, fixtureRoad{u: 2, v: 6}))
	qs := NewQueryState(csr.NumNodes())

	_, ok := Query(context.Background(), csr, qs, 0, 5)
	assert.False(t, ok)

	packed, ok := Query(context.Background(), csr, qs, 5, 6)
	require.True(t, ok)
	assert.InDelta(t, 12, packed.Weight, 1e-4)
}

func TestQueryTwoNodeGraph(t *testing.T) {
	nodes := []graph.Node{{DenseID: 0, OSMID: 1}, {DenseID: 1, OSMID: 2}}
	g := graph.New(nodes)
	mi := g.AddMetadata(graph.OriginalMetadata(5))
	g.AddEdge(0, 1, mi)
	g.AddEdge(1, 0, mi)

	csr := contractAndFreeze(g)
	qs := NewQueryState(csr.NumNodes())

	packed, ok := Query(context.Background(), csr, qs, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 5, packed.Weight, 1e-6)
	assert.Equal(t, []uint32{0, 1}, Unpack(csr, packed))

	packed, ok = Query(context.Background(), csr, qs, 1, 0)
	require.True(t, ok)
	assert.InDelta(t, 5, packed.Weight, 1e-6)
	assert.Equal(t, []uint32{1, 0}, Unpack(csr, packed))
}

func TestQueryStateReuse(t *testing.T) {
	csr := contractAndFreeze(buildFixture())
	qs := NewQueryState(csr.NumNodes())

	first, ok := Query(context.Background(), csr, qs, 0, 5)
	require.True(t, ok)
	second, ok := Query(context.Background(), csr, qs, 0, 5)
	require.True(t, ok)

	assert.Equal(t, first.Weight, second.Weight)
	assert.Equal(t, first.Edges, second.Edges)
}
