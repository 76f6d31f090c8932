package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomerab1/shepherd/pkg/ch"
	"github.com/tomerab1/shepherd/pkg/geo"
	"github.com/tomerab1/shepherd/pkg/graph"
)

// buildGeoFixture creates a small L-shaped road network with real
// coordinates (about 1.1 km per 0.01 degrees of latitude):
//
//	0 (31.00, 35.00) -- 1 (31.00, 35.01) -- 2 (31.00, 35.02)
//	                                        |
//	                                        3 (31.01, 35.02)
func buildGeoFixture() *graph.Graph {
	coords := [][2]float64{
		{31.00, 35.00},
		{31.00, 35.01},
		{31.00, 35.02},
		{31.01, 35.02},
	}
	nodes := make([]graph.Node, len(coords))
	for i, c := range coords {
		nodes[i] = graph.Node{
			DenseID: uint32(i),
			OSMID:   int64(1000 + i),
			Lat:     float32(c[0]),
			Lon:     float32(c[1]),
		}
	}
	g := graph.New(nodes)

	addRoad := func(u, v uint32) {
		w := geo.Haversine(
			float64(nodes[u].Lat), float64(nodes[u].Lon),
			float64(nodes[v].Lat), float64(nodes[v].Lon))
		mi := g.AddMetadata(graph.OriginalMetadata(float32(w)))
		g.AddEdge(u, v, mi)
		g.AddEdge(v, u, mi)
	}

	addRoad(0, 1)
	addRoad(1, 2)
	addRoad(2, 3)

	return g
}

func geoEngine() *Engine {
	return NewEngine(graph.Freeze(ch.Contract(buildGeoFixture())))
}

func TestSnapToNearestEdge(t *testing.T) {
	e := geoEngine()

	// A point just north of the 0-1 road segment.
	snap, err := e.snapper.Snap(31.0005, 35.005)
	require.NoError(t, err)

	assert.Less(t, snap.Dist, 100.0)
	assert.Greater(t, snap.Ratio, 0.3)
	assert.Less(t, snap.Ratio, 0.7)

	ends := []uint32{snap.NodeU, snap.NodeV}
	assert.Contains(t, ends, uint32(0))
	assert.Contains(t, ends, uint32(1))
}

func TestSnapTooFar(t *testing.T) {
	e := geoEngine()

	_, err := e.snapper.Snap(32.0, 36.0)
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestSnapIgnoresShortcuts(t *testing.T) {
	// The 7-node fixture with coordinates: contraction adds a 2<->4 shortcut
	// whose bounding box spans the 2-3 road, so an indexed shortcut would
	// shadow it.
	g := buildFixture()
	for i := uint32(0); i < 6; i++ {
		g.Nodes[i].Lat = 31.00
		g.Nodes[i].Lon = float32(35.00 + 0.01*float64(i))
	}
	g.Nodes[6].Lat = 30.99
	g.Nodes[6].Lon = 35.03

	e := NewEngine(graph.Freeze(ch.Contract(g)))

	snap, err := e.snapper.Snap(31.0, 35.025) // middle of the 2-3 road
	require.NoError(t, err)

	assert.False(t, e.csr.ValuesCold[snap.Value].IsShortcut())
	ends := []uint32{snap.NodeU, snap.NodeV}
	assert.Contains(t, ends, uint32(2))
	assert.Contains(t, ends, uint32(3))
}

func TestEngineRoute(t *testing.T) {
	e := geoEngine()

	res, err := e.Route(context.Background(),
		LatLng{Lat: 31.0001, Lng: 35.0001}, // near node 0
		LatLng{Lat: 31.0099, Lng: 35.02})   // near node 3
	require.NoError(t, err)

	// The walk follows the road east then north. The snap-adjacent endpoints
	// may be cut off by the ratio-split seeding, but the middle is fixed.
	require.NotEmpty(t, res.Nodes)
	assert.Contains(t, res.Nodes, uint32(1))
	assert.Contains(t, res.Nodes, uint32(2))
	assert.Len(t, res.OSMIDs, len(res.Nodes))
	assert.Len(t, res.Geometry, len(res.Nodes))

	// Roughly 1.9 km east plus 1.1 km north between the snapped points.
	assert.InDelta(t, 3000, res.TotalCost, 150)
}

func TestEngineRouteNodes(t *testing.T) {
	e := geoEngine()

	res, err := e.RouteNodes(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, res.Nodes)

	want := geo.Haversine(31.00, 35.00, 31.00, 35.01) +
		geo.Haversine(31.00, 35.01, 31.00, 35.02) +
		geo.Haversine(31.00, 35.02, 31.01, 35.02)
	assert.InDelta(t, want, res.TotalCost, 1)
}

func TestEngineNoRoute(t *testing.T) {
	// Two disconnected roads.
	coords := [][2]float64{
		{31.00, 35.00}, {31.00, 35.01},
		{31.05, 35.00}, {31.05, 35.01},
	}
	nodes := make([]graph.Node, len(coords))
	for i, c := range coords {
		nodes[i] = graph.Node{
			DenseID: uint32(i),
			OSMID:   int64(2000 + i),
			Lat:     float32(c[0]),
			Lon:     float32(c[1]),
		}
	}
	g := graph.New(nodes)
	for _, road := range [][2]uint32{{0, 1}, {2, 3}} {
		w := geo.Haversine(
			float64(nodes[road[0]].Lat), float64(nodes[road[0]].Lon),
			float64(nodes[road[1]].Lat), float64(nodes[road[1]].Lon))
		mi := g.AddMetadata(graph.OriginalMetadata(float32(w)))
		g.AddEdge(road[0], road[1], mi)
		g.AddEdge(road[1], road[0], mi)
	}

	e := NewEngine(graph.Freeze(ch.Contract(g)))

	_, err := e.Route(context.Background(),
		LatLng{Lat: 31.00, Lng: 35.005},
		LatLng{Lat: 31.05, Lng: 35.005})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestEngineConcurrentQueries(t *testing.T) {
	e := geoEngine()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := e.RouteNodes(context.Background(), 0, 3)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
