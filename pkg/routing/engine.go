package routing

import (
	"context"
	"errors"
	"sync"

	"github.com/tomerab1/shepherd/pkg/graph"
)

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// RouteResult is the output of a route query.
type RouteResult struct {
	TotalCost float64  // summed edge costs (meters scaled by turn penalties)
	Nodes     []uint32 // dense node IDs of the unpacked walk
	OSMIDs    []int64  // the same walk as OSM node IDs
	Geometry  []LatLng
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
}

// Engine implements Router on top of a frozen CH snapshot. Queries share the
// snapshot by reference and take their mutable state from a pool, so any
// number of them may run concurrently.
type Engine struct {
	csr     *graph.CSRGraph
	snapper *Snapper
	qsPool  sync.Pool
}

// NewEngine creates a routing engine from a snapshot.
func NewEngine(csr *graph.CSRGraph) *Engine {
	e := &Engine{
		csr:     csr,
		snapper: NewSnapper(csr),
	}
	e.qsPool.New = func() any {
		return NewQueryState(csr.NumNodes())
	}
	return e
}

// Route snaps both points to the road network and computes the cheapest path.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	startSnap, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}

	qs := e.qsPool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.qsPool.Put(qs)
	}()

	// Seed both endpoints of each snapped edge, split by the projection
	// ratio, so the search may leave the edge in either direction.
	startWeight := float64(e.csr.ValuesHot[startSnap.Value].Weight)
	qs.SeedFwd(startSnap.NodeV, startWeight*(1-startSnap.Ratio))
	qs.SeedFwd(startSnap.NodeU, startWeight*startSnap.Ratio)

	endWeight := float64(e.csr.ValuesHot[endSnap.Value].Weight)
	qs.SeedBwd(endSnap.NodeU, endWeight*endSnap.Ratio)
	qs.SeedBwd(endSnap.NodeV, endWeight*(1-endSnap.Ratio))

	packed, ok := Search(ctx, e.csr, qs)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRoute
	}

	nodes := Unpack(e.csr, packed)

	result := &RouteResult{
		TotalCost: packed.Weight,
		Nodes:     nodes,
		OSMIDs:    make([]int64, len(nodes)),
		Geometry:  make([]LatLng, len(nodes)),
	}
	for i, n := range nodes {
		nd := &e.csr.Nodes[n]
		result.OSMIDs[i] = nd.OSMID
		result.Geometry[i] = LatLng{Lat: float64(nd.Lat), Lng: float64(nd.Lon)}
	}

	return result, nil
}

// RouteNodes computes the cheapest path between two dense node IDs.
func (e *Engine) RouteNodes(ctx context.Context, source, target uint32) (*RouteResult, error) {
	qs := e.qsPool.Get().(*QueryState)
	defer func() {
		qs.Reset()
		e.qsPool.Put(qs)
	}()

	packed, ok := Query(ctx, e.csr, qs, source, target)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoRoute
	}

	nodes := Unpack(e.csr, packed)
	result := &RouteResult{
		TotalCost: packed.Weight,
		Nodes:     nodes,
		OSMIDs:    make([]int64, len(nodes)),
		Geometry:  make([]LatLng, len(nodes)),
	}
	for i, n := range nodes {
		nd := &e.csr.Nodes[n]
		result.OSMIDs[i] = nd.OSMID
		result.Geometry[i] = LatLng{Lat: float64(nd.Lat), Lng: float64(nd.Lon)}
	}
	return result, nil
}
