package routing

import (
	"errors"
	"math"

	"github.com/tidwall/rtree"

	"github.com/tomerab1/shepherd/pkg/geo"
	"github.com/tomerab1/shepherd/pkg/graph"
)

const maxSnapDistMeters = 500.0

// metersPerDegreeLat is close enough everywhere for sizing search boxes.
const metersPerDegreeLat = 111_320.0

// ErrPointTooFar is returned when the query point is too far from any road.
var ErrPointTooFar = errors.New("point too far from road")

// SnapResult represents a point snapped to an original road edge.
type SnapResult struct {
	Value uint32  // forward-view value index of the snapped edge
	NodeU uint32  // edge source
	NodeV uint32  // edge target
	Ratio float64 // 0.0 = at NodeU, 1.0 = at NodeV
	Dist  float64 // meters from the query point to the snapped point
}

// Snapper answers nearest-road queries with an R-tree over the bounding
// boxes of the snapshot's original (non-shortcut) edges.
type Snapper struct {
	tree rtree.RTreeG[uint32]
	csr  *graph.CSRGraph
}

// NewSnapper indexes the original edges of a snapshot.
func NewSnapper(csr *graph.CSRGraph) *Snapper {
	s := &Snapper{csr: csr}

	for v := uint32(0); v < csr.NumNodes(); v++ {
		start, end := csr.FwdRange(v)
		for i := start; i < end; i++ {
			valueIdx := csr.ColsFwd[i]
			cold := &csr.ValuesCold[valueIdx]
			if cold.IsShortcut() {
				continue
			}
			a := &csr.Nodes[cold.From]
			b := &csr.Nodes[cold.To]
			min := [2]float64{
				math.Min(float64(a.Lon), float64(b.Lon)),
				math.Min(float64(a.Lat), float64(b.Lat)),
			}
			max := [2]float64{
				math.Max(float64(a.Lon), float64(b.Lon)),
				math.Max(float64(a.Lat), float64(b.Lat)),
			}
			s.tree.Insert(min, max, valueIdx)
		}
	}

	return s
}

// Snap finds the nearest original edge to the given point, or ErrPointTooFar
// when nothing lies within the snap cutoff.
func (s *Snapper) Snap(lat, lon float64) (SnapResult, error) {
	dLat := maxSnapDistMeters / metersPerDegreeLat
	dLon := maxSnapDistMeters / (metersPerDegreeLat * math.Cos(lat*math.Pi/180))

	bestDist := math.Inf(1)
	var best SnapResult

	s.tree.Search(
		[2]float64{lon - dLon, lat - dLat},
		[2]float64{lon + dLon, lat + dLat},
		func(_, _ [2]float64, valueIdx uint32) bool {
			cold := &s.csr.ValuesCold[valueIdx]
			a := &s.csr.Nodes[cold.From]
			b := &s.csr.Nodes[cold.To]

			dist, ratio := geo.PointToSegmentDist(
				lat, lon,
				float64(a.Lat), float64(a.Lon),
				float64(b.Lat), float64(b.Lon),
			)
			if dist < bestDist {
				bestDist = dist
				best = SnapResult{
					Value: valueIdx,
					NodeU: cold.From,
					NodeV: cold.To,
					Ratio: ratio,
					Dist:  dist,
				}
			}
			return true
		},
	)

	if bestDist > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return best, nil
}
