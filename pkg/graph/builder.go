package graph

import (
	"fmt"
	"sort"

	"github.com/paulmach/osm"

	"github.com/tomerab1/shepherd/pkg/geo"
	osmparser "github.com/tomerab1/shepherd/pkg/osm"
)

// Build turns a parsed PreGraph into the mutable adjacency-list graph.
// Dense IDs are assigned by ascending OSM ID so the mapping is stable across
// runs. Segment weights are haversine meters, scaled by the turn-cost
// multiplier when the three-node window is available at an intersection.
func Build(pre *osmparser.PreGraph) (*Graph, error) {
	// Collect the node IDs actually referenced by the kept ways.
	refSet := make(map[osm.NodeID]struct{})
	for _, way := range pre.Ways {
		for _, ref := range way.Refs {
			refSet[ref] = struct{}{}
		}
	}

	osmIDs := make([]osm.NodeID, 0, len(refSet))
	for id := range refSet {
		osmIDs = append(osmIDs, id)
	}
	sort.Slice(osmIDs, func(i, j int) bool { return osmIDs[i] < osmIDs[j] })

	nodes := make([]Node, len(osmIDs))
	denseOf := make(map[osm.NodeID]uint32, len(osmIDs))
	for i, id := range osmIDs {
		info, ok := pre.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %d referenced by a way but missing from parse result", id)
		}
		nodes[i] = Node{
			DenseID:        uint32(i),
			OSMID:          int64(id),
			Lat:            float32(info.Lat),
			Lon:            float32(info.Lon),
			IsTrafficLight: info.IsTrafficSignal,
		}
		denseOf[id] = uint32(i)
	}

	g := New(nodes)

	// Ways in ascending ID order keep edge IDs deterministic.
	wayIDs := make([]osm.WayID, 0, len(pre.Ways))
	for id := range pre.Ways {
		wayIDs = append(wayIDs, id)
	}
	sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })

	for _, wayID := range wayIDs {
		way := pre.Ways[wayID]

		crossing := make(map[osm.NodeID]struct{}, len(pre.Intersections[wayID]))
		for _, ref := range pre.Intersections[wayID] {
			crossing[ref] = struct{}{}
		}

		prev := osm.NodeID(0)
		hasPrev := false
		for i := 0; i+1 < len(way.Refs); i++ {
			u, v := way.Refs[i], way.Refs[i+1]
			if u == v {
				continue
			}

			un, vn := pre.Nodes[u], pre.Nodes[v]
			weight := geo.Haversine(un.Lat, un.Lon, vn.Lat, vn.Lon)

			// Apply the turn penalty where the way crosses another way and
			// the approach direction is known. Roundabouts are exempt: their
			// geometry is all curvature.
			if _, isCrossing := crossing[u]; isCrossing && hasPrev && !way.IsRoundabout {
				pn := pre.Nodes[prev]
				weight *= geo.TurnCost(pn.Lat, pn.Lon, un.Lat, un.Lon, vn.Lat, vn.Lon)
			}

			mi := g.AddMetadata(EdgeMetadata{
				Weight:       float32(weight),
				Name:         way.Name,
				SpeedLimit:   way.MaxSpeed,
				HasSpeed:     way.HasMaxSpeed,
				IsOneWay:     way.IsOneWay,
				IsRoundabout: way.IsRoundabout,
				PrevEdge:     NoEdge,
				NextEdge:     NoEdge,
			})
			g.AddEdge(denseOf[u], denseOf[v], mi)
			if !way.IsOneWay {
				g.AddEdge(denseOf[v], denseOf[u], mi)
			}

			prev = u
			hasPrev = true
		}
	}

	return g, nil
}
