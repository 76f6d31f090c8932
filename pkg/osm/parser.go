package osm

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// NodeInfo is the per-node output of parsing.
type NodeInfo struct {
	Lat             float64
	Lon             float64
	IsTrafficSignal bool
}

// WayInfo is the per-way output of parsing. Refs keep the way's node order.
type WayInfo struct {
	Refs         []osm.NodeID
	Name         string
	MaxSpeed     uint8
	HasMaxSpeed  bool
	IsOneWay     bool
	IsRoundabout bool
}

// PreGraph is the raw parse result the graph builder consumes.
// Intersections maps each way to the refs of it that appear in more than one
// way, i.e. the true intersections along the way.
type PreGraph struct {
	Nodes         map[osm.NodeID]NodeInfo
	Ways          map[osm.WayID]WayInfo
	Intersections map[osm.WayID][]osm.NodeID
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// isCarAccessible returns true if the way is drivable by car.
func isCarAccessible(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false
	}

	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("motor_vehicle") == "no" {
		return false
	}

	return true
}

// hasTagValue reports whether any tag carries the given value, regardless of key.
func hasTagValue(tags osm.Tags, value string) bool {
	for _, tag := range tags {
		if tag.Value == value {
			return true
		}
	}
	return false
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only ways with every ref inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLon == 0 && b.MaxLon == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ParseOptions configures the parser.
type ParseOptions struct {
	BBox BBox
}

// Parse reads an OSM PBF stream and returns the PreGraph for car routing.
// The reader is consumed twice (ways first, then the nodes they reference),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*PreGraph, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	// Pass 1: ways.
	referenced := make(map[osm.NodeID]struct{})
	ways := make(map[osm.WayID]WayInfo)
	wayCount := make(map[osm.NodeID]int)

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}

		if !isCarAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		info := WayInfo{
			Name:         w.Tags.Find("name:en"),
			IsRoundabout: hasTagValue(w.Tags, "roundabout"),
		}

		if ms := w.Tags.Find("maxspeed"); ms != "" {
			if v, err := strconv.ParseUint(ms, 10, 8); err == nil {
				info.MaxSpeed = uint8(v)
				info.HasMaxSpeed = true
			}
		}

		reverse := false
		switch w.Tags.Find("oneway") {
		case "yes", "true", "1":
			info.IsOneWay = true
		case "-1", "reverse":
			info.IsOneWay = true
			reverse = true
		case "reversible":
			// Time-dependent direction, skip entirely.
			continue
		}

		refs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			refs[i] = wn.ID
		}
		if reverse {
			for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
				refs[i], refs[j] = refs[j], refs[i]
			}
		}
		info.Refs = refs

		seen := make(map[osm.NodeID]struct{}, len(refs))
		for _, id := range refs {
			referenced[id] = struct{}{}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				wayCount[id]++
			}
		}

		ways[w.ID] = info
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ways: %w", err)
	}
	if err := scanner.Close(); err != nil {
		return nil, fmt.Errorf("close way scanner: %w", err)
	}

	// Pass 2: nodes referenced by the kept ways.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind for node pass: %w", err)
	}

	nodes := make(map[osm.NodeID]NodeInfo, len(referenced))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, want := referenced[n.ID]; !want {
			continue
		}
		nodes[n.ID] = NodeInfo{
			Lat:             n.Lat,
			Lon:             n.Lon,
			IsTrafficSignal: hasTagValue(n.Tags, "traffic_signals"),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	if err := scanner.Close(); err != nil {
		return nil, fmt.Errorf("close node scanner: %w", err)
	}

	// Fail on a way that references a missing node, drop ways with
	// out-of-bbox refs, then derive the intersection multimap from the
	// survivors.
	useBBox := !opt.BBox.IsZero()
	for id, info := range ways {
		keep := true
		for _, ref := range info.Refs {
			ni, ok := nodes[ref]
			if !ok {
				return nil, fmt.Errorf("way %d references missing node %d", id, ref)
			}
			if useBBox && !opt.BBox.Contains(ni.Lat, ni.Lon) {
				keep = false
				break
			}
		}
		if !keep {
			seen := make(map[osm.NodeID]struct{}, len(info.Refs))
			for _, ref := range info.Refs {
				if _, dup := seen[ref]; dup {
					continue
				}
				seen[ref] = struct{}{}
				wayCount[ref]--
			}
			delete(ways, id)
		}
	}

	intersections := make(map[osm.WayID][]osm.NodeID)
	for id, info := range ways {
		seen := make(map[osm.NodeID]struct{}, len(info.Refs))
		for _, ref := range info.Refs {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			if wayCount[ref] > 1 {
				intersections[id] = append(intersections[id], ref)
			}
		}
	}

	log.Printf("Parsed %d ways, %d nodes, %d ways with intersections",
		len(ways), len(nodes), len(intersections))

	return &PreGraph{Nodes: nodes, Ways: ways, Intersections: intersections}, nil
}
