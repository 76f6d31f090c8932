package graph

// NoEdge is the sentinel for an absent edge reference.
const NoEdge = ^uint32(0)

// Node is a dense-indexed graph node.
type Node struct {
	DenseID        uint32
	OSMID          int64
	Rank           uint32
	Lat            float32
	Lon            float32
	IsTrafficLight bool
}

// EdgeMetadata holds the per-edge payload. An undirected road produces two
// edges sharing one metadata record. For shortcut edges PrevEdge and NextEdge
// are the IDs of the two edges the shortcut packs; for original edges both
// are NoEdge.
type EdgeMetadata struct {
	Weight       float32
	Name         string
	SpeedLimit   uint8
	HasSpeed     bool
	IsOneWay     bool
	IsRoundabout bool
	PrevEdge     uint32
	NextEdge     uint32
}

// IsShortcut reports whether the metadata belongs to a shortcut edge.
func (m *EdgeMetadata) IsShortcut() bool {
	return m.PrevEdge != NoEdge && m.NextEdge != NoEdge
}

// Edge is a directed edge. Edge IDs index the append-only edges array and are
// never reused; adjacency lists are the only source of truth for reachability.
type Edge struct {
	SrcID         uint32
	DestID        uint32
	MetadataIndex uint32
}

// Graph is the mutable adjacency-list graph used during preprocessing.
// FwdAdj[v] holds the IDs of edges leaving v, BwdAdj[v] the IDs of edges
// entering v.
type Graph struct {
	Nodes        []Node
	Edges        []Edge
	EdgeMetadata []EdgeMetadata
	FwdAdj       [][]uint32
	BwdAdj       [][]uint32
}

// New creates an empty graph over the given node array.
func New(nodes []Node) *Graph {
	return &Graph{
		Nodes:  nodes,
		FwdAdj: make([][]uint32, len(nodes)),
		BwdAdj: make([][]uint32, len(nodes)),
	}
}

// OriginalMetadata returns a metadata record for a non-shortcut edge with the
// back-pointers set to NoEdge.
func OriginalMetadata(weight float32) EdgeMetadata {
	return EdgeMetadata{Weight: weight, PrevEdge: NoEdge, NextEdge: NoEdge}
}

// Clone returns a graph with independent edge arrays and adjacency lists but
// the same node slice. The contractor keeps two such instances: the shrinking
// search graph and the accumulating overlay.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:        g.Nodes,
		Edges:        append([]Edge(nil), g.Edges...),
		EdgeMetadata: append([]EdgeMetadata(nil), g.EdgeMetadata...),
		FwdAdj:       make([][]uint32, len(g.FwdAdj)),
		BwdAdj:       make([][]uint32, len(g.BwdAdj)),
	}
	for i := range g.FwdAdj {
		c.FwdAdj[i] = append([]uint32(nil), g.FwdAdj[i]...)
	}
	for i := range g.BwdAdj {
		c.BwdAdj[i] = append([]uint32(nil), g.BwdAdj[i]...)
	}
	return c
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() uint32 { return uint32(len(g.Nodes)) }

// NumEdges returns the edge count, dead adjacency entries included.
func (g *Graph) NumEdges() uint32 { return uint32(len(g.Edges)) }

// FwdNeighbors returns the forward adjacency list of v. The returned slice is
// the live list, not a copy.
func (g *Graph) FwdNeighbors(v uint32) []uint32 { return g.FwdAdj[v] }

// BwdNeighbors returns the backward adjacency list of v.
func (g *Graph) BwdNeighbors(v uint32) []uint32 { return g.BwdAdj[v] }

// GetNode returns the node with the given dense ID.
func (g *Graph) GetNode(denseID uint32) *Node { return &g.Nodes[denseID] }

// GetEdge returns the edge with the given ID.
func (g *Graph) GetEdge(edgeID uint32) *Edge { return &g.Edges[edgeID] }

// GetMetadata returns the metadata record of an edge.
func (g *Graph) GetMetadata(edgeID uint32) *EdgeMetadata {
	return &g.EdgeMetadata[g.Edges[edgeID].MetadataIndex]
}

// EdgeWeight returns the weight of an edge.
func (g *Graph) EdgeWeight(edgeID uint32) float32 {
	return g.EdgeMetadata[g.Edges[edgeID].MetadataIndex].Weight
}

// AddMetadata appends a metadata record and returns its index.
func (g *Graph) AddMetadata(m EdgeMetadata) uint32 {
	g.EdgeMetadata = append(g.EdgeMetadata, m)
	return uint32(len(g.EdgeMetadata) - 1)
}

// AddEdge appends a directed edge, updates both adjacency lists and returns
// the new edge ID.
func (g *Graph) AddEdge(srcID, destID, metadataIndex uint32) uint32 {
	edgeID := uint32(len(g.Edges))
	g.Edges = append(g.Edges, Edge{SrcID: srcID, DestID: destID, MetadataIndex: metadataIndex})
	g.FwdAdj[srcID] = append(g.FwdAdj[srcID], edgeID)
	g.BwdAdj[destID] = append(g.BwdAdj[destID], edgeID)
	return edgeID
}

// AddShortcutEdge appends a shortcut edge whose metadata packs prevEdge and
// nextEdge, and returns the new edge ID.
func (g *Graph) AddShortcutEdge(srcID, destID uint32, weight float32, prevEdge, nextEdge uint32) uint32 {
	mi := g.AddMetadata(EdgeMetadata{
		Weight:   weight,
		IsOneWay: true,
		PrevEdge: prevEdge,
		NextEdge: nextEdge,
	})
	return g.AddEdge(srcID, destID, mi)
}

// RemoveIncident detaches every edge incident to v from the adjacency lists.
// The edges and metadata arrays are untouched, so edge IDs referenced by
// shortcut back-pointers stay valid.
func (g *Graph) RemoveIncident(v uint32) {
	for _, edgeID := range g.FwdAdj[v] {
		dest := g.Edges[edgeID].DestID
		g.BwdAdj[dest] = removeID(g.BwdAdj[dest], edgeID)
	}
	for _, edgeID := range g.BwdAdj[v] {
		src := g.Edges[edgeID].SrcID
		g.FwdAdj[src] = removeID(g.FwdAdj[src], edgeID)
	}
	g.FwdAdj[v] = g.FwdAdj[v][:0]
	g.BwdAdj[v] = g.BwdAdj[v][:0]
}

func removeID(list []uint32, id uint32) []uint32 {
	for i, e := range list {
		if e == id {
			list[i] = list[len(list)-1]
			return list[:len(list)-1]
		}
	}
	return list
}
