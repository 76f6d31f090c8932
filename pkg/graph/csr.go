package graph

// CSRNode is the read-only node record in a frozen graph.
type CSRNode struct {
	DenseID uint32
	OSMID   int64
	Rank    uint32
	Lat     float32
	Lon     float32
	Flags   uint8
}

// Node flag bits.
const FlagTrafficLight = uint8(1 << 0)

// CSREdgeHot is the per-edge record touched by the query's relaxation loop.
// Target is the node reached by traversing the entry in the view's own
// direction: the edge's destination in the forward view, its source in the
// backward view.
type CSREdgeHot struct {
	Target uint32
	Weight float32
}

// CSREdgeCold is the per-edge record consulted only for unpacking and
// rendering. From/To are in true edge orientation. PrevEdge/NextEdge are
// overlay edge IDs (NoEdge for original edges); FwdValueOf/BwdValueOf on the
// graph translate them to value indices.
type CSREdgeCold struct {
	Name     string
	From     uint32
	To       uint32
	PrevEdge uint32
	NextEdge uint32
}

// IsShortcut reports whether the cold record describes a shortcut edge.
func (c *CSREdgeCold) IsShortcut() bool {
	return c.PrevEdge != NoEdge && c.NextEdge != NoEdge
}

// CSRGraph is the immutable snapshot served at query time. Two CSR views
// (forward and backward) index one shared values array; every edge is
// materialized twice so each direction iterates without a branch.
//
// Back-pointer convention: cold records store original overlay edge IDs and
// the FwdValueOf/BwdValueOf tables map an edge ID to its position in
// ValuesHot/ValuesCold for each view.
type CSRGraph struct {
	Nodes      []CSRNode
	RowFwdPtr  []uint32
	ColsFwd    []uint32
	RowBwdPtr  []uint32
	ColsBwd    []uint32
	ValuesHot  []CSREdgeHot
	ValuesCold []CSREdgeCold
	FwdValueOf []uint32
	BwdValueOf []uint32
}

// NumNodes returns the node count.
func (c *CSRGraph) NumNodes() uint32 { return uint32(len(c.Nodes)) }

// FwdRange returns the cols range of outgoing entries for node v.
func (c *CSRGraph) FwdRange(v uint32) (start, end uint32) {
	return c.RowFwdPtr[v], c.RowFwdPtr[v+1]
}

// BwdRange returns the cols range of incoming entries for node v.
func (c *CSRGraph) BwdRange(v uint32) (start, end uint32) {
	return c.RowBwdPtr[v], c.RowBwdPtr[v+1]
}

// FwdEdgeCold returns the cold record of an overlay edge via the forward view.
func (c *CSRGraph) FwdEdgeCold(edgeID uint32) *CSREdgeCold {
	return &c.ValuesCold[c.FwdValueOf[edgeID]]
}

// BwdEdgeCold returns the cold record of an overlay edge via the backward view.
func (c *CSRGraph) BwdEdgeCold(edgeID uint32) *CSREdgeCold {
	return &c.ValuesCold[c.BwdValueOf[edgeID]]
}

// Rank returns the contraction rank of a node.
func (c *CSRGraph) Rank(v uint32) uint32 { return c.Nodes[v].Rank }

// Freeze converts a contracted overlay graph into its CSR snapshot.
// Rows follow dense node order; within a row, entries follow the adjacency
// list's insertion order, so original edges precede the shortcuts added for
// the same source.
func Freeze(g *Graph) *CSRGraph {
	n := g.NumNodes()
	numEdges := g.NumEdges()

	csr := &CSRGraph{
		Nodes:      make([]CSRNode, n),
		RowFwdPtr:  make([]uint32, 0, n+1),
		ColsFwd:    make([]uint32, 0, numEdges),
		RowBwdPtr:  make([]uint32, 0, n+1),
		ColsBwd:    make([]uint32, 0, numEdges),
		ValuesHot:  make([]CSREdgeHot, 0, 2*numEdges),
		ValuesCold: make([]CSREdgeCold, 0, 2*numEdges),
		FwdValueOf: make([]uint32, numEdges),
		BwdValueOf: make([]uint32, numEdges),
	}

	appendValue := func(edgeID uint32, target uint32) uint32 {
		e := &g.Edges[edgeID]
		m := &g.EdgeMetadata[e.MetadataIndex]
		idx := uint32(len(csr.ValuesHot))
		csr.ValuesHot = append(csr.ValuesHot, CSREdgeHot{Target: target, Weight: m.Weight})
		csr.ValuesCold = append(csr.ValuesCold, CSREdgeCold{
			Name:     m.Name,
			From:     e.SrcID,
			To:       e.DestID,
			PrevEdge: m.PrevEdge,
			NextEdge: m.NextEdge,
		})
		return idx
	}

	csr.RowFwdPtr = append(csr.RowFwdPtr, 0)
	for v := uint32(0); v < n; v++ {
		for _, edgeID := range g.FwdAdj[v] {
			idx := appendValue(edgeID, g.Edges[edgeID].DestID)
			csr.FwdValueOf[edgeID] = idx
			csr.ColsFwd = append(csr.ColsFwd, idx)
		}
		csr.RowFwdPtr = append(csr.RowFwdPtr, uint32(len(csr.ColsFwd)))
	}

	csr.RowBwdPtr = append(csr.RowBwdPtr, 0)
	for v := uint32(0); v < n; v++ {
		for _, edgeID := range g.BwdAdj[v] {
			idx := appendValue(edgeID, g.Edges[edgeID].SrcID)
			csr.BwdValueOf[edgeID] = idx
			csr.ColsBwd = append(csr.ColsBwd, idx)
		}
		csr.RowBwdPtr = append(csr.RowBwdPtr, uint32(len(csr.ColsBwd)))
	}

	for i := range g.Nodes {
		nd := &g.Nodes[i]
		var flags uint8
		if nd.IsTrafficLight {
			flags |= FlagTrafficLight
		}
		csr.Nodes[i] = CSRNode{
			DenseID: nd.DenseID,
			OSMID:   nd.OSMID,
			Rank:    nd.Rank,
			Lat:     nd.Lat,
			Lon:     nd.Lon,
			Flags:   flags,
		}
	}

	return csr
}
