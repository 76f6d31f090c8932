package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // byte is sufficient; max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}

	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// LargestComponent returns the dense IDs of the largest weakly connected
// component (the directed graph treated as undirected).
func LargestComponent(g *Graph) []uint32 {
	n := g.NumNodes()
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(n)
	for u := uint32(0); u < n; u++ {
		for _, edgeID := range g.FwdAdj[u] {
			uf.Union(u, g.Edges[edgeID].DestID)
		}
	}

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < n; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}

	return nodes
}

// FilterToComponent creates a new graph containing only the given nodes,
// renumbered to fresh dense IDs in the order passed. Edges with either
// endpoint outside the set are dropped; surviving edges get fresh IDs and
// copied metadata.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return New(nil)
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	newNodes := make([]Node, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
		newNodes[newIdx] = g.Nodes[oldIdx]
		newNodes[newIdx].DenseID = uint32(newIdx)
	}

	out := New(newNodes)

	// Metadata records are shared between a road's two directed edges;
	// carry the sharing over.
	metaOf := make(map[uint32]uint32)

	for _, oldU := range nodes {
		newU := oldToNew[oldU]
		for _, edgeID := range g.FwdAdj[oldU] {
			e := &g.Edges[edgeID]
			newV, ok := oldToNew[e.DestID]
			if !ok {
				continue
			}
			mi, ok := metaOf[e.MetadataIndex]
			if !ok {
				mi = out.AddMetadata(g.EdgeMetadata[e.MetadataIndex])
				metaOf[e.MetadataIndex] = mi
			}
			out.AddEdge(newU, newV, mi)
		}
	}

	return out
}
