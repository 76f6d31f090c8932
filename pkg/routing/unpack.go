package routing

import "github.com/tomerab1/shepherd/pkg/graph"

// maxUnpackDepth bounds shortcut recursion; a shortcut chain deeper than
// this indicates corrupted back-pointers.
const maxUnpackDepth = 64

// Unpack expands a packed CH path into the ordered sequence of original
// dense node IDs from source to target.
//
// Cold records are stored in true edge orientation, and both the forward and
// backward halves of a packed path list their edges in travel order (source →
// meeting → target), so every entry is traversed From → To and a shortcut
// always expands PrevEdge before NextEdge. The visited set suppresses
// re-emission where adjacent edges share an endpoint.
func Unpack(csr *graph.CSRGraph, p *PackedPath) []uint32 {
	if p == nil {
		return nil
	}
	if len(p.Edges) == 0 {
		return []uint32{p.MeetingNode}
	}

	out := make([]uint32, 0, len(p.Edges)+1)
	visited := make(map[uint32]struct{}, len(p.Edges)+1)

	for _, pe := range p.Edges {
		unpackEdge(csr, &csr.ValuesCold[pe.Value], &out, visited, 0)
	}

	return out
}

func unpackEdge(csr *graph.CSRGraph, cold *graph.CSREdgeCold, out *[]uint32, visited map[uint32]struct{}, depth int) {
	if depth > maxUnpackDepth {
		return
	}

	if cold.IsShortcut() {
		unpackEdge(csr, csr.FwdEdgeCold(cold.PrevEdge), out, visited, depth+1)
		unpackEdge(csr, csr.BwdEdgeCold(cold.NextEdge), out, visited, depth+1)
		return
	}

	pushNode(out, visited, cold.From)
	pushNode(out, visited, cold.To)
}

func pushNode(out *[]uint32, visited map[uint32]struct{}, node uint32) {
	if _, seen := visited[node]; seen {
		return
	}
	if n := len(*out); n > 0 && (*out)[n-1] == node {
		return
	}
	visited[node] = struct{}{}
	*out = append(*out, node)
}
