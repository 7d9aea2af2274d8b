package search

import "github.com/orneryd/navpath/pkg/snapshot"

// jpsEligible gates Jump-Point-style pruning per node (§4.4, §9 "JPS
// applicability"): valid only on uniform grid steps with no co-located
// specials, and never at the search's own start node (where global edges
// may also apply).
func jpsEligible(g *snapshot.Graph, node, start snapshot.NodeID) bool {
	return node != start && !g.HasSpecials(node)
}

func rotate(d snapshot.Direction, steps int) snapshot.Direction {
	return snapshot.Direction((int(d) + steps + 8) % 8)
}

// isOpen reports whether a node exists at node's coordinate offset by off,
// used as the forced-neighbor "blocked" test. Absence of a node stands in
// for "blocked": this engine's grid has no separate obstacle layer, only
// walkable tiles.
func isOpen(g *snapshot.Graph, node snapshot.NodeID, off snapshot.DirOffset) bool {
	c := g.Coord(node)
	_, ok := g.Tiles.Lookup(c.X+off.DX, c.Y+off.DY, c.Plane)
	return ok
}

// candidateDirections returns the directions to expand from node, given
// the direction used to arrive there (dirIn) and whether node has a parent
// at all. With no parent (the search start, or pruning disabled) every
// mask-set direction is a candidate. Otherwise it is restricted to the
// natural successor plus forced neighbors, per standard JPS neighbor
// pruning (Harabor & Grastien), approximated here against this engine's
// walkability-only grid (no separate blocked/open distinction beyond node
// existence).
func candidateDirections(g *snapshot.Graph, node snapshot.NodeID, dirIn snapshot.Direction, hasParent bool) []snapshot.Direction {
	if !hasParent {
		return allSetDirections(g, node)
	}

	var candidates []snapshot.Direction
	if !dirIn.IsDiagonal() {
		candidates = append(candidates, dirIn)
		perp1, perp2 := rotate(dirIn, -2), rotate(dirIn, 2)
		diag1, diag2 := rotate(dirIn, -1), rotate(dirIn, 1)
		if !isOpen(g, node, snapshot.DirOffsets[perp1]) && isOpen(g, node, snapshot.DirOffsets[diag1]) {
			candidates = append(candidates, diag1)
		}
		if !isOpen(g, node, snapshot.DirOffsets[perp2]) && isOpen(g, node, snapshot.DirOffsets[diag2]) {
			candidates = append(candidates, diag2)
		}
	} else {
		comp1, comp2 := rotate(dirIn, -1), rotate(dirIn, 1)
		candidates = append(candidates, dirIn, comp1, comp2)
	}

	out := candidates[:0]
	seen := uint8(0)
	for _, d := range candidates {
		bit := uint8(1) << uint8(d)
		if seen&bit != 0 {
			continue
		}
		seen |= bit
		if g.MaskBit(node, d) {
			out = append(out, d)
		}
	}
	return out
}

func allSetDirections(g *snapshot.Graph, node snapshot.NodeID) []snapshot.Direction {
	var out []snapshot.Direction
	for d := snapshot.Direction(0); d < 8; d++ {
		if g.MaskBit(node, d) {
			out = append(out, d)
		}
	}
	return out
}
