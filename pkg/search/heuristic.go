package search

import "github.com/orneryd/navpath/pkg/snapshot"

// landmarkUnreachable marks a builder-emitted distance that was never
// connected during the landmark precomputation; it must not participate in
// the max() the ALT bound takes.
const landmarkUnreachable = 0xFFFFFFFF

// octile computes the unweighted grid distance between two same-plane
// points using 8-directional movement, scaled by the snapshot's base step
// cost (§4.4). Cross-plane pairs have no grid-movement meaning, so the
// octile term contributes 0 and the bound rests entirely on landmarks.
func octile(a, b snapshot.Point, stepCostMS uint32) uint32 {
	if a.Plane != b.Plane {
		return 0
	}
	dx := abs32(a.X - b.X)
	dy := abs32(a.Y - b.Y)
	lo, hi := dx, dy
	if lo > hi {
		lo, hi = hi, lo
	}
	// octile = D*(dx+dy) + (D2-2D)*min(dx,dy), D2 = D*sqrt2.
	d := float64(stepCostMS)
	d2 := d * 1.4142135623730951
	val := d*float64(dx+dy) + (d2-2*d)*float64(lo)
	_ = hi
	return uint32(val)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// heuristic is the ALT bound of §4.4: the max of the octile term and the
// triangle-inequality bound over every landmark. The landmark term is a
// lower bound over the full directed graph; the octile term bounds
// movement-only paths, so a special edge that spans more tiles than its
// cost pays for (a door or teleport cheaper than the walk) can make the
// max exceed the true remaining cost.
type heuristic struct {
	g          *snapshot.Graph
	goal       snapshot.NodeID
	goalCoord  snapshot.Point
	goalLandmk []uint32
}

func newHeuristic(g *snapshot.Graph, goal snapshot.NodeID) *heuristic {
	k := int(g.LandmarkCount)
	dists := make([]uint32, k)
	for i := 0; i < k; i++ {
		dists[i] = g.LandmarkDist(goal, i)
	}
	return &heuristic{g: g, goal: goal, goalCoord: g.Coord(goal), goalLandmk: dists}
}

// Eval returns h(n) in milliseconds.
func (h *heuristic) Eval(n snapshot.NodeID) uint32 {
	best := octile(h.g.Coord(n), h.goalCoord, h.g.BaseStepCostMS)
	for k, goalDist := range h.goalLandmk {
		if goalDist == landmarkUnreachable {
			continue
		}
		nd := h.g.LandmarkDist(n, k)
		if nd == landmarkUnreachable {
			continue
		}
		var diff uint32
		if nd > goalDist {
			diff = nd - goalDist
		} else {
			diff = goalDist - nd
		}
		if diff > best {
			best = diff
		}
	}
	return best
}
