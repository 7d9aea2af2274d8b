// Package search implements the requirement-gated, landmark-accelerated
// A* core (§4.4), its search-context pool (§4.6), and reconstruction into
// a tile path plus typed actions (§4.5).
package search

import (
	"container/heap"
	"context"
	"time"

	"github.com/orneryd/navpath/pkg/cooldown"
	"github.com/orneryd/navpath/pkg/requirement"
	"github.com/orneryd/navpath/pkg/snapshot"
)

// cancelCheckInterval is K in "checks an atomic cancellation flag ... at
// most once per K expansions" (§5).
const cancelCheckInterval = 1024

// resourceSlackMS is the slack §4.3's reference relaxation rule allows
// when a cheaper ready_ms arrives with a slightly higher g.
const resourceSlackMS = 50

// Engine owns the immutable graph handle and the context pool; it is safe
// for concurrent use by many callers (§5 "embarrassingly parallel across
// queries").
type Engine struct {
	Graph                *snapshot.Graph
	Pool                 *Pool
	DefaultMaxExpansions uint32
	JitterMaxFrac        float64
}

// NewEngine builds an Engine over an already-loaded graph with a context
// pool sized to poolSize (typically WORKER_THREADS, §6.4).
func NewEngine(g *snapshot.Graph, poolSize int, defaultMaxExpansions uint32, jitterMaxFrac float64) *Engine {
	return &Engine{
		Graph:                g,
		Pool:                 NewPool(g, poolSize),
		DefaultMaxExpansions: defaultMaxExpansions,
		JitterMaxFrac:        jitterMaxFrac,
	}
}

// Route resolves a request to nodes, acquires a pooled context, runs A*,
// and reconstructs the result (§2 "Data flow"). ctx governs both pool
// acquisition and the search's cooperative cancellation (§5).
func (e *Engine) Route(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	g := e.Graph

	startNode, ok := g.Tiles.Lookup(req.Start.X, req.Start.Y, req.Start.Plane)
	if !ok {
		return &Result{Status: StatusInvalidStart}, nil
	}
	goalNode, ok := g.Tiles.Lookup(req.Goal.X, req.Goal.Y, req.Goal.Plane)
	if !ok {
		return &Result{Status: StatusInvalidGoal}, nil
	}

	if startNode == goalNode {
		return &Result{Status: StatusOK, CostMS: 0, Path: emptyPathIfRequested(req), Actions: []Action{}}, nil
	}

	sc, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.Pool.Release(sc)

	maxExpansions := req.Options.MaxExpansions
	if maxExpansions == 0 {
		maxExpansions = e.DefaultMaxExpansions
	}
	sc.reset(maxExpansions, req.Surge, req.Dive)

	satisfied := requirement.Build(g, req.Requirements)
	weight := req.Options.Weight
	switch {
	case weight <= 0:
		weight = 1.0
	case weight < 1.0:
		weight = 1.0
	case weight > 1.5:
		weight = 1.5
	}
	var seed uint64
	hasSeed := req.Options.Seed != nil
	if hasSeed {
		seed = *req.Options.Seed
	}
	jit := newJitter(seed, hasSeed, e.JitterMaxFrac)

	status, heuristicHits := runAStar(ctx, sc, g, startNode, goalNode, satisfied, weight, jit)

	res := &Result{Status: status, Stats: Stats{
		Expanded:      sc.expansions,
		DurationUS:    uint32(time.Since(start).Microseconds()),
		HeuristicHits: heuristicHits,
	}}
	if status != StatusOK {
		res.Actions = []Action{}
		return res, nil
	}

	path, actions, cost := reconstruct(g, sc, startNode, goalNode, req.Options)
	res.CostMS = cost
	res.Actions = actions
	res.Path = path
	return res, nil
}

func emptyPathIfRequested(req Request) []snapshot.Point {
	if req.Options.ReturnGeometry && !req.Options.OnlyActions {
		return []snapshot.Point{}
	}
	return nil
}

// runAStar is the expansion loop proper (§4.4).
func runAStar(ctx context.Context, sc *Context, g *snapshot.Graph, start, goal snapshot.NodeID, satisfied requirement.Mask, weight float32, jit jitter) (Status, uint32) {
	h := newHeuristic(g, goal)
	var heuristicHits uint32

	push := func(node snapshot.NodeID, gScore uint32) {
		hv := h.Eval(node)
		heuristicHits++
		f := gScore + uint32(float64(hv)*float64(weight))
		heap.Push(&sc.open, &item{node: uint32(node), g: gScore, f: f, h: hv})
	}

	sc.setG(start, 0, parentStep{kind: edgeNone})
	push(start, 0)

	for sc.open.Len() > 0 {
		select {
		case <-ctx.Done():
			return StatusCancelled, heuristicHits
		default:
		}

		it := heap.Pop(&sc.open).(*item)
		node := snapshot.NodeID(it.node)

		curG, touched := sc.gScore(node)
		if !touched || it.g != curG {
			continue // stale entry superseded by a better relaxation
		}
		if sc.isClosed(node) {
			continue
		}
		if node == goal {
			return StatusOK, heuristicHits
		}

		sc.expansions++
		if sc.expansions > sc.expansionCap {
			return StatusExpansionLimit, heuristicHits
		}
		if sc.expansions%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return StatusCancelled, heuristicHits
			default:
			}
		}

		sc.close(node)
		expandMovement(sc, g, node, start, push)
		expandSpecials(sc, g, node, curG, satisfied, jit, push)
		if node == start {
			expandGlobals(sc, g, node, curG, satisfied, jit, push)
		}
	}

	return StatusUnreachable, heuristicHits
}

// expandMovement enumerates grid-step neighbors, applying JPS-style
// pruning when the node is eligible for it (§4.4, §9 "JPS applicability").
func expandMovement(sc *Context, g *snapshot.Graph, node, start snapshot.NodeID, push func(snapshot.NodeID, uint32)) {
	p := sc.parent[node]
	hasParent := node != start && p.kind != edgeNone
	var dirIn snapshot.Direction
	if hasParent && p.kind == edgeMovement {
		dirIn = p.dir
	} else {
		hasParent = false
	}

	var dirs []snapshot.Direction
	if jpsEligible(g, node, start) {
		dirs = candidateDirections(g, node, dirIn, hasParent)
	} else {
		dirs = allSetDirections(g, node)
	}

	coord := g.Coord(node)
	for _, d := range dirs {
		off := snapshot.DirOffsets[d]
		dst, ok := g.Tiles.Lookup(coord.X+off.DX, coord.Y+off.DY, coord.Plane)
		if !ok {
			continue
		}
		cost := uint32(g.BaseStepCostMS)
		if d.IsDiagonal() {
			cost = uint32(float64(g.BaseStepCostMS) * 1.4142135623730951)
		}
		relaxPlain(sc, uint32(node), dst, cost, parentStep{from: node, kind: edgeMovement, dir: d, cost: cost}, push)
	}
}

// expandSpecials iterates node's special CSR row: doors, lodestones,
// interaction chains, and resource-gated (surge/dive) edges.
func expandSpecials(sc *Context, g *snapshot.Graph, node snapshot.NodeID, curG uint32, satisfied requirement.Mask, jit jitter, push func(snapshot.NodeID, uint32)) {
	rowStart := g.SpecialRows[node]
	for i := rowStart; i < g.SpecialRows[node+1]; i++ {
		e := g.SpecialEdges[i]
		if !requirement.Eligible(g.RequirementMask(e.ReqMaskID), satisfied) {
			continue
		}
		cost := jit.Apply(uint32(node), uint32(e.Dst), e.Cost)
		step := parentStep{from: node, kind: edgeSpecial, specialIdx: int(i), cost: cost}

		switch e.Kind {
		case snapshot.KindSurge:
			relaxResource(sc, sc.Surge, node, e.Dst, curG, cost, step, push)
		case snapshot.KindDive:
			relaxResource(sc, sc.Dive, node, e.Dst, curG, cost, step, push)
		default:
			relaxPlain(sc, uint32(node), e.Dst, cost, step, push)
		}
	}
}

// expandGlobals iterates the sparse global edge list, only ever reachable
// from the query's own start node (§3 "Global edges").
func expandGlobals(sc *Context, g *snapshot.Graph, node snapshot.NodeID, curG uint32, satisfied requirement.Mask, jit jitter, push func(snapshot.NodeID, uint32)) {
	for i, e := range g.GlobalEdges {
		if !requirement.Eligible(g.RequirementMask(e.ReqMaskID), satisfied) {
			continue
		}
		cost := jit.Apply(uint32(node), uint32(e.Dst), e.Cost)
		step := parentStep{from: node, kind: edgeGlobal, globalIdx: i, cost: cost}
		relaxPlain(sc, uint32(node), e.Dst, cost, step, push)
	}
}

// relaxPlain is the shared relaxation helper for movement, plain special,
// and global edges (§9 "dynamic dispatch over edge families").
func relaxPlain(sc *Context, from uint32, to snapshot.NodeID, cost uint32, step parentStep, push func(snapshot.NodeID, uint32)) {
	fromG, _ := sc.gScore(snapshot.NodeID(from))
	tentative := fromG + cost
	curG, touched := sc.gScore(to)
	if touched && curG <= tentative {
		return
	}
	sc.setG(to, tentative, step)
	push(to, tentative)
}

// relaxResource folds the resource family's implicit wait time into edge
// cost, then relaxes under the always-relaxable policy (§4.3).
func relaxResource(sc *Context, fam *cooldown.FamilyState, from, to snapshot.NodeID, curG, baseCost uint32, step parentStep, push func(snapshot.NodeID, uint32)) {
	wait, _ := fam.Wait(from, curG)
	charges := fam.ChargesAt(from)
	cost := baseCost + wait
	tentative := curG + cost
	readyMS := tentative + fam.Config.CooldownMS

	bestG, touched := sc.gScore(to)
	if touched && !fam.Improves(to, bestG, tentative, readyMS, resourceSlackMS) {
		return
	}

	step.cost = cost
	sc.setG(to, tentative, step)
	fam.Fire(to, tentative, charges)
	push(to, tentative)
}
