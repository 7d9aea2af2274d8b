package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/navpath/pkg/requirement"
	"github.com/orneryd/navpath/pkg/snapshot"
)

// gridGraph builds a w*h 4-connected grid on plane 0, node id = y*w+x, with
// uniform 600ms step cost, a single landmark at the origin, and a second
// disconnected node (used for the unreachable-goal test). Round-tripped
// through the real binary codec so the engine exercises the exact decode
// path production traffic would.
func gridGraph(t *testing.T, w, h int) (*snapshot.Graph, func(x, y int32) snapshot.NodeID) {
	t.Helper()
	n := w*h + 1 // + 1 disconnected island node
	b := snapshot.NewBuilder(n)
	b.LandmarkCount = 1
	b.BaseStepCostMS = 600

	idx := func(x, y int) int { return y*w + x }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := idx(x, y)
			b.X[i] = int32(x)
			b.Y[i] = int32(y)
		}
	}
	b.X[n-1] = 1000
	b.Y[n-1] = 1000

	var rows []uint32
	var edges []snapshot.MovementEdge
	rows = append(rows, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := idx(x, y)
			if x+1 < w {
				edges = append(edges, snapshot.MovementEdge{Dst: snapshot.NodeID(idx(x+1, y)), Cost: 600})
				b.MovementMask[i] |= 1 << uint8(snapshot.DirE)
			}
			if x > 0 {
				edges = append(edges, snapshot.MovementEdge{Dst: snapshot.NodeID(idx(x-1, y)), Cost: 600})
				b.MovementMask[i] |= 1 << uint8(snapshot.DirW)
			}
			if y+1 < h {
				edges = append(edges, snapshot.MovementEdge{Dst: snapshot.NodeID(idx(x, y+1)), Cost: 600})
				b.MovementMask[i] |= 1 << uint8(snapshot.DirN)
			}
			if y > 0 {
				edges = append(edges, snapshot.MovementEdge{Dst: snapshot.NodeID(idx(x, y-1)), Cost: 600})
				b.MovementMask[i] |= 1 << uint8(snapshot.DirS)
			}
			rows = append(rows, uint32(len(edges)))
		}
	}
	rows = append(rows, uint32(len(edges))) // island node: no edges
	b.MovementRows = rows
	b.MovementEdges = edges
	b.SpecialRows = make([]uint32, n+1)

	lm := make([]uint32, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lm[idx(x, y)] = uint32(x+y) * 600
		}
	}
	lm[n-1] = 0
	b.Landmarks = lm

	tb := &snapshot.TileBuilder{}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tb.Add(int32(x), int32(y), 0, snapshot.NodeID(idx(x, y)))
		}
	}
	tb.Add(1000, 1000, 0, snapshot.NodeID(n-1))

	g, err := snapshot.OpenBytes(b.Build(), tb.Build(64))
	assert.NoError(t, err)

	at := func(x, y int32) snapshot.NodeID {
		node, ok := g.Tiles.Lookup(x, y, 0)
		assert.True(t, ok)
		return node
	}
	return g, at
}

func newTestEngine(g *snapshot.Graph) *Engine {
	return NewEngine(g, 2, 1_000_000, 0)
}

func TestRouteStraightLineCost(t *testing.T) {
	g, _ := gridGraph(t, 5, 5)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start:   snapshot.Point{X: 0, Y: 0},
		Goal:    snapshot.Point{X: 4, Y: 0},
		Options: Options{ReturnGeometry: true},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, uint32(4*600), res.CostMS)
	assert.Len(t, res.Path, 4)
}

func TestRouteSameStartAndGoal(t *testing.T) {
	g, _ := gridGraph(t, 3, 3)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start:   snapshot.Point{X: 1, Y: 1},
		Goal:    snapshot.Point{X: 1, Y: 1},
		Options: Options{ReturnGeometry: true},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, uint32(0), res.CostMS)
	assert.Empty(t, res.Actions)
}

func TestRouteUnreachableGoal(t *testing.T) {
	g, _ := gridGraph(t, 3, 3)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start: snapshot.Point{X: 0, Y: 0},
		Goal:  snapshot.Point{X: 1000, Y: 1000}, // the disconnected island
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusUnreachable, res.Status)
}

func TestRouteInvalidStartAndGoal(t *testing.T) {
	g, _ := gridGraph(t, 3, 3)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start: snapshot.Point{X: 50, Y: 50},
		Goal:  snapshot.Point{X: 1, Y: 1},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusInvalidStart, res.Status)

	res, err = e.Route(context.Background(), Request{
		Start: snapshot.Point{X: 0, Y: 0},
		Goal:  snapshot.Point{X: 50, Y: 50},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusInvalidGoal, res.Status)
}

func TestRouteExpansionLimit(t *testing.T) {
	g, _ := gridGraph(t, 10, 10)
	e := NewEngine(g, 1, 2, 0) // expansion budget far below what 10x10 needs

	res, err := e.Route(context.Background(), Request{
		Start: snapshot.Point{X: 0, Y: 0},
		Goal:  snapshot.Point{X: 9, Y: 9},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusExpansionLimit, res.Status)
}

func TestRouteDeterministicAcrossRepeatedCalls(t *testing.T) {
	g, _ := gridGraph(t, 6, 6)
	e := newTestEngine(g)

	req := Request{
		Start:   snapshot.Point{X: 0, Y: 0},
		Goal:    snapshot.Point{X: 5, Y: 5},
		Options: Options{ReturnGeometry: true},
	}
	first, err := e.Route(context.Background(), req)
	assert.NoError(t, err)
	for i := 0; i < 5; i++ {
		res, err := e.Route(context.Background(), req)
		assert.NoError(t, err)
		assert.Equal(t, first.Path, res.Path, "identical query must expand in a deterministic order and return the same path")
		assert.Equal(t, first.CostMS, res.CostMS)
	}
}

func TestRouteWeightedAStarNeverUndercutsUnweighted(t *testing.T) {
	g, _ := gridGraph(t, 6, 6)
	eUnweighted := newTestEngine(g)
	eWeighted := NewEngine(g, 2, 1_000_000, 0)

	req := Request{Start: snapshot.Point{X: 0, Y: 0}, Goal: snapshot.Point{X: 5, Y: 5}}

	plain, err := eUnweighted.Route(context.Background(), req)
	assert.NoError(t, err)

	reqW := req
	reqW.Options.Weight = 1.5
	weighted, err := eWeighted.Route(context.Background(), reqW)
	assert.NoError(t, err)

	assert.GreaterOrEqual(t, weighted.CostMS, plain.CostMS, "weighted A* cost must never be cheaper than the optimal cost")
}

func TestRouteCancellationReturnsCancelledStatus(t *testing.T) {
	g, _ := gridGraph(t, 20, 20)
	e := newTestEngine(g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Route(ctx, Request{
		Start: snapshot.Point{X: 0, Y: 0},
		Goal:  snapshot.Point{X: 19, Y: 19},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}

func TestHeuristicNeverOverestimatesOctile(t *testing.T) {
	g, _ := gridGraph(t, 8, 8)
	goal, _ := g.Tiles.Lookup(7, 7, 0)
	h := newHeuristic(g, goal)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			n, ok := g.Tiles.Lookup(int32(x), int32(y), 0)
			assert.True(t, ok)
			trueCost := uint32((7-x)+(7-y)) * 600 // 4-connected grid: Manhattan * step cost is the real shortest path here
			assert.LessOrEqual(t, h.Eval(n), trueCost, "heuristic must never overestimate the true remaining cost")
		}
	}
}

// gatedEdgeGraph builds two nodes joined only by a single requirement-gated
// special edge, so reachability hinges entirely on the caller's inputs.
func gatedEdgeGraph(t *testing.T) *snapshot.Graph {
	t.Helper()
	b := snapshot.NewBuilder(2)
	b.LandmarkCount = 1
	b.X = []int32{0, 10}
	b.Y = []int32{0, 0}
	b.Plane = []int8{0, 0}
	b.MovementRows = []uint32{0, 0, 0}
	b.SpecialRows = []uint32{0, 1, 1}
	b.SpecialEdges = []snapshot.SpecialEdge{
		{Dst: 1, Cost: 500, Kind: snapshot.KindDoor, ReqMaskID: 1, ActionBlobID: 0},
	}
	b.ActionBlobs = []snapshot.ActionBlob{{Kind: snapshot.KindDoor, Hint: "locked door"}}
	b.Predicates = []snapshot.PredicateDef{{ID: 0, Key: "key", Op: snapshot.OpGE, Threshold: 1}}
	b.ReqMasks = [][]uint64{{0}, {0b1}}
	b.Landmarks = []uint32{0, 500}

	tb := &snapshot.TileBuilder{}
	tb.Add(0, 0, 0, snapshot.NodeID(0))
	tb.Add(10, 0, 0, snapshot.NodeID(1))

	g, err := snapshot.OpenBytes(b.Build(), tb.Build(4))
	assert.NoError(t, err)
	return g
}

func TestRequirementGatingBlocksIneligiblePath(t *testing.T) {
	g := gatedEdgeGraph(t)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start: snapshot.Point{X: 0, Y: 0}, Goal: snapshot.Point{X: 10, Y: 0},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusUnreachable, res.Status, "without the key requirement the only edge must be ineligible")
}

func TestRequirementGatingAllowsEligiblePath(t *testing.T) {
	g := gatedEdgeGraph(t)
	e := newTestEngine(g)

	res, err := e.Route(context.Background(), Request{
		Start:        snapshot.Point{X: 0, Y: 0},
		Goal:         snapshot.Point{X: 10, Y: 0},
		Requirements: []requirement.Input{{Key: "key", Value: 1}},
		Options:      Options{ReturnGeometry: true},
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, uint32(500), res.CostMS)
	assert.Len(t, res.Actions, 1)
	assert.Equal(t, "door", res.Actions[0].Type)
}
