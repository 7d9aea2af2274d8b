package search

import "github.com/orneryd/navpath/pkg/snapshot"

// reconstruct walks the parent chain from goal to start and rebuilds the
// tile path and the typed action list, expanding chain edges into their
// constituent sub-actions (§4.5). Chain links never appeared as separate
// graph edges during search; their cumulative cost was pre-folded into the
// traversed edge, so the last emitted link absorbs any jitter delta to
// keep cost_ms == sum(action.cost_ms) exact (§8 "Cost identity").
func reconstruct(g *snapshot.Graph, sc *Context, start, goal snapshot.NodeID, opts Options) ([]snapshot.Point, []Action, uint32) {
	type hop struct {
		to   snapshot.NodeID
		step parentStep
	}
	var hops []hop
	for cur := goal; cur != start; {
		step := sc.parent[cur]
		hops = append(hops, hop{to: cur, step: step})
		cur = step.from
	}
	// hops were collected goal->start; reverse to start->goal.
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}

	var path []snapshot.Point
	wantPath := opts.ReturnGeometry && !opts.OnlyActions
	var actions []Action
	var total uint32

	emit := func(a Action) {
		actions = append(actions, a)
		total += a.CostMS
	}

	for _, hp := range hops {
		dstCoord := g.Coord(hp.to)
		switch hp.step.kind {
		case edgeMovement:
			if wantPath {
				path = append(path, dstCoord)
			}
			emit(Action{Type: "move", CostMS: hp.step.cost, To: snapshot.Bounds{Min: dstCoord, Max: dstCoord}})

		case edgeSpecial:
			edge := g.SpecialEdges[hp.step.specialIdx]
			if wantPath {
				path = append(path, dstCoord)
			}
			if edge.IsChain() {
				emitChain(g, edge.ActionBlobID, hp.step.cost, emit)
			} else {
				blob := g.ActionBlobs[edge.ActionBlobID]
				emit(Action{Type: edge.Kind.String(), CostMS: hp.step.cost, To: blob.To, TargetID: blob.TargetID, Hint: blob.Hint})
			}

		case edgeGlobal:
			edge := g.GlobalEdges[hp.step.globalIdx]
			blob := g.ActionBlobs[edge.ActionBlobID]
			if wantPath {
				path = append(path, dstCoord)
			}
			emit(Action{Type: edge.Kind.String(), CostMS: hp.step.cost, To: blob.To, TargetID: blob.TargetID, Hint: blob.Hint})
		}
	}

	if actions == nil {
		actions = []Action{}
	}
	if wantPath && path == nil {
		path = []snapshot.Point{}
	}
	return path, actions, total
}

func emitChain(g *snapshot.Graph, blobID uint32, totalCost uint32, emit func(Action)) {
	blob := g.ActionBlobs[blobID]
	if len(blob.Chain) == 0 {
		emit(Action{Type: blob.Kind.String(), CostMS: totalCost, To: blob.To, TargetID: blob.TargetID, Hint: blob.Hint})
		return
	}
	var sumOthers uint32
	for _, lk := range blob.Chain[:len(blob.Chain)-1] {
		sumOthers += lk.CostMS
	}
	for i, lk := range blob.Chain {
		cost := lk.CostMS
		if i == len(blob.Chain)-1 {
			if totalCost >= sumOthers {
				cost = totalCost - sumOthers
			}
		}
		emit(Action{Type: lk.Kind.String(), CostMS: cost, To: lk.To, TargetID: lk.TargetID, Hint: lk.Hint})
	}
}
