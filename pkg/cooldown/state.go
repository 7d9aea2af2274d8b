// Package cooldown implements the per-search stateful resource model for
// cooldown-augmented edges (§4.3): "surge"-like bounded-charge short jumps
// and "dive"-like targeted jumps. These are modeled as per-search state
// rather than precomputed static edges, because their eligibility depends
// on path history (how many times, and how recently, the resource already
// fired along this particular path) rather than on the static graph alone.
//
// The reference policy chosen here is §4.3's option (b): resource-gated
// edges are always-relaxable. A node may be revisited with an improved
// (g, ready_ms) pair even after the plain A* closed set would normally
// discard it; see pkg/search for the relaxation rule this enables.
package cooldown

import "github.com/orneryd/navpath/pkg/snapshot"

// FamilyConfig is one resource family's per-query configuration, taken
// directly from RouteRequest.surge / RouteRequest.dive (§6.3).
type FamilyConfig struct {
	Enabled        bool
	InitialCharges uint8 // 0 means no charge pool: every use waits out the cooldown (dive-like)
	CooldownMS     uint32
}

// FamilyState holds one resource family's per-node state. A per-node
// generation stamp makes Reset O(1) and individual slot clears O(touched)
// rather than O(N) (mirrors the search context pool's own
// generation-counter trick, §4.6).
type FamilyState struct {
	Config FamilyConfig

	readyMS []uint32
	charges []int8
	gen     []uint32
	curGen  uint32
}

// NewFamilyState allocates per-node resource-state scratch arrays sized to
// the graph's node count. Intended to be held inside a pooled search
// context and Reset between queries, not reallocated per query.
func NewFamilyState(n int, cfg FamilyConfig) *FamilyState {
	return &FamilyState{
		Config:  cfg,
		readyMS: make([]uint32, n),
		charges: make([]int8, n),
		gen:     make([]uint32, n),
	}
}

// Reset begins a new query: all node entries become logically unset.
func (f *FamilyState) Reset() {
	f.curGen++
}

// at returns the (readyMS, charges, touched) triple for a node, where
// touched is false if the node has no state recorded in the current
// generation (meaning: never yet reached by a path that used this
// resource).
func (f *FamilyState) at(node snapshot.NodeID) (readyMS uint32, charges int8, touched bool) {
	if f.gen[node] != f.curGen {
		return 0, initialCharges(f.Config.InitialCharges), false
	}
	return f.readyMS[node], f.charges[node], true
}

// initialCharges converts a caller-supplied uint8 charge count to the
// signed int8 charges are tracked as, clamping at int8's max instead of
// wrapping negative the way a bare conversion would for values >= 128.
func initialCharges(n uint8) int8 {
	if n > 127 {
		return 127
	}
	return int8(n)
}

func (f *FamilyState) set(node snapshot.NodeID, readyMS uint32, charges int8) {
	f.gen[node] = f.curGen
	f.readyMS[node] = readyMS
	f.charges[node] = charges
}

// Wait returns the extra wait-time cost (folded into edge cost per §4.3)
// to fire the resource when standing at node with accumulated cost g.
// Exhausting a finite family's charges does not make the resource
// ineligible: it only means every further use is cooldown-gated rather
// than free, matching "when the counter hits zero, waiting is enforced"
// (§4.3) rather than permanent denial. ok is always true; Fire is what
// stops decrementing charges once they reach zero.
func (f *FamilyState) Wait(node snapshot.NodeID, g uint32) (waitMS uint32, ok bool) {
	readyMS, charges, _ := f.at(node)
	if f.Config.InitialCharges > 0 && charges > 0 {
		return 0, true
	}
	if g < readyMS {
		return readyMS - g, true
	}
	return 0, true
}

// Fire records that the resource fired when landing at dst with
// accumulated cost gAtDst, having carried the charge count observed at the
// firing node (fromCharges as returned by Wait's companion at-query, or
// the family default for a first use).
func (f *FamilyState) Fire(dst snapshot.NodeID, gAtDst uint32, fromCharges int8) {
	next := fromCharges
	if f.Config.InitialCharges > 0 && next > 0 {
		next--
	}
	f.set(dst, gAtDst+f.Config.CooldownMS, next)
}

// ChargesAt exposes the charge count visible at node, for Fire's caller to
// thread through without re-deriving it (pkg/search calls Wait then Fire
// against the same node within one relaxation step).
func (f *FamilyState) ChargesAt(node snapshot.NodeID) int8 {
	_, charges, _ := f.at(node)
	return charges
}

// Improves reports whether a candidate (g, readyMS) pair at a node is
// strictly better than what's recorded, under the reference relaxation
// rule: strictly lower g, or a strictly lower ready_ms with g within
// slackMS of the best known g. This is the "always-relaxable" policy
// §4.3/§9 mandates be chosen and documented.
func (f *FamilyState) Improves(node snapshot.NodeID, bestG, candidateG, candidateReadyMS, slackMS uint32) bool {
	readyMS, _, touched := f.at(node)
	if !touched {
		return true
	}
	if candidateG < bestG {
		return true
	}
	if candidateReadyMS < readyMS && candidateG <= bestG+slackMS {
		return true
	}
	return false
}
