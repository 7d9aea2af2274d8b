// Package snapshot holds the in-memory representation of the navigation
// graph produced by the offline builder, along with the loader that maps a
// snapshot file and a tile index file into that representation.
//
// Everything in Graph is immutable after Open returns: there are no runtime
// mutation paths. Callers share a single *Graph across all concurrent
// queries.
package snapshot

import "fmt"

// NodeID identifies a walkable tile. Dense, builder-assigned, stable across
// restarts of the same snapshot.
type NodeID uint32

// InvalidNode is the sentinel for "no such node".
const InvalidNode NodeID = 0xFFFFFFFF

// Direction indexes movement_mask bits: N, NE, E, SE, S, SW, W, NW.
type Direction uint8

const (
	DirN Direction = iota
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

// DirOffset is the (dx, dy) world-coordinate delta for a direction.
type DirOffset struct{ DX, DY int32 }

// DirOffsets is indexed by Direction.
var DirOffsets = [8]DirOffset{
	DirN:  {0, 1},
	DirNE: {1, 1},
	DirE:  {1, 0},
	DirSE: {1, -1},
	DirS:  {0, -1},
	DirSW: {-1, -1},
	DirW:  {-1, 0},
	DirNW: {-1, 1},
}

// IsDiagonal reports whether a direction moves on both axes.
func (d Direction) IsDiagonal() bool {
	return d%2 == 1
}

// MovementEdge is one CSR entry in the movement partition. Parsed for
// format completeness and validation; the search's movement expansion uses
// movement_mask plus the tile index instead (a choice spec.md §3 leaves to
// the implementer) and never reads these: step cost comes from
// Graph.BaseStepCostMS.
type MovementEdge struct {
	Dst  NodeID
	Cost uint16
}

// SpecialKind enumerates the non-movement action families.
type SpecialKind uint8

const (
	KindDoor SpecialKind = iota
	KindLodestone
	KindObject
	KindNPC
	KindIfSlot
	KindItem
	KindSurge
	KindDive
)

func (k SpecialKind) String() string {
	switch k {
	case KindDoor:
		return "door"
	case KindLodestone:
		return "lodestone"
	case KindObject:
		return "object"
	case KindNPC:
		return "npc"
	case KindIfSlot:
		return "ifslot"
	case KindItem:
		return "item"
	case KindSurge:
		return "surge"
	case KindDive:
		return "dive"
	default:
		return "unknown"
	}
}

// SpecialEdge is one CSR entry in the special partition: doors, lodestones,
// object/NPC/ifslot/item interactions, and chain heads.
type SpecialEdge struct {
	Dst           NodeID
	Cost          uint32
	Kind          SpecialKind
	ReqMaskID     uint32
	ActionBlobID  uint32
	ChainHeadID   uint32 // 0 if single-step
}

// IsChain reports whether traversing this edge requires chain expansion
// during reconstruction.
func (e SpecialEdge) IsChain() bool { return e.ChainHeadID != 0 }

// GlobalEdge is a teleport usable only from the query's start node.
type GlobalEdge struct {
	Dst          NodeID
	Cost         uint32
	Kind         SpecialKind
	ReqMaskID    uint32
	ActionBlobID uint32
}

// Bounds is a point or an inclusive area, per Action.to.
type Bounds struct {
	Min, Max Point
}

// Point is a world coordinate.
type Point struct {
	X, Y, Plane int32
}

// ChainLink is one step of a multi-step interaction chain, restored during
// reconstruction (§4.5). Chain links never appear as separate graph edges.
type ChainLink struct {
	Kind     SpecialKind
	TargetID uint32
	To       Bounds
	Hint     string
	CostMS   uint32
}

// ActionBlob is the structured description a special edge's ActionBlobID
// points at. Never consulted during search expansion, only reconstruction.
type ActionBlob struct {
	Kind     SpecialKind
	TargetID uint32
	To       Bounds
	Hint     string
	Chain    []ChainLink // ordered successor sub-actions; empty for single-step
}

// CompareOp is a predicate comparison operator.
type CompareOp uint8

const (
	OpEQ CompareOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
)

// Eval applies the operator to (value, threshold).
func (op CompareOp) Eval(value, threshold int32) bool {
	switch op {
	case OpEQ:
		return value == threshold
	case OpNE:
		return value != threshold
	case OpLT:
		return value < threshold
	case OpLE:
		return value <= threshold
	case OpGT:
		return value > threshold
	case OpGE:
		return value >= threshold
	default:
		return false
	}
}

// PredicateDef is one entry of the snapshot's predicate dictionary: a
// named, dense-indexed comparison against a caller-supplied key/value pair.
type PredicateDef struct {
	ID        uint32
	Key       string
	Op        CompareOp
	Threshold int32
}

// Graph is the fully loaded, read-only navigation snapshot.
type Graph struct {
	Version          uint32
	NodeCount        uint32
	LandmarkCount    uint32
	PredicateCount   uint32
	HasGlobalEdges   bool
	HasResourceEdges bool
	BaseStepCostMS   uint32 // octile base movement cost, from metadata

	X, Y          []int32
	Plane         []int8
	MovementMask  []uint8
	TeleportGroup []uint8

	MovementRows  []uint32
	MovementEdges []MovementEdge

	SpecialRows  []uint32
	SpecialEdges []SpecialEdge

	GlobalEdges []GlobalEdge

	// Landmarks is node-major: Landmarks[i*K+k] == d(L_k, node_i).
	Landmarks []uint32

	ActionBlobs []ActionBlob

	Predicates       []PredicateDef
	predicatesByKey  map[string][]PredicateDef
	RequirementMasks [][]uint64 // indexed by requirement_mask_id; bit array, ceil(P/64) words

	Tiles *TileIndex

	CRC32 uint32
}

// PredicatesByKey returns the predicate definitions registered under a
// caller-facing key (usually exactly one, but duplicates are permitted by
// the builder).
func (g *Graph) PredicatesByKey(key string) []PredicateDef {
	return g.predicatesByKey[key]
}

// buildPredicateIndex constructs the key -> []PredicateDef index used by
// pkg/requirement. Called once after load.
func (g *Graph) buildPredicateIndex() {
	g.predicatesByKey = make(map[string][]PredicateDef, len(g.Predicates))
	for _, p := range g.Predicates {
		g.predicatesByKey[p.Key] = append(g.predicatesByKey[p.Key], p)
	}
}

// N returns the node count as an int for slice indexing.
func (g *Graph) N() int { return int(g.NodeCount) }

// ValidNode reports whether id is a real, in-range node.
func (g *Graph) ValidNode(id NodeID) bool {
	return id != InvalidNode && uint32(id) < g.NodeCount
}

// Coord returns the world coordinate of a node.
func (g *Graph) Coord(id NodeID) Point {
	return Point{X: g.X[id], Y: g.Y[id], Plane: int32(g.Plane[id])}
}

// MaskBit reports whether movement_mask[i] permits direction d.
func (g *Graph) MaskBit(id NodeID, d Direction) bool {
	return g.MovementMask[id]&(1<<uint8(d)) != 0
}

// HasSpecials reports whether node id has any outgoing special edges, used
// to gate JPS pruning (§9 "JPS applicability").
func (g *Graph) HasSpecials(id NodeID) bool {
	return g.SpecialRows[id+1] > g.SpecialRows[id]
}

// SpecialRow returns the special edges outgoing from id.
func (g *Graph) SpecialRow(id NodeID) []SpecialEdge {
	return g.SpecialEdges[g.SpecialRows[id]:g.SpecialRows[id+1]]
}

// LandmarkDist returns d(L_k, node).
func (g *Graph) LandmarkDist(node NodeID, k int) uint32 {
	return g.Landmarks[uint32(node)*g.LandmarkCount+uint32(k)]
}

// RequirementMask returns the bit array for a requirement_mask_id. An id of
// 0 conventionally means "no requirement" (empty mask).
func (g *Graph) RequirementMask(id uint32) []uint64 {
	if int(id) >= len(g.RequirementMasks) {
		return nil
	}
	return g.RequirementMasks[id]
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph{version=%d nodes=%d landmarks=%d predicates=%d}",
		g.Version, g.NodeCount, g.LandmarkCount, g.PredicateCount)
}
