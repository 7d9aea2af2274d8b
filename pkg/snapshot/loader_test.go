package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// smallGraphBytes builds a 3-node, single-plane strip (0,0,0) - (1,0,0) -
// (2,0,0) connected east/west, with no special edges and no predicates,
// encoded through Builder/TileBuilder for OpenBytes.
func smallGraphBytes() ([]byte, []byte) {
	b := NewBuilder(3)
	b.LandmarkCount = 1
	b.X = []int32{0, 1, 2}
	b.Y = []int32{0, 0, 0}
	b.Plane = []int8{0, 0, 0}
	b.MovementMask[0] = 1 << uint8(DirE)
	b.MovementMask[1] = 1<<uint8(DirE) | 1<<uint8(DirW)
	b.MovementMask[2] = 1 << uint8(DirW)

	b.MovementRows = []uint32{0, 1, 3, 4}
	b.MovementEdges = []MovementEdge{
		{Dst: 1, Cost: 600},
		{Dst: 0, Cost: 600},
		{Dst: 2, Cost: 600},
		{Dst: 1, Cost: 600},
	}
	b.SpecialRows = []uint32{0, 0, 0, 0}
	b.Landmarks = []uint32{0, 600, 1200}
	b.ActionBlobs = nil
	b.Predicates = nil
	b.ReqMasks = nil

	tb := &TileBuilder{}
	tb.Add(0, 0, 0, NodeID(0))
	tb.Add(1, 0, 0, NodeID(1))
	tb.Add(2, 0, 0, NodeID(2))

	return b.Build(), tb.Build(8)
}

func TestOpenBytesRoundTrip(t *testing.T) {
	snap, tiles := smallGraphBytes()
	g, err := OpenBytes(snap, tiles)
	assert.NoError(t, err)
	assert.Equal(t, 3, g.N())
	assert.Equal(t, uint32(600), g.BaseStepCostMS)

	node, ok := g.Tiles.Lookup(1, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, NodeID(1), node)

	_, ok = g.Tiles.Lookup(99, 99, 0)
	assert.False(t, ok)
}

func TestOpenBytesRejectsCorruptedCRC(t *testing.T) {
	snap, tiles := smallGraphBytes()
	snap[len(snap)-1] ^= 0xFF // flip a byte in the trailing CRC

	_, err := OpenBytes(snap, tiles)
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}

func TestOpenBytesRejectsBadMagic(t *testing.T) {
	snap, tiles := smallGraphBytes()
	snap[0] = 'X'

	_, err := OpenBytes(snap, tiles)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenBytesRejectsTruncatedFile(t *testing.T) {
	snap, tiles := smallGraphBytes()
	_, err := OpenBytes(snap[:10], tiles)
	assert.ErrorIs(t, err, ErrTruncatedFile)
}

func TestCoordAndMovementEdgesMatchCSR(t *testing.T) {
	snap, tiles := smallGraphBytes()
	g, err := OpenBytes(snap, tiles)
	assert.NoError(t, err)

	middle := g.Coord(NodeID(1))
	assert.Equal(t, Point{X: 1, Y: 0, Plane: 0}, middle)

	row := g.MovementEdges[g.MovementRows[1]:g.MovementRows[2]]
	assert.Len(t, row, 2)
}

func TestHasSpecialsFalseWhenRowEmpty(t *testing.T) {
	snap, tiles := smallGraphBytes()
	g, err := OpenBytes(snap, tiles)
	assert.NoError(t, err)
	assert.False(t, g.HasSpecials(NodeID(0)))
}
