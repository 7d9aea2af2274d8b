package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/navpath/pkg/snapshot"
)

// tinyGraph builds a single-node graph carrying only a predicate
// dictionary, round-tripped through the real binary codec (Builder /
// OpenBytes) so PredicatesByKey is populated exactly as it would be at
// runtime.
func tinyGraph(t *testing.T, preds []snapshot.PredicateDef) *snapshot.Graph {
	t.Helper()
	b := snapshot.NewBuilder(1)
	b.Predicates = preds
	b.ReqMasks = [][]uint64{{0}}

	tb := &snapshot.TileBuilder{}
	tb.Add(0, 0, 0, snapshot.NodeID(0))

	g, err := snapshot.OpenBytes(b.Build(), tb.Build(4))
	assert.NoError(t, err)
	return g
}

func TestBuildSetsBitsForMatchingPredicates(t *testing.T) {
	g := tinyGraph(t, []snapshot.PredicateDef{
		{ID: 0, Key: "coins", Op: snapshot.OpGE, Threshold: 100},
		{ID: 1, Key: "quest_done", Op: snapshot.OpEQ, Threshold: 1},
	})

	mask := Build(g, []Input{{Key: "coins", Value: 150}, {Key: "quest_done", Value: 0}})
	assert.True(t, mask.Test(0), "coins >= 100 should be satisfied")
	assert.False(t, mask.Test(1), "quest_done == 1 should not be satisfied")
}

func TestBuildIgnoresUnknownKeys(t *testing.T) {
	g := tinyGraph(t, []snapshot.PredicateDef{{ID: 0, Key: "coins", Op: snapshot.OpGE, Threshold: 100}})
	mask := Build(g, []Input{{Key: "nonexistent", Value: 1}})
	assert.False(t, mask.Test(0))
}

func TestBuildLastWriterWinsOnDuplicateKeys(t *testing.T) {
	g := tinyGraph(t, []snapshot.PredicateDef{{ID: 0, Key: "coins", Op: snapshot.OpGE, Threshold: 100}})
	mask := Build(g, []Input{{Key: "coins", Value: 500}, {Key: "coins", Value: 0}})
	assert.False(t, mask.Test(0), "later input for the same key must win")
}

func TestEligibleEmptyRequiredAlwaysPasses(t *testing.T) {
	assert.True(t, Eligible(nil, Mask{}))
	assert.True(t, Eligible([]uint64{}, Mask{0xFF}))
}

func TestEligibleSubsetTest(t *testing.T) {
	required := []uint64{0b101}
	assert.True(t, Eligible(required, Mask{0b111}))
	assert.False(t, Eligible(required, Mask{0b100}), "bit 0 required but not satisfied")
}

func TestEligibleRequiredBeyondSatisfiedLength(t *testing.T) {
	required := []uint64{0, 0b1}
	assert.False(t, Eligible(required, Mask{0xFFFF}), "second word required but satisfied mask too short")
}
