// Package requirement builds and tests satisfied-predicate bitmasks (§4.2).
//
// A caller supplies an unordered list of key/value pairs. The builder
// evaluates each predicate in the snapshot's dictionary whose key matches
// one of the caller's keys, and sets the corresponding bit when the
// predicate's comparison holds. An edge is eligible iff its required mask
// is a subset of the resulting satisfied mask.
package requirement

import "github.com/orneryd/navpath/pkg/snapshot"

// Input is one caller-supplied key/value pair, e.g. {"coins", 100}.
// Duplicates are resolved last-writer-wins: Build keeps the last value
// seen for a repeated key.
type Input struct {
	Key   string
	Value int32
}

// Mask is a satisfied- or required-predicate bitmask, one bit per
// predicate id, stored as ceil(P/64) 64-bit words.
type Mask []uint64

// Build translates the caller's inputs into a satisfied-predicate bitmask
// against g's predicate dictionary (§4.2). Unknown keys are ignored;
// predicates whose key never appears in inputs are left unsatisfied, so
// edges requiring them are ineligible. Complexity O(P + M).
func Build(g *snapshot.Graph, inputs []Input) Mask {
	words := wordCount(g.PredicateCount)
	mask := make(Mask, words)

	values := make(map[string]int32, len(inputs))
	for _, in := range inputs {
		values[in.Key] = in.Value // last-writer-wins
	}

	for key, value := range values {
		for _, pred := range g.PredicatesByKey(key) {
			if pred.Op.Eval(value, pred.Threshold) {
				mask.set(pred.ID)
			}
		}
	}
	return mask
}

func wordCount(p uint32) int {
	return (int(p) + 63) / 64
}

func (m Mask) set(bit uint32) {
	w, b := bit/64, bit%64
	if int(w) < len(m) {
		m[w] |= 1 << b
	}
}

// Test reports whether bit is set.
func (m Mask) Test(bit uint32) bool {
	w, b := bit/64, bit%64
	if int(w) >= len(m) {
		return false
	}
	return m[w]&(1<<b) != 0
}

// Eligible reports whether required is a subset of satisfied: every word of
// required must have no bit absent from satisfied. An empty or nil
// required mask (requirement_mask_id == 0, "no requirement") is always
// eligible.
func Eligible(required []uint64, satisfied Mask) bool {
	for i, rw := range required {
		var sw uint64
		if i < len(satisfied) {
			sw = satisfied[i]
		}
		if rw&^sw != 0 {
			return false
		}
	}
	return true
}
