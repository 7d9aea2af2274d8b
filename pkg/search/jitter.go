package search

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// jitter derives a small, deterministic, non-negative cost addition for a
// special edge when a query seed is supplied (§4.4 "deterministic
// edge-weight jitter"). Movement edges are never jittered: JPS pruning's
// correctness depends on uniform, unperturbed grid costs.
//
// Because jitter only ever adds to a real edge's cost, never subtracts
// from it or from a heuristic value, the ALT bound remains admissible
// regardless of seed: admissibility only requires h(n) <= true remaining
// cost, and true costs can only have grown.
type jitter struct {
	seed    uint64
	enabled bool
	maxFrac float64 // fraction of edge cost the jitter may add, in [0,1)
}

func newJitter(seed uint64, hasSeed bool, maxFrac float64) jitter {
	return jitter{seed: seed, enabled: hasSeed, maxFrac: maxFrac}
}

// Apply returns cost, possibly inflated by a seeded hash of (seed, from,
// to). Disabled (no seed supplied) is a no-op, matching "same seed =>
// same path; distinct seeds => possibly distinct paths" (§9 open question)
// without fixing a specific magnitude distribution beyond the configured
// cap.
func (j jitter) Apply(from, to uint32, cost uint32) uint32 {
	if !j.enabled || j.maxFrac <= 0 {
		return cost
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], j.seed)
	binary.LittleEndian.PutUint32(buf[8:12], from)
	binary.LittleEndian.PutUint32(buf[12:16], to)
	h, _ := blake2b.New256(nil)
	h.Write(buf[:])
	sum := h.Sum(nil)
	// Use the first 4 bytes of the digest as a uniform fraction in [0,1].
	frac := float64(binary.LittleEndian.Uint32(sum[:4])) / float64(^uint32(0))
	extra := uint32(float64(cost) * j.maxFrac * frac)
	return cost + extra
}
