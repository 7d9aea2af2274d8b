package snapshot

import (
	"fmt"
	"os"
)

// tileEntry is one chained hash-table slot (§6.2).
type tileEntry struct {
	PackedXYP uint64
	NodeID    NodeID
	Next      uint32
}

const emptyBucket = 0xFFFFFFFF

// TileIndex maps (x, y, plane) -> NodeID via a read-only, memory-resident
// chained hash table (§6.2, §4.7). Lookup is O(1) average.
type TileIndex struct {
	Buckets []uint32
	Entries []tileEntry
}

// packKey packs a world coordinate into the 64-bit key used as the hash
// table's comparison key. This is the "equivalent stable packing" §6.2
// permits in place of its illustrative formula: 8 bits plane, 32 bits x,
// 24 bits y, chosen so the three fields never overlap.
func packKey(x, y, plane int32) uint64 {
	return uint64(uint8(plane))<<56 | uint64(uint32(x))<<24 | uint64(uint32(y))&0xFFFFFF
}

// hashKey spreads a packed key across buckets (FNV-1a style mix).
func hashKey(key uint64) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < 8; i++ {
		h ^= (key >> (8 * uint(i))) & 0xFF
		h *= 1099511628211
	}
	return h
}

// Lookup reports whether a walkable node exists at (x, y, plane) and, if
// so, its node id. Never fails; an unknown plane simply yields false.
func (t *TileIndex) Lookup(x, y, plane int32) (NodeID, bool) {
	if len(t.Buckets) == 0 {
		return InvalidNode, false
	}
	key := packKey(x, y, plane)
	b := hashKey(key) % uint64(len(t.Buckets))
	cur := t.Buckets[b]
	for cur != emptyBucket {
		e := t.Entries[cur]
		if e.PackedXYP == key {
			return e.NodeID, true
		}
		cur = e.Next
	}
	return InvalidNode, false
}

func loadTileIndex(path string) (*TileIndex, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeTileIndex(buf)
}

func decodeTileIndex(buf []byte) (*TileIndex, error) {
	if len(buf) < 8+4+4+4 {
		return nil, ErrTruncatedFile
	}
	if string(buf[0:8]) != string(TileMagic[:]) {
		return nil, ErrBadMagic
	}
	version := le32(buf[8:12])
	if version != CurrentVersion {
		return nil, ErrUnsupportedVersion
	}
	entryCount := int(le32(buf[12:16]))
	bucketCount := int(le32(buf[16:20]))

	off := 20
	bucketsEnd := off + bucketCount*4
	if bucketsEnd > len(buf) {
		return nil, ErrTruncatedFile
	}
	buckets := decodeUint32Slice(buf[off:bucketsEnd], bucketCount)

	entriesEnd := bucketsEnd + entryCount*16
	if entriesEnd > len(buf) {
		return nil, ErrTruncatedFile
	}
	entries := make([]tileEntry, entryCount)
	for i := 0; i < entryCount; i++ {
		eoff := bucketsEnd + i*16
		entries[i] = tileEntry{
			PackedXYP: decodeUint64Slice(buf[eoff:eoff+8], 1)[0],
			NodeID:    NodeID(le32(buf[eoff+8:])),
			Next:      le32(buf[eoff+12:]),
		}
	}
	for _, b := range buckets {
		if b != emptyBucket && int(b) >= entryCount {
			return nil, fmt.Errorf("%w: tile bucket out of range", ErrInvalidOffsets)
		}
	}
	return &TileIndex{Buckets: buckets, Entries: entries}, nil
}
