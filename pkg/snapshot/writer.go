package snapshot

import (
	"encoding/binary"
	"hash/crc32"
)

// Builder assembles an in-memory snapshot byte stream. Building real
// snapshots from the source database is the offline builder's job (out of
// scope, per spec.md §1); Builder exists so tests can construct small,
// self-consistent fixtures without depending on a real builder's output.
type Builder struct {
	LandmarkCount  uint32
	BaseStepCostMS uint32
	HasGlobal      bool
	HasResource    bool

	X, Y          []int32
	Plane         []int8
	MovementMask  []uint8
	MovementRows  []uint32
	MovementEdges []MovementEdge
	SpecialRows   []uint32
	SpecialEdges  []SpecialEdge
	GlobalEdges   []GlobalEdge
	Landmarks     []uint32 // node-major, len == N*LandmarkCount
	ActionBlobs   []ActionBlob
	Predicates    []PredicateDef
	ReqMasks      [][]uint64
}

// NewBuilder seeds a builder for n nodes with empty movement/special rows.
func NewBuilder(n int) *Builder {
	return &Builder{
		BaseStepCostMS: 600,
		X:              make([]int32, n),
		Y:              make([]int32, n),
		Plane:          make([]int8, n),
		MovementMask:   make([]uint8, n),
		MovementRows:   make([]uint32, n+1),
		SpecialRows:    make([]uint32, n+1),
	}
}

// Build serializes the builder state into the §6.1 binary layout.
func (b *Builder) Build() []byte {
	n := len(b.X)

	var body []byte
	appendSection := func(name string, data []byte) sectionEntry {
		off := uint32(len(body))
		body = append(body, data...)
		return sectionEntry{Name: encodeSectionName(name), Offset: off, Length: uint32(len(data))}
	}

	entries := make(map[string]sectionEntry)

	entries[secNodesXY] = appendSection(secNodesXY, encodeXY(b.X, b.Y))
	entries[secNodesPlane] = appendSection(secNodesPlane, encodeInt8Slice(b.Plane))
	entries[secMovementMask] = appendSection(secMovementMask, append([]byte(nil), b.MovementMask...))
	entries[secMovementRows] = appendSection(secMovementRows, encodeUint32Slice(b.MovementRows))
	entries[secMovementEdges] = appendSection(secMovementEdges, encodeMovementEdges(b.MovementEdges))
	entries[secSpecialRows] = appendSection(secSpecialRows, encodeUint32Slice(b.SpecialRows))

	var specBuf []byte
	for _, e := range b.SpecialEdges {
		specBuf = append(specBuf, encodeSpecialEdge(e)...)
	}
	entries[secSpecialEdges] = appendSection(secSpecialEdges, specBuf)

	var globalBuf []byte
	for _, e := range b.GlobalEdges {
		globalBuf = append(globalBuf, encodeGlobalEdge(e)...)
	}
	entries[secGlobalEdges] = appendSection(secGlobalEdges, globalBuf)

	entries[secLandmarks] = appendSection(secLandmarks, encodeUint32Slice(b.Landmarks))

	var blobBuf []byte
	for _, blob := range b.ActionBlobs {
		blobBuf = append(blobBuf, encodeActionBlobRecord(blob)...)
	}
	entries[secActionBlobs] = appendSection(secActionBlobs, blobBuf)

	var predBuf []byte
	for _, p := range b.Predicates {
		predBuf = append(predBuf, encodePredicateDef(p)...)
	}
	entries[secPredicateDict] = appendSection(secPredicateDict, predBuf)

	var maskBuf []byte
	for _, m := range b.ReqMasks {
		maskBuf = append(maskBuf, encodeUint64Slice(m)...)
	}
	entries[secRequirementMsk] = appendSection(secRequirementMsk, maskBuf)

	metaBuf := encodeMetadataEntry("base_step_cost_ms", itoa(int(b.BaseStepCostMS)))
	entries[secMetadata] = appendSection(secMetadata, metaBuf)

	flags := uint32(0)
	if b.HasGlobal {
		flags |= flagHasGlobalEdges
	}
	if b.HasResource {
		flags |= flagHasResourceEdges
	}
	predicateCount := uint32(len(b.Predicates))

	h := header{
		Version:        CurrentVersion,
		NodeCount:      uint32(n),
		LandmarkCount:  b.LandmarkCount,
		PredicateCount: predicateCount,
		Flags:          flags,
	}

	headerAndTable := make([]byte, headerSize+len(allSections)*sectionEntrySize)
	encodeHeader(headerAndTable, h)
	for i, name := range allSections {
		e := entries[name]
		// shift offsets by header+table length, since body was built
		// independently of where it lands in the final file.
		e.Offset += uint32(len(headerAndTable))
		off := headerSize + i*sectionEntrySize
		copy(headerAndTable[off:], e.Name[:])
		binary.LittleEndian.PutUint32(headerAndTable[off+sectionNameLen:], e.Offset)
		binary.LittleEndian.PutUint32(headerAndTable[off+sectionNameLen+4:], e.Length)
	}

	out := append(headerAndTable, body...)
	crc := crc32.ChecksumIEEE(out)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, crc)
	return append(out, crcBytes...)
}

func encodeXY(x, y []int32) []byte {
	out := make([]byte, 8*len(x))
	for i := range x {
		binary.LittleEndian.PutUint32(out[i*8:], uint32(x[i]))
		binary.LittleEndian.PutUint32(out[i*8+4:], uint32(y[i]))
	}
	return out
}

func encodeInt8Slice(s []int8) []byte {
	out := make([]byte, len(s))
	for i, v := range s {
		out[i] = byte(v)
	}
	return out
}

func encodeUint32Slice(s []uint32) []byte {
	out := make([]byte, 4*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func encodeUint64Slice(s []uint64) []byte {
	out := make([]byte, 8*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

func encodeMovementEdges(s []MovementEdge) []byte {
	out := make([]byte, 6*len(s))
	for i, e := range s {
		binary.LittleEndian.PutUint32(out[i*6:], uint32(e.Dst))
		binary.LittleEndian.PutUint16(out[i*6+4:], e.Cost)
	}
	return out
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// TileBuilder assembles a tile index byte stream for tests.
type TileBuilder struct {
	entries []tileBuildEntry
}

type tileBuildEntry struct {
	X, Y, Plane int32
	NodeID      NodeID
}

func (tb *TileBuilder) Add(x, y, plane int32, node NodeID) {
	tb.entries = append(tb.entries, tileBuildEntry{x, y, plane, node})
}

// Build lays entries out into bucketCount buckets using the same hash and
// chaining scheme Lookup expects.
func (tb *TileBuilder) Build(bucketCount int) []byte {
	if bucketCount <= 0 {
		bucketCount = 1
	}
	buckets := make([]uint32, bucketCount)
	for i := range buckets {
		buckets[i] = emptyBucket
	}
	entries := make([]tileEntry, len(tb.entries))
	for i, e := range tb.entries {
		key := packKey(e.X, e.Y, e.Plane)
		b := hashKey(key) % uint64(bucketCount)
		entries[i] = tileEntry{PackedXYP: key, NodeID: e.NodeID, Next: buckets[b]}
		buckets[b] = uint32(i)
	}

	out := make([]byte, 8+4+4+4)
	copy(out[0:8], TileMagic[:])
	binary.LittleEndian.PutUint32(out[8:12], CurrentVersion)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(entries)))
	binary.LittleEndian.PutUint32(out[16:20], uint32(bucketCount))
	out = append(out, encodeUint32Slice(buckets)...)
	for _, e := range entries {
		b := make([]byte, 16)
		binary.LittleEndian.PutUint64(b[0:], e.PackedXYP)
		binary.LittleEndian.PutUint32(b[8:], uint32(e.NodeID))
		binary.LittleEndian.PutUint32(b[12:], e.Next)
		out = append(out, b...)
	}
	return out
}
