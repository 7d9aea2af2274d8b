package snapshot

import (
	"fmt"
	"hash/crc32"
	"os"
	"strconv"
)

// Open reads the snapshot and tile-index files into memory and returns a
// validated, ready-to-query Graph (§4.1). The files are not memory-mapped:
// each is read whole with os.ReadFile, and every section is decoded into
// freshly allocated typed slices rather than kept as views over the read
// buffer.
//
// Open never returns a partially usable Graph: any validation failure
// returns a nil Graph and one of ErrBadMagic, ErrUnsupportedVersion,
// ErrTruncatedFile, ErrInvalidOffsets, or ErrSnapshotCorrupt.
func Open(snapshotPath, tilesPath string) (*Graph, error) {
	buf, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", snapshotPath, err)
	}
	g, err := decodeGraph(buf)
	if err != nil {
		return nil, err
	}
	tiles, err := loadTileIndex(tilesPath)
	if err != nil {
		return nil, fmt.Errorf("snapshot: tile index: %w", err)
	}
	g.Tiles = tiles
	g.buildPredicateIndex()
	return g, nil
}

// OpenBytes is the in-memory counterpart to Open, used by tests building
// fixtures with Builder/TileBuilder instead of a real builder's output.
func OpenBytes(snapshotBuf, tilesBuf []byte) (*Graph, error) {
	g, err := decodeGraph(snapshotBuf)
	if err != nil {
		return nil, err
	}
	tiles, err := decodeTileIndex(tilesBuf)
	if err != nil {
		return nil, fmt.Errorf("snapshot: tile index: %w", err)
	}
	g.Tiles = tiles
	g.buildPredicateIndex()
	return g, nil
}

func decodeGraph(buf []byte) (*Graph, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	entries, err := decodeSectionTable(buf, len(allSections))
	if err != nil {
		return nil, err
	}
	sections := make(map[string]sectionEntry, len(entries))
	for _, e := range entries {
		sections[e.name()] = e
	}
	for _, name := range allSections {
		e, ok := sections[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing section %q", ErrInvalidOffsets, name)
		}
		end := uint64(e.Offset) + uint64(e.Length)
		if end > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: section %q out of range", ErrInvalidOffsets, name)
		}
	}

	section := func(name string) []byte {
		e := sections[name]
		return buf[e.Offset : e.Offset+e.Length]
	}

	n := int(h.NodeCount)
	g := &Graph{
		Version:          h.Version,
		NodeCount:        h.NodeCount,
		LandmarkCount:    h.LandmarkCount,
		PredicateCount:   h.PredicateCount,
		HasGlobalEdges:   h.Flags&flagHasGlobalEdges != 0,
		HasResourceEdges: h.Flags&flagHasResourceEdges != 0,
	}

	xy := section(secNodesXY)
	if len(xy) != 8*n {
		return nil, fmt.Errorf("%w: nodes_xy length", ErrInvalidOffsets)
	}
	g.X = make([]int32, n)
	g.Y = make([]int32, n)
	for i := 0; i < n; i++ {
		g.X[i] = int32(le32(xy[i*8:]))
		g.Y[i] = int32(le32(xy[i*8+4:]))
	}

	planeBuf := section(secNodesPlane)
	if len(planeBuf) < n {
		return nil, fmt.Errorf("%w: nodes_plane length", ErrInvalidOffsets)
	}
	g.Plane = make([]int8, n)
	for i := 0; i < n; i++ {
		g.Plane[i] = int8(planeBuf[i])
	}

	maskBuf := section(secMovementMask)
	if len(maskBuf) < n {
		return nil, fmt.Errorf("%w: movement_mask length", ErrInvalidOffsets)
	}
	g.MovementMask = append([]uint8(nil), maskBuf[:n]...)

	moveRows := decodeUint32Slice(section(secMovementRows), n+1)
	if err := checkMonotonicCSR(moveRows, len(section(secMovementEdges))/6); err != nil {
		return nil, err
	}
	g.MovementRows = moveRows
	g.MovementEdges = decodeMovementEdges(section(secMovementEdges), len(section(secMovementEdges))/6)
	for _, e := range g.MovementEdges {
		if !g.ValidNode(e.Dst) {
			return nil, fmt.Errorf("%w: movement edge dst %d", ErrInvalidOffsets, e.Dst)
		}
	}

	specRowsBuf := section(secSpecialRows)
	specEdgesBuf := section(secSpecialEdges)
	specRows := decodeUint32Slice(specRowsBuf, n+1)
	numSpecial := len(specEdgesBuf) / specialEdgeSize
	if err := checkMonotonicCSR(specRows, numSpecial); err != nil {
		return nil, err
	}
	g.SpecialRows = specRows
	g.SpecialEdges = decodeSpecialEdges(specEdgesBuf, numSpecial)
	for _, e := range g.SpecialEdges {
		if !g.ValidNode(e.Dst) {
			return nil, fmt.Errorf("%w: special edge dst %d", ErrInvalidOffsets, e.Dst)
		}
	}

	globalBuf := section(secGlobalEdges)
	g.GlobalEdges = decodeGlobalEdges(globalBuf, len(globalBuf)/globalEdgeSize)
	for _, e := range g.GlobalEdges {
		if !g.ValidNode(e.Dst) {
			return nil, fmt.Errorf("%w: global edge dst %d", ErrInvalidOffsets, e.Dst)
		}
	}

	lmBuf := section(secLandmarks)
	if len(lmBuf) != 4*n*int(h.LandmarkCount) {
		return nil, fmt.Errorf("%w: landmarks length", ErrInvalidOffsets)
	}
	g.Landmarks = decodeUint32Slice(lmBuf, n*int(h.LandmarkCount))

	g.ActionBlobs = decodeActionBlobs(section(secActionBlobs))
	g.Predicates = decodePredicateDict(section(secPredicateDict))

	w := wordsForPredicates(h.PredicateCount)
	g.RequirementMasks = decodeRequirementMasks(section(secRequirementMsk), w)

	meta := decodeMetadata(section(secMetadata))
	g.BaseStepCostMS = 600
	if v, ok := meta["base_step_cost_ms"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			g.BaseStepCostMS = uint32(n)
		}
	}

	crcSec := sections[secMetadata]
	crcOffset := crcSec.Offset + crcSec.Length
	if crcOffset+4 > uint32(len(buf)) {
		return nil, fmt.Errorf("%w: missing trailing crc", ErrInvalidOffsets)
	}
	wantCRC := le32(buf[crcOffset:])
	gotCRC := crc32.ChecksumIEEE(buf[:crcOffset])
	if wantCRC != gotCRC {
		return nil, ErrSnapshotCorrupt
	}
	g.CRC32 = gotCRC

	return g, nil
}

func decodeSectionTable(buf []byte, count int) ([]sectionEntry, error) {
	need := headerSize + count*sectionEntrySize
	if len(buf) < need {
		return nil, ErrTruncatedFile
	}
	out := make([]sectionEntry, count)
	for i := 0; i < count; i++ {
		off := headerSize + i*sectionEntrySize
		var e sectionEntry
		copy(e.Name[:], buf[off:off+sectionNameLen])
		e.Offset = le32(buf[off+sectionNameLen:])
		e.Length = le32(buf[off+sectionNameLen+4:])
		out[i] = e
	}
	return out, nil
}

// checkMonotonicCSR enforces §4.1: row pointers monotonic, terminated by
// the total edge count.
func checkMonotonicCSR(rows []uint32, edgeCount int) error {
	for i := 1; i < len(rows); i++ {
		if rows[i] < rows[i-1] {
			return fmt.Errorf("%w: csr rows not monotonic", ErrInvalidOffsets)
		}
	}
	if len(rows) > 0 && int(rows[len(rows)-1]) != edgeCount {
		return fmt.Errorf("%w: csr rows do not terminate at edge count", ErrInvalidOffsets)
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
