package snapshot

import (
	"encoding/binary"
)

// The helpers in this file decode (and, for the writer, encode) individual
// sections out of / into a flat byte buffer. They assume little-endian,
// fixed-width records except where a section is explicitly length-prefixed
// (predicate dictionary, action blobs).

func decodeInt32Slice(buf []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func decodeUint32Slice(buf []byte, n int) []uint32 {
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

func decodeUint64Slice(buf []byte, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return out
}

func decodeMovementEdges(buf []byte, n int) []MovementEdge {
	out := make([]MovementEdge, n)
	for i := 0; i < n; i++ {
		off := i * 6
		out[i] = MovementEdge{
			Dst:  NodeID(binary.LittleEndian.Uint32(buf[off:])),
			Cost: binary.LittleEndian.Uint16(buf[off+4:]),
		}
	}
	return out
}

const specialEdgeSize = 21 // dst(4) + cost(4) + kind(1) + reqmask(4) + actionblob(4) + chainhead(4)

func decodeSpecialEdges(buf []byte, n int) []SpecialEdge {
	out := make([]SpecialEdge, n)
	for i := 0; i < n; i++ {
		off := i * specialEdgeSize
		out[i] = SpecialEdge{
			Dst:          NodeID(binary.LittleEndian.Uint32(buf[off:])),
			Cost:         binary.LittleEndian.Uint32(buf[off+4:]),
			Kind:         SpecialKind(buf[off+8]),
			ReqMaskID:    binary.LittleEndian.Uint32(buf[off+9:]),
			ActionBlobID: binary.LittleEndian.Uint32(buf[off+13:]),
			ChainHeadID:  binary.LittleEndian.Uint32(buf[off+17:]),
		}
	}
	return out
}

func encodeSpecialEdge(e SpecialEdge) []byte {
	b := make([]byte, specialEdgeSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(e.Dst))
	binary.LittleEndian.PutUint32(b[4:], e.Cost)
	b[8] = byte(e.Kind)
	binary.LittleEndian.PutUint32(b[9:], e.ReqMaskID)
	binary.LittleEndian.PutUint32(b[13:], e.ActionBlobID)
	binary.LittleEndian.PutUint32(b[17:], e.ChainHeadID)
	return b
}

const globalEdgeSize = 17 // dst(4) + cost(4) + kind(1) + reqmask(4) + actionblob(4)

func decodeGlobalEdges(buf []byte, n int) []GlobalEdge {
	out := make([]GlobalEdge, n)
	for i := 0; i < n; i++ {
		off := i * globalEdgeSize
		out[i] = GlobalEdge{
			Dst:          NodeID(binary.LittleEndian.Uint32(buf[off:])),
			Cost:         binary.LittleEndian.Uint32(buf[off+4:]),
			Kind:         SpecialKind(buf[off+8]),
			ReqMaskID:    binary.LittleEndian.Uint32(buf[off+9:]),
			ActionBlobID: binary.LittleEndian.Uint32(buf[off+13:]),
		}
	}
	return out
}

func encodeGlobalEdge(e GlobalEdge) []byte {
	b := make([]byte, globalEdgeSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(e.Dst))
	binary.LittleEndian.PutUint32(b[4:], e.Cost)
	b[8] = byte(e.Kind)
	binary.LittleEndian.PutUint32(b[9:], e.ReqMaskID)
	binary.LittleEndian.PutUint32(b[13:], e.ActionBlobID)
	return b
}

func decodeBounds(buf []byte) Bounds {
	return Bounds{
		Min: Point{
			X:     int32(binary.LittleEndian.Uint32(buf[0:])),
			Y:     int32(binary.LittleEndian.Uint32(buf[4:])),
			Plane: int32(binary.LittleEndian.Uint32(buf[8:])),
		},
		Max: Point{
			X:     int32(binary.LittleEndian.Uint32(buf[12:])),
			Y:     int32(binary.LittleEndian.Uint32(buf[16:])),
			Plane: int32(binary.LittleEndian.Uint32(buf[20:])),
		},
	}
}

func encodeBounds(b Bounds) []byte {
	out := make([]byte, 24)
	binary.LittleEndian.PutUint32(out[0:], uint32(b.Min.X))
	binary.LittleEndian.PutUint32(out[4:], uint32(b.Min.Y))
	binary.LittleEndian.PutUint32(out[8:], uint32(b.Min.Plane))
	binary.LittleEndian.PutUint32(out[12:], uint32(b.Max.X))
	binary.LittleEndian.PutUint32(out[16:], uint32(b.Max.Y))
	binary.LittleEndian.PutUint32(out[20:], uint32(b.Max.Plane))
	return out
}

// decodeActionBlobs parses the length-prefixed action_blobs section. Each
// record: u32 recordLen (excluding itself), u8 kind, u32 targetID,
// bounds(24), u16 hintLen, hint, u16 chainCount, chain links.
func decodeActionBlobs(buf []byte) []ActionBlob {
	var out []ActionBlob
	off := 0
	for off < len(buf) {
		recLen := int(binary.LittleEndian.Uint32(buf[off:]))
		rec := buf[off+4 : off+4+recLen]
		out = append(out, decodeActionBlobRecord(rec))
		off += 4 + recLen
	}
	return out
}

func decodeActionBlobRecord(rec []byte) ActionBlob {
	p := 0
	kind := SpecialKind(rec[p])
	p++
	targetID := binary.LittleEndian.Uint32(rec[p:])
	p += 4
	to := decodeBounds(rec[p:])
	p += 24
	hintLen := int(binary.LittleEndian.Uint16(rec[p:]))
	p += 2
	hint := string(rec[p : p+hintLen])
	p += hintLen
	chainCount := int(binary.LittleEndian.Uint16(rec[p:]))
	p += 2
	chain := make([]ChainLink, chainCount)
	for i := 0; i < chainCount; i++ {
		lkKind := SpecialKind(rec[p])
		p++
		lkTarget := binary.LittleEndian.Uint32(rec[p:])
		p += 4
		lkTo := decodeBounds(rec[p:])
		p += 24
		lkHintLen := int(binary.LittleEndian.Uint16(rec[p:]))
		p += 2
		lkHint := string(rec[p : p+lkHintLen])
		p += lkHintLen
		lkCost := binary.LittleEndian.Uint32(rec[p:])
		p += 4
		chain[i] = ChainLink{Kind: lkKind, TargetID: lkTarget, To: lkTo, Hint: lkHint, CostMS: lkCost}
	}
	return ActionBlob{Kind: kind, TargetID: targetID, To: to, Hint: hint, Chain: chain}
}

func encodeActionBlobRecord(b ActionBlob) []byte {
	var body []byte
	body = append(body, byte(b.Kind))
	tmp4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp4, b.TargetID)
	body = append(body, tmp4...)
	body = append(body, encodeBounds(b.To)...)
	tmp2 := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(b.Hint)))
	body = append(body, tmp2...)
	body = append(body, []byte(b.Hint)...)
	binary.LittleEndian.PutUint16(tmp2, uint16(len(b.Chain)))
	body = append(body, tmp2...)
	for _, lk := range b.Chain {
		body = append(body, byte(lk.Kind))
		binary.LittleEndian.PutUint32(tmp4, lk.TargetID)
		body = append(body, tmp4...)
		body = append(body, encodeBounds(lk.To)...)
		binary.LittleEndian.PutUint16(tmp2, uint16(len(lk.Hint)))
		body = append(body, tmp2...)
		body = append(body, []byte(lk.Hint)...)
		binary.LittleEndian.PutUint32(tmp4, lk.CostMS)
		body = append(body, tmp4...)
	}
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

// decodePredicateDict parses predicate_dictionary: length-prefixed records
// of (u16 keyLen, key, u8 op, i32 threshold), position gives predicate id.
func decodePredicateDict(buf []byte) []PredicateDef {
	var out []PredicateDef
	off := 0
	id := uint32(0)
	for off < len(buf) {
		keyLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		key := string(buf[off : off+keyLen])
		off += keyLen
		op := CompareOp(buf[off])
		off++
		threshold := int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		out = append(out, PredicateDef{ID: id, Key: key, Op: op, Threshold: threshold})
		id++
	}
	return out
}

func encodePredicateDef(p PredicateDef) []byte {
	out := make([]byte, 2+len(p.Key)+1+4)
	binary.LittleEndian.PutUint16(out, uint16(len(p.Key)))
	copy(out[2:], p.Key)
	off := 2 + len(p.Key)
	out[off] = byte(p.Op)
	binary.LittleEndian.PutUint32(out[off+1:], uint32(p.Threshold))
	return out
}

// decodeRequirementMasks splits a flat words buffer into per-mask bit
// arrays, W words each.
func decodeRequirementMasks(buf []byte, w int) [][]uint64 {
	if w == 0 {
		return nil
	}
	n := len(buf) / (w * 8)
	out := make([][]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = decodeUint64Slice(buf[i*w*8:(i+1)*w*8], w)
	}
	return out
}

// decodeMetadata parses repeated (u16 keyLen, key, u16 valLen, val).
func decodeMetadata(buf []byte) map[string]string {
	out := make(map[string]string)
	off := 0
	for off < len(buf) {
		kl := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		k := string(buf[off : off+kl])
		off += kl
		vl := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		v := string(buf[off : off+vl])
		off += vl
		out[k] = v
	}
	return out
}

func encodeMetadataEntry(k, v string) []byte {
	out := make([]byte, 2+len(k)+2+len(v))
	binary.LittleEndian.PutUint16(out, uint16(len(k)))
	copy(out[2:], k)
	off := 2 + len(k)
	binary.LittleEndian.PutUint16(out[off:], uint16(len(v)))
	copy(out[off+2:], v)
	return out
}
