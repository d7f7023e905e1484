package codec

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/nebulastore/internal/errs"
)

// Index keys store the indexed value as the key and an empty payload:
// spec.md §3, "Secondary index record". Value encoding is
// order-preserving per type so a byte-lexicographic scan of the index
// implements the logical comparison operators on the indexed column.

// nullableBitmapLen is the fixed width of the nullable bitmap trailer
// that precedes the variable-length tail, per spec.md §4.1.
const nullableBitmapLen = 2

// TagIndexKey builds a tag-index key:
//
//	partId(4) || sysPrefix=0 || indexId(4) || values || nullBitmap(2) || vertexId
//
// values must already be the concatenation of each indexed column's
// order-preserving encoding (EncodeIndexInt64 etc.), in declared column
// order; nullBitmap's bit i is set iff column i was NULL.
func TagIndexKey(partID uint32, indexID int32, values []byte, nullBitmap uint16, vertexID []byte, vidLen int) ([]byte, error) {
	vid, err := padVID(vertexID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+1+4+len(values)+nullableBitmapLen+vidLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagIndex))
	buf[4] = 0 // sysPrefix=0 distinguishes index keys from '_' system keys
	off := 5
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(indexID))
	off += 4
	copy(buf[off:off+len(values)], values)
	off += len(values)
	binary.BigEndian.PutUint16(buf[off:off+2], nullBitmap)
	off += 2
	copy(buf[off:], vid)
	return buf, nil
}

// EdgeIndexKey builds an edge-index key, same shape as TagIndexKey but
// with a tail of srcId||ranking||dstId instead of a bare vertexId.
func EdgeIndexKey(partID uint32, indexID int32, values []byte, nullBitmap uint16, srcID []byte, ranking int64, dstID []byte, vidLen int) ([]byte, error) {
	src, err := padVID(srcID, vidLen)
	if err != nil {
		return nil, err
	}
	dst, err := padVID(dstID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+1+4+len(values)+nullableBitmapLen+vidLen+8+vidLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagIndex))
	buf[4] = 0
	off := 5
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(indexID))
	off += 4
	copy(buf[off:off+len(values)], values)
	off += len(values)
	binary.BigEndian.PutUint16(buf[off:off+2], nullBitmap)
	off += 2
	copy(buf[off:off+vidLen], src)
	off += vidLen
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(ranking))
	off += 8
	copy(buf[off:], dst)
	return buf, nil
}

// IndexPrefix builds part||sysPrefix=0||indexId, the prefix of every
// entry in one index — the starting point for a full index scan or
// for constructing a begin/end range from column hints.
func IndexPrefix(partID uint32, indexID int32) []byte {
	buf := make([]byte, partIDLen+1+4)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagIndex))
	buf[4] = 0
	binary.BigEndian.PutUint32(buf[5:], uint32(indexID))
	return buf
}

// EncodeIndexInt64 order-preserving-encodes a signed 64-bit integer:
// sign-flipped big-endian, so that the unsigned byte order equals the
// signed numeric order.
func EncodeIndexInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
	return buf
}

// DecodeIndexInt64 inverts EncodeIndexInt64.
func DecodeIndexInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, errs.Newf(errs.InvalidKey, "index int64 field length %d, want 8", len(b))
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

// EncodeIndexDouble order-preserving-encodes an IEEE-754 double:
// positives get their sign bit flipped, negatives get every bit
// flipped, so the resulting unsigned byte order equals the numeric
// order (NaN is not a valid indexed value and is rejected by callers).
func EncodeIndexDouble(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) == 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// DecodeIndexDouble inverts EncodeIndexDouble.
func DecodeIndexDouble(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, errs.Newf(errs.InvalidKey, "index double field length %d, want 8", len(b))
	}
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// EncodeIndexBool encodes a bool as a single order-preserving byte.
func EncodeIndexBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// EncodeIndexString encodes a string for a fixed-width index column
// of declared maximum length maxLen: the string is truncated or
// zero-padded to maxLen bytes, and a 2-byte big-endian suffix length
// (min(len(s), maxLen)) is appended so a reader can tell "ended early"
// apart from "padded with zero bytes that happened to be in the
// string", per spec.md §4.1.
func EncodeIndexString(s string, maxLen int) []byte {
	raw := []byte(s)
	n := len(raw)
	if n > maxLen {
		n = maxLen
	}
	buf := make([]byte, maxLen+2)
	copy(buf, raw[:n])
	binary.BigEndian.PutUint16(buf[maxLen:], uint16(n))
	return buf
}

// DecodeIndexString inverts EncodeIndexString.
func DecodeIndexString(b []byte, maxLen int) (string, error) {
	if len(b) != maxLen+2 {
		return "", errs.Newf(errs.InvalidKey, "index string field length %d, want %d", len(b), maxLen+2)
	}
	n := binary.BigEndian.Uint16(b[maxLen:])
	if int(n) > maxLen {
		return "", errs.Newf(errs.InvalidKey, "index string suffix length %d exceeds maxLen %d", n, maxLen)
	}
	return string(b[:n]), nil
}

// NullPlaceholder returns the fixed-width, type-specific placeholder
// written in place of a real value when a column is NULL; its bit in
// the nullable bitmap is what actually marks it as absent, so the
// placeholder's content only needs to be a valid fixed-width value of
// the right size (it is never compared against).
func NullPlaceholder(width int) []byte {
	return make([]byte, width)
}
