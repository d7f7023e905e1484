// Package codec implements the bit-exact binary layout of vertex, edge,
// index and system keys described in spec.md §4.1, and the
// self-describing row encoding carried as their values.
//
// Layout is grounded on original_source/src/common/base/NebulaKeyUtils.h:
//
//	vertex key = partId<<8|typeTag(4) || vertexId(vIdLen) || tagId(4) || ~version(8)
//	edge key   = partId<<8|typeTag(4) || srcId(vIdLen) || edgeType(4) || ~ranking(8) || dstId(vIdLen) || ~version(8)
//
// The header's own layout packs the type tag into the low byte of a
// single big-endian uint32 that starts with partId; this package keeps
// that packing (partId occupies the high 24 bits, the type tag the low
// 8) so that all keys of one partition, and within it all keys of one
// record kind, are byte-contiguous.
package codec

import (
	"encoding/binary"

	"github.com/cuemby/nebulastore/internal/errs"
)

// Record-kind tags occupy the low byte of the partId/tag word. Values
// are an implementation choice; they only need to be disjoint and the
// "system" tag must be the maximum so system keys (with the actual
// '_' payload following) sort after all data keys of a partition.
const (
	TagVertex byte = 0x01
	TagEdge   byte = 0x02
	TagIndex  byte = 0x03
	TagSystem byte = 0xFF
)

// SysPrefix is the reserved leading payload byte of system keys,
// matching spec.md's "keys beginning with the byte `_` are reserved".
const SysPrefix = '_'

const (
	partIDLen   = 4
	tagIDLen    = 4
	edgeTypeLen = 4
	versionLen  = 8
)

// packPartTag combines a partition id and a record-kind tag into the
// leading 4-byte word: high 24 bits partId, low 8 bits tag.
func packPartTag(partID uint32, tag byte) uint32 {
	return (partID << 8) | uint32(tag)
}

func unpackPartTag(word uint32) (partID uint32, tag byte) {
	return word >> 8, byte(word & 0xFF)
}

// invertVersion encodes a monotonic version so that newer (numerically
// larger) versions sort first under byte-lexicographic order: this is
// the bitwise inversion required by spec.md's "Version ordering"
// invariant (encodedVersion = ~rawVersion).
func invertVersion(v uint64) uint64 { return ^v }

// padVID right-pads id with zero bytes to vidLen, or returns
// VidLengthMismatch if id is longer than vidLen, per spec.md's VId
// width invariant.
func padVID(id []byte, vidLen int) ([]byte, error) {
	if len(id) > vidLen {
		return nil, errs.Newf(errs.VidLengthMismatch, "vertex id length %d exceeds vIdLen %d", len(id), vidLen)
	}
	if len(id) == vidLen {
		return id, nil
	}
	out := make([]byte, vidLen)
	copy(out, id)
	return out, nil
}

// VertexKey encodes a tag-row key.
//
//	partId<<8|typeTag(4) || vertexId(vIdLen) || tagId(4) || ~version(8)
func VertexKey(partID uint32, vertexID []byte, vidLen int, tagID int32, version uint64) ([]byte, error) {
	vid, err := padVID(vertexID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen+tagIDLen+versionLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagVertex))
	copy(buf[4:4+vidLen], vid)
	off := 4 + vidLen
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(tagID))
	binary.BigEndian.PutUint64(buf[off+4:off+4+8], invertVersion(version))
	return buf, nil
}

// DecodedVertexKey is the tuple recovered by DecodeVertexKey.
type DecodedVertexKey struct {
	PartID   uint32
	VertexID []byte
	TagID    int32
	Version  uint64
}

// DecodeVertexKey inverts VertexKey. vidLen must be the space's
// configured vertex id width.
func DecodeVertexKey(key []byte, vidLen int) (DecodedVertexKey, error) {
	want := partIDLen + vidLen + tagIDLen + versionLen
	if len(key) != want {
		return DecodedVertexKey{}, errs.Newf(errs.InvalidKey, "vertex key length %d, want %d", len(key), want)
	}
	word := binary.BigEndian.Uint32(key[0:4])
	partID, tag := unpackPartTag(word)
	if tag != TagVertex {
		return DecodedVertexKey{}, errs.Newf(errs.InvalidKey, "key tag %#x is not a vertex tag", tag)
	}
	vid := append([]byte(nil), key[4:4+vidLen]...)
	off := 4 + vidLen
	tagID := int32(binary.BigEndian.Uint32(key[off : off+4]))
	version := invertVersion(binary.BigEndian.Uint64(key[off+4 : off+4+8]))
	return DecodedVertexKey{PartID: partID, VertexID: vid, TagID: tagID, Version: version}, nil
}

// VertexPrefix builds the prefix shared by every tag row of vertexID,
// i.e. part||vid, used for "get all tags of this vertex" scans.
func VertexPrefix(partID uint32, vertexID []byte, vidLen int) ([]byte, error) {
	vid, err := padVID(vertexID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagVertex))
	copy(buf[4:], vid)
	return buf, nil
}

// VertexTagPrefix builds part||vid||tagId, the prefix whose forward
// iteration yields every version of one (vertex,tag) newest-first.
func VertexTagPrefix(partID uint32, vertexID []byte, vidLen int, tagID int32) ([]byte, error) {
	vid, err := padVID(vertexID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen+tagIDLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagVertex))
	copy(buf[4:4+vidLen], vid)
	binary.BigEndian.PutUint32(buf[4+vidLen:], uint32(tagID))
	return buf, nil
}

// EdgeKey encodes an edge record key. edgeType's sign carries
// direction: positive for the out-edge stored on partitionOf(src),
// negative for the in-edge stored on partitionOf(dst).
//
//	partId<<8|typeTag(4) || srcId(vIdLen) || edgeType(4,signed) || ~ranking(8) || dstId(vIdLen) || ~version(8)
func EdgeKey(partID uint32, srcID []byte, edgeType int32, ranking int64, dstID []byte, vidLen int, version uint64) ([]byte, error) {
	src, err := padVID(srcID, vidLen)
	if err != nil {
		return nil, err
	}
	dst, err := padVID(dstID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen+edgeTypeLen+versionLen+vidLen+versionLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagEdge))
	off := 4
	copy(buf[off:off+vidLen], src)
	off += vidLen
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(edgeType))
	off += 4
	binary.BigEndian.PutUint64(buf[off:off+8], invertRanking(ranking))
	off += 8
	copy(buf[off:off+vidLen], dst)
	off += vidLen
	binary.BigEndian.PutUint64(buf[off:off+8], invertVersion(version))
	return buf, nil
}

// invertRanking bitwise-inverts the ranking's two's-complement bits,
// with no sign flip: among non-negative rankings, and among negative
// ones, larger rankings sort first, and every negative ranking sorts
// before every non-negative one.
// Rankings are user-chosen and need only a stable total order here;
// using the same bitwise inversion as version keeps one mental model.
func invertRanking(r int64) uint64 { return ^uint64(r) }

func unInvertRanking(v uint64) int64 { return int64(^v) }

// DecodedEdgeKey is the tuple recovered by DecodeEdgeKey.
type DecodedEdgeKey struct {
	PartID   uint32
	SrcID    []byte
	EdgeType int32
	Ranking  int64
	DstID    []byte
	Version  uint64
}

// DecodeEdgeKey inverts EdgeKey.
func DecodeEdgeKey(key []byte, vidLen int) (DecodedEdgeKey, error) {
	want := partIDLen + vidLen + edgeTypeLen + versionLen + vidLen + versionLen
	if len(key) != want {
		return DecodedEdgeKey{}, errs.Newf(errs.InvalidKey, "edge key length %d, want %d", len(key), want)
	}
	word := binary.BigEndian.Uint32(key[0:4])
	partID, tag := unpackPartTag(word)
	if tag != TagEdge {
		return DecodedEdgeKey{}, errs.Newf(errs.InvalidKey, "key tag %#x is not an edge tag", tag)
	}
	off := 4
	src := append([]byte(nil), key[off:off+vidLen]...)
	off += vidLen
	edgeType := int32(binary.BigEndian.Uint32(key[off : off+4]))
	off += 4
	ranking := unInvertRanking(binary.BigEndian.Uint64(key[off : off+8]))
	off += 8
	dst := append([]byte(nil), key[off:off+vidLen]...)
	off += vidLen
	version := invertVersion(binary.BigEndian.Uint64(key[off : off+8]))
	return DecodedEdgeKey{
		PartID: partID, SrcID: src, EdgeType: edgeType, Ranking: ranking, DstID: dst, Version: version,
	}, nil
}

// EdgePrefix builds part||srcId, every edge (any type) out of srcID.
func EdgePrefix(partID uint32, srcID []byte, vidLen int) ([]byte, error) {
	src, err := padVID(srcID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagEdge))
	copy(buf[4:], src)
	return buf, nil
}

// EdgeTypePrefix builds part||srcId||edgeType, every edge of one type
// out of srcID (any ranking/dst/version).
func EdgeTypePrefix(partID uint32, srcID []byte, edgeType int32, vidLen int) ([]byte, error) {
	src, err := padVID(srcID, vidLen)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, partIDLen+vidLen+edgeTypeLen)
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagEdge))
	copy(buf[4:4+vidLen], src)
	binary.BigEndian.PutUint32(buf[4+vidLen:], uint32(edgeType))
	return buf, nil
}

// PartitionPrefix returns the prefix common to every key (of any kind)
// stored under partID; useful for partition-wide scans (snapshot
// export, partition teardown).
func PartitionPrefix(partID uint32) []byte {
	buf := make([]byte, partIDLen)
	binary.BigEndian.PutUint32(buf, partID<<8)
	return buf[:partIDLen-1]
}

// SystemKey encodes a system record key: partId(4) || '_' || payload.
// System keys hold Raft peer metadata, leader hints, index build
// progress, balance plans — never data.
func SystemKey(partID uint32, payload []byte) []byte {
	buf := make([]byte, partIDLen+1+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], packPartTag(partID, TagSystem))
	buf[4] = SysPrefix
	copy(buf[5:], payload)
	return buf
}

// IsDataKey reports whether key belongs to a vertex or edge record
// (as opposed to a system or index record).
func IsDataKey(key []byte) bool {
	if len(key) < partIDLen {
		return false
	}
	_, tag := unpackPartTag(binary.BigEndian.Uint32(key[0:4]))
	return tag == TagVertex || tag == TagEdge
}

// RecordKind returns the type tag of key, or an error if key is too
// short to contain one.
func RecordKind(key []byte) (byte, error) {
	if len(key) < partIDLen {
		return 0, errs.Newf(errs.InvalidKey, "key shorter than partId field")
	}
	_, tag := unpackPartTag(binary.BigEndian.Uint32(key[0:4]))
	return tag, nil
}

// PartitionOf returns the partition id for a record hashed from key,
// implementing spec.md's routing invariant: partitionOf(v) = hash(v)
// mod P + 1 (1-based partition ids).
func PartitionOf(hash uint64, numParts int) uint32 {
	return uint32(hash%uint64(numParts)) + 1
}
