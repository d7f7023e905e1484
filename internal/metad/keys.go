package metad

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
)

// Key tags. Catalog entries live in one flat keyspace inside the
// metadata group's own kv engine (conventionally space 0, partition 0
// of a host's engine set); a single leading byte disambiguates entity
// kind the way internal/codec's partId+tag word does for graph data.
const (
	tagSpace  byte = 's'
	tagTag    byte = 't'
	tagEdge   byte = 'e'
	tagPart   byte = 'p'
	tagHost   byte = 'h'
	tagWorker byte = 'w'
	tagVer    byte = 'v'
)

func spaceKey(spaceID uint32) []byte {
	k := make([]byte, 5)
	k[0] = tagSpace
	binary.BigEndian.PutUint32(k[1:], spaceID)
	return k
}

func tagSchemaKey(k TagKey) []byte {
	buf := make([]byte, 9)
	buf[0] = tagTag
	binary.BigEndian.PutUint32(buf[1:5], k.SpaceID)
	binary.BigEndian.PutUint32(buf[5:9], uint32(k.TagID))
	return buf
}

func edgeSchemaKey(k EdgeKey) []byte {
	buf := make([]byte, 9)
	buf[0] = tagEdge
	binary.BigEndian.PutUint32(buf[1:5], k.SpaceID)
	binary.BigEndian.PutUint32(buf[5:9], uint32(k.EdgeType))
	return buf
}

func partKey(k PartKey) []byte {
	buf := make([]byte, 9)
	buf[0] = tagPart
	binary.BigEndian.PutUint32(buf[1:5], k.SpaceID)
	binary.BigEndian.PutUint32(buf[5:9], k.PartID)
	return buf
}

func hostKey(addr string) []byte {
	return append([]byte{tagHost}, []byte(addr)...)
}

func workerKey(addr string) []byte {
	return append([]byte{tagWorker}, []byte(addr)...)
}

// versionKey holds the catalog's monotonically increasing version
// counter, bumped by every applied command so internal/metaclient's
// long-poll can tell callers "nothing changed" without decoding the
// whole catalog.
func versionKey() []byte { return []byte{tagVer} }

func gobEncode(v any) []byte {
	var buf bytes.Buffer
	// Only called with types defined in this package; encoding cannot
	// fail short of an OOM, so the error is not worth a return value
	// up through every call site.
	_ = gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes()
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
