package mutation

import (
	"bytes"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/errs"
)

// encodeIndexValues concatenates the order-preserving encoding of each
// field an index is built over, in declared order, and sets nullBitmap
// bit i for every NULL column — the exact layout TagIndexKey/
// EdgeIndexKey expect as their values/nullBitmap arguments.
func encodeIndexValues(values []codec.Value, fields []IndexField) ([]byte, uint16, error) {
	var buf bytes.Buffer
	var nullBitmap uint16
	for i, f := range fields {
		if f.Ordinal >= len(values) {
			return nil, 0, errs.Newf(errs.SchemaMismatch, "index field ordinal %d out of range (%d values)", f.Ordinal, len(values))
		}
		v := values[f.Ordinal]
		if v.Null {
			nullBitmap |= 1 << uint(i)
			buf.Write(codec.NullPlaceholder(indexFieldWidth(v.Type, f.StringWidth)))
			continue
		}
		switch v.Type {
		case codec.FieldBool:
			buf.Write(codec.EncodeIndexBool(v.Bool))
		case codec.FieldInt64, codec.FieldDateTime, codec.FieldTimestamp, codec.FieldDate:
			buf.Write(codec.EncodeIndexInt64(v.Int64))
		case codec.FieldDouble:
			buf.Write(codec.EncodeIndexDouble(v.Double))
		case codec.FieldString:
			buf.Write(codec.EncodeIndexString(v.Str, f.StringWidth))
		default:
			return nil, 0, errs.Newf(errs.WrongType, "field type %d is not indexable", v.Type)
		}
	}
	return buf.Bytes(), nullBitmap, nil
}

func indexFieldWidth(t codec.FieldType, stringWidth int) int {
	switch t {
	case codec.FieldBool:
		return 1
	case codec.FieldInt64, codec.FieldDouble, codec.FieldDateTime, codec.FieldTimestamp, codec.FieldDate:
		return 8
	case codec.FieldString:
		return stringWidth + 2
	default:
		return 0
	}
}

// tagIndexKeys builds every (indexID -> key) entry a tag row
// participates in, for either diffing against a prior version
// (retract) or the new one being written (insert).
func tagIndexKeys(partID uint32, def TagSchema, vertexID []byte, values []codec.Value) (map[uint32][]byte, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[uint32][]byte, len(def.Indexes))
	for _, idx := range def.Indexes {
		valBytes, nullBitmap, err := encodeIndexValues(values, idx.Fields)
		if err != nil {
			return nil, err
		}
		key, err := codec.TagIndexKey(partID, int32(idx.IndexID), valBytes, nullBitmap, vertexID, def.VidLen)
		if err != nil {
			return nil, err
		}
		out[idx.IndexID] = key
	}
	return out, nil
}

// edgeIndexKeys is the edge analogue of tagIndexKeys.
func edgeIndexKeys(partID uint32, def EdgeSchema, id EdgeID, values []codec.Value) (map[uint32][]byte, error) {
	if values == nil {
		return nil, nil
	}
	out := make(map[uint32][]byte, len(def.Indexes))
	for _, idx := range def.Indexes {
		valBytes, nullBitmap, err := encodeIndexValues(values, idx.Fields)
		if err != nil {
			return nil, err
		}
		key, err := codec.EdgeIndexKey(partID, int32(idx.IndexID), valBytes, nullBitmap, id.SrcID, id.Ranking, id.DstID, def.VidLen)
		if err != nil {
			return nil, err
		}
		out[idx.IndexID] = key
	}
	return out, nil
}

// diffIndexSteps compares an old and new index-key set (keyed by
// IndexID, as built by tagIndexKeys/edgeIndexKeys) and returns the kv
// steps needed to move from old to new: retract any old entry whose
// key changed or disappeared, insert any new or changed entry. Index
// records carry no payload (spec.md's "value is empty"), so an
// unchanged key needs no step at all.
func diffIndexSteps(old, new map[uint32][]byte) []step {
	var steps []step
	for id, oldKey := range old {
		if newKey, ok := new[id]; ok && bytes.Equal(oldKey, newKey) {
			continue
		}
		steps = append(steps, step{Kind: kindDelete, Key: oldKey})
	}
	for id, newKey := range new {
		if oldKey, ok := old[id]; ok && bytes.Equal(oldKey, newKey) {
			continue
		}
		steps = append(steps, step{Kind: kindPut, Key: newKey})
	}
	return steps
}
