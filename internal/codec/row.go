package codec

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/nebulastore/internal/errs"
)

// FieldType is one of the closed set of column types spec.md §3
// declares schemas may use.
type FieldType int

const (
	FieldBool FieldType = iota
	FieldInt64
	FieldDouble
	FieldString
	FieldDate
	FieldDateTime
	FieldTimestamp
	FieldList
	FieldMap
)

// fixedWidth reports the on-wire fixed width of a fixed-width field
// type, or 0 for variable-length types (string, list, map) which are
// stored in the offsets table instead.
func fixedWidth(t FieldType) int {
	switch t {
	case FieldBool:
		return 1
	case FieldInt64, FieldDateTime, FieldTimestamp:
		return 8
	case FieldDouble:
		return 8
	case FieldDate:
		return 4 // days since epoch, int32
	default:
		return 0
	}
}

// FieldDesc is one column of a schema version: spec.md §3's
// "(name, type, nullable, default?, ttl?)".
type FieldDesc struct {
	Name     string
	Type     FieldType
	Nullable bool
	Default  *Value
	// TTLSeconds > 0 marks this field as the row's TTL column: a row
	// is expired once the field's own value + TTLSeconds is in the past
	// (int64/date/time fields), or WriteTimestamp+TTLSeconds for other
	// field types; a NULL TTL field never expires the row.
	TTLSeconds int64
}

// Schema is one immutable version of a tag or edge type's field list.
type Schema struct {
	Version int64
	Fields  []FieldDesc
}

// Value is a decoded field value; exactly one of the typed members is
// meaningful, selected by Type.
type Value struct {
	Type   FieldType
	Bool   bool
	Int64  int64
	Double float64
	Str    string
	List   []Value
	Map    map[string]Value
	Null   bool
}

// Row is a decoded record: the schema version it was written with,
// an optional write timestamp (used for TTL), and its field values in
// schema order.
type Row struct {
	SchemaVersion   int64
	WriteTimestamp  int64 // unix seconds; 0 means "no TTL tracking"
	Values          []Value
}

// rowHeaderFixedLen is schemaVersion(8) || writeTimestamp(8) || nullBitmapLen(2).
const rowHeaderFixedLen = 8 + 8 + 2

// EncodeRow serializes values (already validated against schema) into
// the self-describing row format of spec.md §4.1: a fixed header
// (writer schema version + null bitmap), fixed-width fields in schema
// order, then an offsets table and variable-length field bytes.
func EncodeRow(schema Schema, values []Value, writeTimestamp int64) ([]byte, error) {
	if len(values) != len(schema.Fields) {
		return nil, errs.Newf(errs.SchemaMismatch, "got %d values, schema has %d fields", len(values), len(schema.Fields))
	}

	nullBitmapLen := (len(schema.Fields) + 7) / 8
	nullBitmap := make([]byte, nullBitmapLen)

	var fixedPart []byte
	var varPart []byte
	var offsets []uint32 // byte offset into varPart, per variable-length field in order

	for i, f := range schema.Fields {
		v := values[i]
		if v.Null {
			if !f.Nullable {
				return nil, errs.Newf(errs.SchemaMismatch, "field %q is not nullable", f.Name)
			}
			nullBitmap[i/8] |= 1 << uint(i%8)
			if w := fixedWidth(f.Type); w > 0 {
				fixedPart = append(fixedPart, make([]byte, w)...)
			}
			continue
		}
		if v.Type != f.Type {
			return nil, errs.Newf(errs.WrongType, "field %q: value type %d does not match schema type %d", f.Name, v.Type, f.Type)
		}
		switch f.Type {
		case FieldBool:
			b := byte(0)
			if v.Bool {
				b = 1
			}
			fixedPart = append(fixedPart, b)
		case FieldInt64, FieldDateTime, FieldTimestamp:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(v.Int64))
			fixedPart = append(fixedPart, b[:]...)
		case FieldDouble:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Double))
			fixedPart = append(fixedPart, b[:]...)
		case FieldDate:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(v.Int64))
			fixedPart = append(fixedPart, b[:]...)
		case FieldString:
			offsets = append(offsets, uint32(len(varPart)))
			varPart = append(varPart, encodeVarString(v.Str)...)
		case FieldList, FieldMap:
			enc, err := encodeCompoundValue(v)
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, uint32(len(varPart)))
			varPart = append(varPart, enc...)
		}
	}

	offsetsTable := make([]byte, 4*len(offsets))
	for i, o := range offsets {
		binary.BigEndian.PutUint32(offsetsTable[i*4:], o)
	}

	out := make([]byte, 0, rowHeaderFixedLen+nullBitmapLen+len(fixedPart)+4+len(offsetsTable)+len(varPart))
	var hdr [16]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(schema.Version))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(writeTimestamp))
	out = append(out, hdr[:]...)
	var bmLen [2]byte
	binary.BigEndian.PutUint16(bmLen[:], uint16(nullBitmapLen))
	out = append(out, bmLen[:]...)
	out = append(out, nullBitmap...)
	out = append(out, fixedPart...)
	var nOff [4]byte
	binary.BigEndian.PutUint32(nOff[:], uint32(len(offsets)))
	out = append(out, nOff[:]...)
	out = append(out, offsetsTable...)
	out = append(out, varPart...)
	return out, nil
}

func encodeVarString(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buf, uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

func decodeVarString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, errs.Newf(errs.IllFormat, "truncated string length prefix")
	}
	n := binary.BigEndian.Uint32(b)
	if len(b) < int(4+n) {
		return "", 0, errs.Newf(errs.IllFormat, "truncated string body")
	}
	return string(b[4 : 4+n]), int(4 + n), nil
}

// encodeCompoundValue serializes a FieldList/FieldMap value with a
// minimal self-describing tag stream, reusing encodeVarString for leaf
// strings and recursing for nested lists/maps.
func encodeCompoundValue(v Value) ([]byte, error) {
	var buf []byte
	switch v.Type {
	case FieldList:
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(v.List)))
		buf = append(buf, n[:]...)
		for _, item := range v.List {
			enc, err := encodeLeaf(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, enc...)
		}
	case FieldMap:
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(v.Map)))
		buf = append(buf, n[:]...)
		for k, item := range v.Map {
			buf = append(buf, encodeVarString(k)...)
			enc, err := encodeLeaf(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, enc...)
		}
	default:
		return nil, errs.Newf(errs.WrongType, "not a compound type")
	}
	return buf, nil
}

// encodeLeaf encodes one element of a list/map: a type byte followed
// by the value's own encoding, so heterogeneous collections remain
// self-describing.
func encodeLeaf(v Value) ([]byte, error) {
	out := []byte{byte(v.Type)}
	if v.Null {
		out[0] = 0xFF
		return out, nil
	}
	switch v.Type {
	case FieldBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		out = append(out, b)
	case FieldInt64, FieldDateTime, FieldTimestamp, FieldDate:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.Int64))
		out = append(out, b[:]...)
	case FieldDouble:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Double))
		out = append(out, b[:]...)
	case FieldString:
		out = append(out, encodeVarString(v.Str)...)
	case FieldList, FieldMap:
		enc, err := encodeCompoundValue(v)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func decodeLeaf(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, errs.Newf(errs.IllFormat, "truncated leaf value")
	}
	tag := b[0]
	if tag == 0xFF {
		return Value{Null: true}, 1, nil
	}
	t := FieldType(tag)
	rest := b[1:]
	switch t {
	case FieldBool:
		if len(rest) < 1 {
			return Value{}, 0, errs.Newf(errs.IllFormat, "truncated bool leaf")
		}
		return Value{Type: t, Bool: rest[0] != 0}, 2, nil
	case FieldInt64, FieldDateTime, FieldTimestamp, FieldDate:
		if len(rest) < 8 {
			return Value{}, 0, errs.Newf(errs.IllFormat, "truncated int leaf")
		}
		return Value{Type: t, Int64: int64(binary.BigEndian.Uint64(rest[:8]))}, 9, nil
	case FieldDouble:
		if len(rest) < 8 {
			return Value{}, 0, errs.Newf(errs.IllFormat, "truncated double leaf")
		}
		return Value{Type: t, Double: math.Float64frombits(binary.BigEndian.Uint64(rest[:8]))}, 9, nil
	case FieldString:
		s, n, err := decodeVarString(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Type: t, Str: s}, 1 + n, nil
	case FieldList:
		v, n, err := decodeCompoundValue(t, rest)
		return v, 1 + n, err
	case FieldMap:
		v, n, err := decodeCompoundValue(t, rest)
		return v, 1 + n, err
	default:
		return Value{}, 0, errs.Newf(errs.WrongType, "unknown leaf type tag %d", tag)
	}
}

func decodeCompoundValue(t FieldType, b []byte) (Value, int, error) {
	if len(b) < 4 {
		return Value{}, 0, errs.Newf(errs.IllFormat, "truncated compound length")
	}
	n := int(binary.BigEndian.Uint32(b))
	off := 4
	switch t {
	case FieldList:
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, consumed, err := decodeLeaf(b[off:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, v)
			off += consumed
		}
		return Value{Type: t, List: items}, off, nil
	case FieldMap:
		m := make(map[string]Value, n)
		for i := 0; i < n; i++ {
			k, consumed, err := decodeVarString(b[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += consumed
			v, consumed2, err := decodeLeaf(b[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += consumed2
			m[k] = v
		}
		return Value{Type: t, Map: m}, off, nil
	}
	return Value{}, 0, errs.Newf(errs.WrongType, "not a compound type")
}

// DecodeRow deserializes a row encoded by EncodeRow against the given
// schema, which must have the same field list the row was written
// with. Fields whose null bit is set are materialized from their
// schema default (or left NULL when there is none). The row's field
// list is not compared with the schema's: fields absent from a row
// written with a shorter field list are not filled from defaults.
func DecodeRow(schema Schema, data []byte) (Row, error) {
	if len(data) < rowHeaderFixedLen {
		return Row{}, errs.Newf(errs.IllFormat, "row shorter than header")
	}
	schemaVersion := int64(binary.BigEndian.Uint64(data[0:8]))
	writeTS := int64(binary.BigEndian.Uint64(data[8:16]))
	nullBitmapLen := int(binary.BigEndian.Uint16(data[16:18]))
	off := 18
	if len(data) < off+nullBitmapLen {
		return Row{}, errs.Newf(errs.IllFormat, "row shorter than null bitmap")
	}
	nullBitmap := data[off : off+nullBitmapLen]
	off += nullBitmapLen

	values := make([]Value, len(schema.Fields))
	varFieldIdx := 0
	var varOffsetsStart int

	// First pass over fixed-width fields to locate where the
	// offsets table begins.
	fixedStart := off
	for i, f := range schema.Fields {
		isNull := nullBitmap[i/8]&(1<<uint(i%8)) != 0
		w := fixedWidth(f.Type)
		if w == 0 {
			continue // variable-length, handled after offsets table
		}
		if isNull {
			values[i] = defaultOrNull(f)
			off += w
			continue
		}
		v, err := decodeFixed(f.Type, data[off:off+w])
		if err != nil {
			return Row{}, err
		}
		values[i] = v
		off += w
	}
	_ = fixedStart
	varOffsetsStart = off
	if len(data) < varOffsetsStart+4 {
		return Row{}, errs.Newf(errs.IllFormat, "row shorter than offsets count")
	}
	nOffsets := int(binary.BigEndian.Uint32(data[varOffsetsStart : varOffsetsStart+4]))
	off = varOffsetsStart + 4
	if len(data) < off+4*nOffsets {
		return Row{}, errs.Newf(errs.IllFormat, "row shorter than offsets table")
	}
	offsets := make([]uint32, nOffsets)
	for i := 0; i < nOffsets; i++ {
		offsets[i] = binary.BigEndian.Uint32(data[off+4*i:])
	}
	varPart := data[off+4*nOffsets:]

	for i, f := range schema.Fields {
		if fixedWidth(f.Type) > 0 {
			continue
		}
		isNull := nullBitmap[i/8]&(1<<uint(i%8)) != 0
		if isNull {
			values[i] = defaultOrNull(f)
			varFieldIdx++
			continue
		}
		if varFieldIdx >= len(offsets) {
			return Row{}, errs.Newf(errs.IllFormat, "missing variable-length offset for field %q", f.Name)
		}
		start := offsets[varFieldIdx]
		if int(start) > len(varPart) {
			return Row{}, errs.Newf(errs.IllFormat, "variable-length offset out of range for field %q", f.Name)
		}
		switch f.Type {
		case FieldString:
			s, _, err := decodeVarString(varPart[start:])
			if err != nil {
				return Row{}, err
			}
			values[i] = Value{Type: FieldString, Str: s}
		case FieldList, FieldMap:
			v, _, err := decodeCompoundValue(f.Type, varPart[start:])
			if err != nil {
				return Row{}, err
			}
			values[i] = v
		}
		varFieldIdx++
	}

	return Row{SchemaVersion: schemaVersion, WriteTimestamp: writeTS, Values: values}, nil
}

func decodeFixed(t FieldType, b []byte) (Value, error) {
	switch t {
	case FieldBool:
		return Value{Type: t, Bool: b[0] != 0}, nil
	case FieldInt64, FieldDateTime, FieldTimestamp:
		return Value{Type: t, Int64: int64(binary.BigEndian.Uint64(b))}, nil
	case FieldDouble:
		return Value{Type: t, Double: math.Float64frombits(binary.BigEndian.Uint64(b))}, nil
	case FieldDate:
		return Value{Type: t, Int64: int64(binary.BigEndian.Uint32(b))}, nil
	}
	return Value{}, errs.Newf(errs.WrongType, "not a fixed-width type")
}

func defaultOrNull(f FieldDesc) Value {
	if f.Default != nil {
		return *f.Default
	}
	return Value{Type: f.Type, Null: true}
}

// IsExpired reports whether row is past its TTL, given the schema's
// TTL field (if any) and the current unix time, per spec.md §8
// property 8.
func IsExpired(schema Schema, row Row, nowUnix int64) bool {
	for i, f := range schema.Fields {
		if f.TTLSeconds <= 0 {
			continue
		}
		if i >= len(row.Values) {
			continue
		}
		v := row.Values[i]
		if v.Null {
			continue
		}
		var base int64
		switch v.Type {
		case FieldInt64, FieldDateTime, FieldTimestamp, FieldDate:
			base = v.Int64
		default:
			base = row.WriteTimestamp
		}
		if base+f.TTLSeconds < nowUnix {
			return true
		}
	}
	return false
}
