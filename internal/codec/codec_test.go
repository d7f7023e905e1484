package codec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVertexKeyRoundTrip(t *testing.T) {
	vid := []byte("v1______") // 8 bytes
	key, err := VertexKey(7, vid, 8, 42, 1000)
	require.NoError(t, err)

	decoded, err := DecodeVertexKey(key, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(7), decoded.PartID)
	require.Equal(t, vid, decoded.VertexID)
	require.Equal(t, int32(42), decoded.TagID)
	require.Equal(t, uint64(1000), decoded.Version)
}

func TestVertexKeyVidPadding(t *testing.T) {
	short, err := VertexKey(1, []byte("v1"), 8, 1, 1)
	require.NoError(t, err)
	padded, err := VertexKey(1, []byte("v1\x00\x00\x00\x00\x00\x00"), 8, 1, 1)
	require.NoError(t, err)
	require.Equal(t, padded, short, "short vid must pad identically to an explicitly padded vid")
}

func TestVertexKeyTooLongVid(t *testing.T) {
	_, err := VertexKey(1, []byte("123456789"), 8, 1, 1)
	require.Error(t, err)
}

func TestVertexKeyOrdering(t *testing.T) {
	// Newest version must sort first within the same (part,vid,tag).
	older, err := VertexKey(1, []byte("v1______"), 8, 1, 100)
	require.NoError(t, err)
	newer, err := VertexKey(1, []byte("v1______"), 8, 1, 200)
	require.NoError(t, err)
	require.True(t, bytes.Compare(newer, older) < 0, "newer version must sort before older")
}

func TestVertexTagPrefixNewestFirst(t *testing.T) {
	versions := []uint64{10, 5, 30, 1}
	var keys [][]byte
	for _, v := range versions {
		k, err := VertexKey(1, []byte("v1______"), 8, 1, v)
		require.NoError(t, err)
		keys = append(keys, k)
	}
	sorted := append([][]byte(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	var gotVersions []uint64
	for _, k := range sorted {
		d, err := DecodeVertexKey(k, 8)
		require.NoError(t, err)
		gotVersions = append(gotVersions, d.Version)
	}
	require.Equal(t, []uint64{30, 10, 5, 1}, gotVersions)
}

func TestEdgeKeyRoundTripAndPairing(t *testing.T) {
	src := []byte("src_____")
	dst := []byte("dst_____")
	out, err := EdgeKey(1, src, 5, 42, dst, 8, 7)
	require.NoError(t, err)
	in, err := EdgeKey(2, dst, -5, 42, src, 8, 7)
	require.NoError(t, err)

	dOut, err := DecodeEdgeKey(out, 8)
	require.NoError(t, err)
	dIn, err := DecodeEdgeKey(in, 8)
	require.NoError(t, err)

	require.Equal(t, dOut.SrcID, dIn.DstID)
	require.Equal(t, dOut.DstID, dIn.SrcID)
	require.Equal(t, dOut.EdgeType, -dIn.EdgeType)
	require.Equal(t, dOut.Ranking, dIn.Ranking)
}

func TestKeyPrefixesAreDisjointByKind(t *testing.T) {
	vid := []byte("v1______")
	vKey, err := VertexKey(1, vid, 8, 1, 1)
	require.NoError(t, err)
	eKey, err := EdgeKey(1, vid, 1, 0, vid, 8, 1)
	require.NoError(t, err)
	sKey := SystemKey(1, []byte("term"))

	kinds := map[byte]bool{}
	for _, k := range [][]byte{vKey, eKey, sKey} {
		tag, err := RecordKind(k)
		require.NoError(t, err)
		kinds[tag] = true
	}
	require.Len(t, kinds, 3)
	require.True(t, IsDataKey(vKey))
	require.True(t, IsDataKey(eKey))
	require.False(t, IsDataKey(sKey))
}

func TestIndexInt64Ordering(t *testing.T) {
	values := []int64{-100, -1, 0, 1, 100}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, EncodeIndexInt64(v))
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0)
	}
	for i, v := range values {
		got, err := DecodeIndexInt64(encoded[i])
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestIndexDoubleOrdering(t *testing.T) {
	values := []float64{-100.5, -0.1, 0, 0.1, 100.5}
	var encoded [][]byte
	for _, v := range values {
		encoded = append(encoded, EncodeIndexDouble(v))
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0)
	}
	for i, v := range values {
		got, err := DecodeIndexDouble(encoded[i])
		require.NoError(t, err)
		require.InDelta(t, v, got, 1e-9)
	}
}

func TestIndexStringPaddingAndSuffix(t *testing.T) {
	short := EncodeIndexString("ab", 8)
	paddedExact := EncodeIndexString("ab\x00\x00\x00\x00\x00\x00", 8)
	require.NotEqual(t, short, paddedExact, "suffix length distinguishes a short string from one that is literally padded with zero bytes")

	got, err := DecodeIndexString(short, 8)
	require.NoError(t, err)
	require.Equal(t, "ab", got)
}

func TestRowEncodeDecodeRoundTrip(t *testing.T) {
	schema := Schema{
		Version: 1,
		Fields: []FieldDesc{
			{Name: "name", Type: FieldString, Nullable: false},
			{Name: "age", Type: FieldInt64, Nullable: true},
		},
	}
	values := []Value{
		{Type: FieldString, Str: "alice"},
		{Type: FieldInt64, Int64: 30},
	}
	data, err := EncodeRow(schema, values, 1000)
	require.NoError(t, err)

	row, err := DecodeRow(schema, data)
	require.NoError(t, err)
	require.Equal(t, "alice", row.Values[0].Str)
	require.Equal(t, int64(30), row.Values[1].Int64)
}

func TestRowDefaultMaterializedWhenAbsent(t *testing.T) {
	def := Value{Type: FieldInt64, Int64: 99}
	schema := Schema{
		Version: 2,
		Fields: []FieldDesc{
			{Name: "score", Type: FieldInt64, Nullable: true, Default: &def},
		},
	}
	data, err := EncodeRow(schema, []Value{{Null: true}}, 0)
	require.NoError(t, err)
	row, err := DecodeRow(schema, data)
	require.NoError(t, err)
	require.Equal(t, int64(99), row.Values[0].Int64)
}

func TestRowListAndMapRoundTrip(t *testing.T) {
	schema := Schema{
		Version: 1,
		Fields: []FieldDesc{
			{Name: "tags", Type: FieldList},
			{Name: "attrs", Type: FieldMap},
		},
	}
	values := []Value{
		{Type: FieldList, List: []Value{
			{Type: FieldString, Str: "a"},
			{Type: FieldString, Str: "b"},
		}},
		{Type: FieldMap, Map: map[string]Value{
			"x": {Type: FieldInt64, Int64: 1},
		}},
	}
	data, err := EncodeRow(schema, values, 0)
	require.NoError(t, err)
	row, err := DecodeRow(schema, data)
	require.NoError(t, err)
	require.Len(t, row.Values[0].List, 2)
	require.Equal(t, "a", row.Values[0].List[0].Str)
	require.Equal(t, int64(1), row.Values[1].Map["x"].Int64)
}

func TestIsExpired(t *testing.T) {
	schema := Schema{Fields: []FieldDesc{
		{Name: "created", Type: FieldTimestamp, TTLSeconds: 60},
	}}
	row := Row{Values: []Value{{Type: FieldTimestamp, Int64: 1000}}}
	require.True(t, IsExpired(schema, row, 1100))
	require.False(t, IsExpired(schema, row, 1050))
}
