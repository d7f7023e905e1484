package read

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

type testSchema struct {
	tag    mutation.TagSchema
	edge   mutation.EdgeSchema
	partOf func(vertexID []byte) uint32
}

func (s testSchema) TagSchema(spaceID uint32, tagID int32) (mutation.TagSchema, error) { return s.tag, nil }
func (s testSchema) EdgeSchema(spaceID uint32, edgeType int32) (mutation.EdgeSchema, error) {
	return s.edge, nil
}
func (s testSchema) PartitionOf(spaceID uint32, vertexID []byte) (uint32, error) {
	return s.partOf(vertexID), nil
}

type testGroups map[uint32]*raftgroup.Group

func (g testGroups) Group(spaceID, partID uint32) (*raftgroup.Group, bool) {
	grp, ok := g[partID]
	return grp, ok
}

type testMutationEngines map[uint32]mutation.Engine

func (e testMutationEngines) Engine(spaceID, partID uint32) (mutation.Engine, bool) {
	en, ok := e[partID]
	return en, ok
}

type testReadEngines map[uint32]kvengine.Engine

func (e testReadEngines) Engine(spaceID, partID uint32) (kvengine.Engine, bool) {
	en, ok := e[partID]
	return en, ok
}

func openPartition(t *testing.T, partID uint32) (*kvengine.BoltEngine, *raftgroup.Group) {
	t.Helper()
	engine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: t.TempDir()}, 1, partID)
	require.NoError(t, err)

	sm := mutation.NewStateMachine(engine)
	g, err := raftgroup.Open(raftgroup.Config{
		SpaceID:  1,
		PartID:   partID,
		LocalID:  "node-a",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, sm)
	require.NoError(t, err)
	t.Cleanup(func() { g.Shutdown() })

	require.NoError(t, g.Bootstrap())
	require.Eventually(t, g.IsLeader, 5*time.Second, 20*time.Millisecond, "partition never elected a leader")
	return engine, g
}

func scoreSchema() codec.Schema {
	return codec.Schema{Version: 1, Fields: []codec.FieldDesc{
		{Name: "score", Type: codec.FieldInt64},
	}}
}

func TestReaderGetVertexProps(t *testing.T) {
	engine, group := openPartition(t, 1)

	tagSchema := mutation.TagSchema{
		SpaceID: 1, TagID: 10, VidLen: 8, Schema: scoreSchema(),
		Indexes: []mutation.IndexDef{{IndexID: 1, Fields: []mutation.IndexField{{Ordinal: 0}}}},
	}
	schema := testSchema{tag: tagSchema, partOf: func([]byte) uint32 { return 1 }}
	mp := mutation.NewPipeline(schema, testGroups{1: group}, testMutationEngines{1: engine}, func() int64 { return 1000 })

	vid := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, mp.AddVertices(1, []mutation.VertexMutation{{
		VertexID: vid, TagID: 10,
		Values: []codec.Value{{Type: codec.FieldInt64, Int64: 5}},
	}}))

	reader := NewReader(schema, testReadEngines{1: engine}, func() int64 { return 1000 })
	values, err := reader.GetVertexProps(1, vid, 10)
	require.NoError(t, err)
	require.Equal(t, int64(5), values[0].Int64)

	hits, err := reader.LookupTagIndex(1, 1, 10, 1, codec.EncodeIndexInt64(5), nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, vid, hits[0].VertexID)
}

func TestReaderGetNeighborsAndDstBySrc(t *testing.T) {
	srcEngine, srcGroup := openPartition(t, 1)
	dstEngine, dstGroup := openPartition(t, 2)

	edgeSchema := mutation.EdgeSchema{SpaceID: 1, EdgeType: 5, VidLen: 8, Schema: scoreSchema()}
	schema := testSchema{
		edge: edgeSchema,
		partOf: func(id []byte) uint32 {
			if id[0] == 1 {
				return 1
			}
			return 2
		},
	}
	mp := mutation.NewPipeline(schema, testGroups{1: srcGroup, 2: dstGroup}, testMutationEngines{1: srcEngine, 2: dstEngine}, func() int64 { return 2000 })

	src := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	dstA := []byte{2, 0, 0, 0, 0, 0, 0, 1}
	dstB := []byte{2, 0, 0, 0, 0, 0, 0, 2}

	require.NoError(t, mp.AddEdges(1, []mutation.EdgeUpsert{
		{ID: mutation.EdgeID{SrcID: src, DstID: dstA, EdgeType: 5, Ranking: 1}, Values: []codec.Value{{Type: codec.FieldInt64, Int64: 10}}},
		{ID: mutation.EdgeID{SrcID: src, DstID: dstB, EdgeType: 5, Ranking: 2}, Values: []codec.Value{{Type: codec.FieldInt64, Int64: 20}}},
	}))

	reader := NewReader(schema, testReadEngines{1: srcEngine, 2: dstEngine}, func() int64 { return 2000 })

	neighbors, err := reader.GetNeighbors(1, src, 5, -1, 0)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	// Natural key order is descending ranking: rank 2 (dstB) before rank 1 (dstA).
	require.Equal(t, dstB, neighbors[0].DstID)
	require.Equal(t, dstA, neighbors[1].DstID)

	top, err := reader.GetNeighbors(1, src, 5, 0, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, dstB, top[0].DstID) // score 20 beats score 10

	byDst, err := reader.GetDstBySrc(1, [][]byte{src}, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{dstA, dstB}, byDst[string(src)])

	props, err := reader.GetEdgeProps(1, src, 5, 2, dstB)
	require.NoError(t, err)
	require.Equal(t, int64(20), props[0].Int64)

	_, err = reader.GetEdgeProps(1, src, 5, 99, dstB)
	require.Error(t, err)
}
