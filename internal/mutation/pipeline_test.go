package mutation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

type fakeSchema struct {
	tag  TagSchema
	edge EdgeSchema
	// partOf maps a vertex id's first byte to a partition id, so tests
	// can route srcID/dstID to distinct partitions for paired edges.
	partOf func(vertexID []byte) uint32
}

func (f fakeSchema) TagSchema(spaceID uint32, tagID int32) (TagSchema, error)    { return f.tag, nil }
func (f fakeSchema) EdgeSchema(spaceID uint32, edgeType int32) (EdgeSchema, error) { return f.edge, nil }
func (f fakeSchema) PartitionOf(spaceID uint32, vertexID []byte) (uint32, error) {
	return f.partOf(vertexID), nil
}

type fakeGroups map[uint32]*raftgroup.Group

func (g fakeGroups) Group(spaceID, partID uint32) (*raftgroup.Group, bool) {
	grp, ok := g[partID]
	return grp, ok
}

type fakeEngines map[uint32]Engine

func (e fakeEngines) Engine(spaceID, partID uint32) (Engine, bool) {
	en, ok := e[partID]
	return en, ok
}

// openTestPartition wires one partition's BoltEngine + mutation
// StateMachine + single-node raftgroup.Group together, bootstrapped
// and leader-elected, ready for Pipeline to propose against.
func openTestPartition(t *testing.T, partID uint32) (*kvengine.BoltEngine, *raftgroup.Group) {
	t.Helper()
	engine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: t.TempDir()}, 1, partID)
	require.NoError(t, err)

	sm := NewStateMachine(engine)
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
	waitForGroupLeader(t, g)
	return engine, g
}

func waitForGroupLeader(t *testing.T, g *raftgroup.Group) {
	t.Helper()
	require.Eventually(t, g.IsLeader, 5*time.Second, 20*time.Millisecond, "partition never elected a leader")
}

func scoreSchema() codec.Schema {
	return codec.Schema{Version: 1, Fields: []codec.FieldDesc{
		{Name: "score", Type: codec.FieldInt64},
	}}
}

func TestPipelineAddVerticesWritesRowAndIndex(t *testing.T) {
	engine, group := openTestPartition(t, 1)

	tagSchema := TagSchema{
		SpaceID: 1, TagID: 10, VidLen: 8, Schema: scoreSchema(),
		Indexes: []IndexDef{{IndexID: 1, Fields: []IndexField{{Ordinal: 0}}}},
	}
	schema := fakeSchema{tag: tagSchema, partOf: func([]byte) uint32 { return 1 }}
	groups := fakeGroups{1: group}
	engines := fakeEngines{1: engine}

	clock := Clock(func() int64 { return 1000 })
	p := NewPipeline(schema, groups, engines, clock)

	vid := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	err := p.AddVertices(1, []VertexMutation{{
		VertexID: vid, TagID: 10,
		Values: []codec.Value{{Type: codec.FieldInt64, Int64: 5}},
	}})
	require.NoError(t, err)

	vkey, err := codec.VertexKey(1, vid, 8, 10, 1000)
	require.NoError(t, err)
	row, err := engine.Get(vkey)
	require.NoError(t, err)
	decoded, err := codec.DecodeRow(tagSchema.Schema, row)
	require.NoError(t, err)
	require.Equal(t, int64(5), decoded.Values[0].Int64)

	oldIdxVal := codec.EncodeIndexInt64(5)
	oldIdxKey, err := codec.TagIndexKey(1, 1, oldIdxVal, 0, vid, 8)
	require.NoError(t, err)
	_, err = engine.Get(oldIdxKey)
	require.NoError(t, err)

	// Update: same clock second, so version must bump past it; the old
	// index entry for score=5 must be retracted and a new one for
	// score=9 inserted.
	err = p.UpdateVertex(1, VertexMutation{
		VertexID: vid, TagID: 10,
		Values: []codec.Value{{Type: codec.FieldInt64, Int64: 9}},
	})
	require.NoError(t, err)

	_, err = engine.Get(oldIdxKey)
	require.Error(t, err)

	newIdxKey, err := codec.TagIndexKey(1, 1, codec.EncodeIndexInt64(9), 0, vid, 8)
	require.NoError(t, err)
	_, err = engine.Get(newIdxKey)
	require.NoError(t, err)
}

func TestPipelineDeleteVertexRetractsRowAndIndex(t *testing.T) {
	engine, group := openTestPartition(t, 1)

	tagSchema := TagSchema{
		SpaceID: 1, TagID: 10, VidLen: 8, Schema: scoreSchema(),
		Indexes: []IndexDef{{IndexID: 1, Fields: []IndexField{{Ordinal: 0}}}},
	}
	schema := fakeSchema{tag: tagSchema, partOf: func([]byte) uint32 { return 1 }}
	groups := fakeGroups{1: group}
	engines := fakeEngines{1: engine}
	p := NewPipeline(schema, groups, engines, func() int64 { return 1000 })

	vid := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, p.AddVertices(1, []VertexMutation{{
		VertexID: vid, TagID: 10,
		Values: []codec.Value{{Type: codec.FieldInt64, Int64: 5}},
	}}))

	require.NoError(t, p.DeleteVertex(1, vid, []int32{10}))

	vkey, err := codec.VertexKey(1, vid, 8, 10, 1000)
	require.NoError(t, err)
	_, err = engine.Get(vkey)
	require.Error(t, err)

	idxKey, err := codec.TagIndexKey(1, 1, codec.EncodeIndexInt64(5), 0, vid, 8)
	require.NoError(t, err)
	_, err = engine.Get(idxKey)
	require.Error(t, err)
}

func TestPipelineAddEdgesWritesBothDirections(t *testing.T) {
	srcEngine, srcGroup := openTestPartition(t, 1)
	dstEngine, dstGroup := openTestPartition(t, 2)

	edgeSchema := EdgeSchema{SpaceID: 1, EdgeType: 5, VidLen: 8, Schema: scoreSchema()}
	schema := fakeSchema{
		edge: edgeSchema,
		partOf: func(id []byte) uint32 {
			if id[0] == 1 {
				return 1
			}
			return 2
		},
	}
	groups := fakeGroups{1: srcGroup, 2: dstGroup}
	engines := fakeEngines{1: srcEngine, 2: dstEngine}
	p := NewPipeline(schema, groups, engines, func() int64 { return 2000 })

	src := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	dst := []byte{2, 0, 0, 0, 0, 0, 0, 0}
	err := p.AddEdges(1, []EdgeUpsert{{
		ID:     EdgeID{SrcID: src, DstID: dst, EdgeType: 5, Ranking: 0},
		Values: []codec.Value{{Type: codec.FieldInt64, Int64: 42}},
	}})
	require.NoError(t, err)

	outKey, err := codec.EdgeKey(1, src, 5, 0, dst, 8, 2000)
	require.NoError(t, err)
	_, err = srcEngine.Get(outKey)
	require.NoError(t, err)

	inKey, err := codec.EdgeKey(2, src, -5, 0, dst, 8, 2000)
	require.NoError(t, err)
	_, err = dstEngine.Get(inKey)
	require.NoError(t, err)
}
