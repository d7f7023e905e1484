// Package mutation implements the storage write path of spec.md §4.4:
// validate against schema, resolve the entity's current row, assemble
// a partition-scoped apply plan (data row + index deltas), commit it
// through the owning partition's Raft group, and replay it into the
// kv engine. Paired edges are proposed to their two owning partitions
// independently and reconciled asynchronously rather than via 2PC,
// per spec.md's own resolution of that Open Question.
//
// Grounded on pkg/manager/fsm.go's Apply command-switch shape
// (generalized from whole-struct JSON commands to codec'd KV batches)
// and pkg/manager/manager.go's Apply(cmd)->raft.Apply->future.Response()
// propagation pattern, reused here as Group.Apply.
package mutation

import (
	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

// VertexMutation is one tag row to upsert on a vertex ID.
type VertexMutation struct {
	VertexID []byte
	TagID    int32
	Values   []codec.Value
}

// EdgeID identifies one edge instance; EdgeType is always stored in
// its positive (out-record) orientation here regardless of which
// direction the caller is mutating.
type EdgeID struct {
	SrcID    []byte
	DstID    []byte
	EdgeType int32
	Ranking  int64
}

// EdgeUpsert is one edge write request.
type EdgeUpsert struct {
	ID     EdgeID
	Values []codec.Value
}

// TagSchema describes one tag version's field layout and its indexes,
// the minimum internal/schema must supply for the mutation pipeline to
// encode rows and maintain indexes without knowing anything about
// spaces beyond this.
type TagSchema struct {
	SpaceID  uint32
	TagID    int32
	VidLen   int
	Schema   codec.Schema
	Indexes  []IndexDef
}

// EdgeSchema is the edge-type analogue of TagSchema.
type EdgeSchema struct {
	SpaceID  uint32
	EdgeType int32
	VidLen   int
	Schema   codec.Schema
	Indexes  []IndexDef
}

// IndexField is one column of an index: its ordinal position into the
// owning Schema.Fields, and (for string columns only) the fixed width
// its order-preserving encoding is padded/truncated to.
type IndexField struct {
	Ordinal     int
	StringWidth int
}

// IndexDef names an index and the field positions (into Schema.Fields)
// it is built over, in declared order.
type IndexDef struct {
	IndexID uint32
	Fields  []IndexField
	Unique  bool
}

// SchemaSource is the read-only schema contract the mutation pipeline
// needs; internal/schema's cache implements it.
type SchemaSource interface {
	TagSchema(spaceID uint32, tagID int32) (TagSchema, error)
	EdgeSchema(spaceID uint32, edgeType int32) (EdgeSchema, error)
	PartitionOf(spaceID uint32, vertexID []byte) (uint32, error)
}

// GroupLocator resolves the Raft replication group backing one
// partition of one space, if this host currently owns (a replica of)
// it. Partitions this host does not own are the RPC dispatcher's
// problem, not the mutation pipeline's.
type GroupLocator interface {
	Group(spaceID, partID uint32) (*raftgroup.Group, bool)
}

// Engine exposes the subset of kvengine.Engine the pipeline reads from
// directly to resolve an entity's current row before assembling an
// apply plan (index maintenance needs the old value to retract stale
// index entries).
type Engine interface {
	Get(key []byte) ([]byte, error)
}

// EngineLocator resolves the local kv engine for one partition, used
// for the pre-propose read. On the leader this is the same engine the
// FSM replays into.
type EngineLocator interface {
	Engine(spaceID, partID uint32) (Engine, bool)
}

// Clock returns the current unix time in seconds, used to stamp rows
// and evaluate TTL. Abstracted so tests can control it without
// depending on wall-clock time.
type Clock func() int64
