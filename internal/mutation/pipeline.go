package mutation

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

// Pipeline is the storage write path: validate against schema, resolve
// an entity's current row (to diff its index entries), assemble an
// apply plan, and commit it through the owning partition's Raft group.
//
// Grounded on pkg/manager/manager.go's Apply(cmd)->raft.Apply(...)
// ->future.Response() flow, here fronted by the schema/partition
// resolution a single-cluster manager never needed.
type Pipeline struct {
	schema  SchemaSource
	groups  GroupLocator
	engines EngineLocator
	clock   Clock
}

// NewPipeline builds a Pipeline over the given schema/partition/engine
// resolvers.
func NewPipeline(schema SchemaSource, groups GroupLocator, engines EngineLocator, clock Clock) *Pipeline {
	return &Pipeline{schema: schema, groups: groups, engines: engines, clock: clock}
}

// AddVertices upserts one tag row per mutation. Each call creates a new
// MVCC version of the (vertex,tag); it never overwrites a prior
// version in place, per spec.md §4.1's version-chain layout.
func (p *Pipeline) AddVertices(spaceID uint32, muts []VertexMutation) error {
	for _, m := range muts {
		if err := p.upsertVertex(spaceID, m); err != nil {
			return err
		}
	}
	return nil
}

// UpdateVertex is AddVertices for a single tag row; "update" and
// "insert" are the same operation once every write is a new version.
func (p *Pipeline) UpdateVertex(spaceID uint32, m VertexMutation) error {
	return p.upsertVertex(spaceID, m)
}

func (p *Pipeline) upsertVertex(spaceID uint32, m VertexMutation) error {
	sch, err := p.schema.TagSchema(spaceID, m.TagID)
	if err != nil {
		return err
	}
	partID, err := p.schema.PartitionOf(spaceID, m.VertexID)
	if err != nil {
		return err
	}
	group, ok := p.groups.Group(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}
	engine, ok := p.engines.Engine(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}

	oldValues, oldVersion, err := resolveCurrentTagRow(engine, partID, sch, m.VertexID)
	if err != nil {
		return err
	}
	newVersion := nextVersion(oldVersion, p.clock())

	rowBytes, err := codec.EncodeRow(sch.Schema, m.Values, p.clock())
	if err != nil {
		return err
	}
	vkey, err := codec.VertexKey(partID, m.VertexID, sch.VidLen, m.TagID, newVersion)
	if err != nil {
		return err
	}

	oldIdx, err := tagIndexKeys(partID, sch, m.VertexID, oldValues)
	if err != nil {
		return err
	}
	newIdx, err := tagIndexKeys(partID, sch, m.VertexID, m.Values)
	if err != nil {
		return err
	}

	steps := append([]step{{Kind: kindPut, Key: vkey, Value: rowBytes}}, diffIndexSteps(oldIdx, newIdx)...)
	steps = append(steps, step{Kind: kindPut, Key: tagVersionPointerKey(partID, m.VertexID, m.TagID), Value: encodeVersion(newVersion)})

	return p.propose(group, "", steps)
}

// DeleteVertex removes the current version of the named tag rows (and
// their index entries) for one vertex. Older versions already written
// are left for the compaction sweep rather than hunted down here,
// since Engine only exposes point reads.
func (p *Pipeline) DeleteVertex(spaceID uint32, vertexID []byte, tagIDs []int32) error {
	for _, tagID := range tagIDs {
		if err := p.deleteVertexTag(spaceID, vertexID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) deleteVertexTag(spaceID uint32, vertexID []byte, tagID int32) error {
	sch, err := p.schema.TagSchema(spaceID, tagID)
	if err != nil {
		return err
	}
	partID, err := p.schema.PartitionOf(spaceID, vertexID)
	if err != nil {
		return err
	}
	group, ok := p.groups.Group(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}
	engine, ok := p.engines.Engine(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}

	oldValues, oldVersion, err := resolveCurrentTagRow(engine, partID, sch, vertexID)
	if err != nil {
		return err
	}
	if oldValues == nil {
		return nil // nothing to delete
	}

	vkey, err := codec.VertexKey(partID, vertexID, sch.VidLen, tagID, oldVersion)
	if err != nil {
		return err
	}
	oldIdx, err := tagIndexKeys(partID, sch, vertexID, oldValues)
	if err != nil {
		return err
	}

	steps := []step{{Kind: kindDelete, Key: vkey}}
	for _, k := range oldIdx {
		steps = append(steps, step{Kind: kindDelete, Key: k})
	}
	steps = append(steps, step{Kind: kindDelete, Key: tagVersionPointerKey(partID, vertexID, tagID)})

	return p.propose(group, "", steps)
}

// AddEdges upserts both halves of each edge (the out-record on
// partitionOf(src), the in-record on partitionOf(dst)) concurrently.
// The two proposals are independent Raft entries; spec.md resolves
// the paired-write Open Question in favor of this async reconciliation
// over a cross-partition 2PC.
func (p *Pipeline) AddEdges(spaceID uint32, edges []EdgeUpsert) error {
	g, _ := errgroup.WithContext(context.Background())
	for _, e := range edges {
		e := e
		g.Go(func() error { return p.upsertEdgeDirection(spaceID, e, false) })
		g.Go(func() error { return p.upsertEdgeDirection(spaceID, e, true) })
	}
	return g.Wait()
}

// UpdateEdge is AddEdges for a single edge.
func (p *Pipeline) UpdateEdge(spaceID uint32, e EdgeUpsert) error {
	return p.AddEdges(spaceID, []EdgeUpsert{e})
}

func (p *Pipeline) upsertEdgeDirection(spaceID uint32, e EdgeUpsert, inbound bool) error {
	edgeType := e.ID.EdgeType
	anchor := e.ID.SrcID
	if inbound {
		edgeType = -edgeType
		anchor = e.ID.DstID
	}

	sch, err := p.schema.EdgeSchema(spaceID, e.ID.EdgeType)
	if err != nil {
		return err
	}
	partID, err := p.schema.PartitionOf(spaceID, anchor)
	if err != nil {
		return err
	}
	group, ok := p.groups.Group(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}
	engine, ok := p.engines.Engine(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}

	id := EdgeID{SrcID: e.ID.SrcID, DstID: e.ID.DstID, EdgeType: edgeType, Ranking: e.ID.Ranking}
	oldValues, oldVersion, err := resolveCurrentEdgeRow(engine, partID, sch, id)
	if err != nil {
		return err
	}
	newVersion := nextVersion(oldVersion, p.clock())

	rowBytes, err := codec.EncodeRow(sch.Schema, e.Values, p.clock())
	if err != nil {
		return err
	}
	ekey, err := codec.EdgeKey(partID, e.ID.SrcID, edgeType, e.ID.Ranking, e.ID.DstID, sch.VidLen, newVersion)
	if err != nil {
		return err
	}

	oldIdx, err := edgeIndexKeys(partID, sch, id, oldValues)
	if err != nil {
		return err
	}
	newIdx, err := edgeIndexKeys(partID, sch, id, e.Values)
	if err != nil {
		return err
	}

	steps := append([]step{{Kind: kindPut, Key: ekey, Value: rowBytes}}, diffIndexSteps(oldIdx, newIdx)...)
	steps = append(steps, step{Kind: kindPut, Key: edgeVersionPointerKey(partID, id), Value: encodeVersion(newVersion)})

	idemKey := fmt.Sprintf("edge:%d:%x:%d:%x:%d", edgeType, e.ID.SrcID, e.ID.Ranking, e.ID.DstID, newVersion)
	return p.propose(group, idemKey, steps)
}

// DeleteEdges removes both halves of each named edge instance.
func (p *Pipeline) DeleteEdges(spaceID uint32, ids []EdgeID) error {
	g, _ := errgroup.WithContext(context.Background())
	for _, id := range ids {
		id := id
		g.Go(func() error { return p.deleteEdgeDirection(spaceID, id, false) })
		g.Go(func() error { return p.deleteEdgeDirection(spaceID, id, true) })
	}
	return g.Wait()
}

func (p *Pipeline) deleteEdgeDirection(spaceID uint32, id EdgeID, inbound bool) error {
	edgeType := id.EdgeType
	anchor := id.SrcID
	if inbound {
		edgeType = -edgeType
		anchor = id.DstID
	}

	sch, err := p.schema.EdgeSchema(spaceID, id.EdgeType)
	if err != nil {
		return err
	}
	partID, err := p.schema.PartitionOf(spaceID, anchor)
	if err != nil {
		return err
	}
	group, ok := p.groups.Group(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}
	engine, ok := p.engines.Engine(spaceID, partID)
	if !ok {
		return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
	}

	dirID := EdgeID{SrcID: id.SrcID, DstID: id.DstID, EdgeType: edgeType, Ranking: id.Ranking}
	oldValues, oldVersion, err := resolveCurrentEdgeRow(engine, partID, sch, dirID)
	if err != nil {
		return err
	}
	if oldValues == nil {
		return nil
	}

	ekey, err := codec.EdgeKey(partID, id.SrcID, edgeType, id.Ranking, id.DstID, sch.VidLen, oldVersion)
	if err != nil {
		return err
	}
	oldIdx, err := edgeIndexKeys(partID, sch, dirID, oldValues)
	if err != nil {
		return err
	}

	steps := []step{{Kind: kindDelete, Key: ekey}}
	for _, k := range oldIdx {
		steps = append(steps, step{Kind: kindDelete, Key: k})
	}
	steps = append(steps, step{Kind: kindDelete, Key: edgeVersionPointerKey(partID, dirID)})

	return p.propose(group, "", steps)
}

func (p *Pipeline) propose(group *raftgroup.Group, idemKey string, steps []step) error {
	encoded, err := encodePlan(plan{IdempotencyKey: idemKey, Steps: steps})
	if err != nil {
		return err
	}
	resp, err := group.Apply(encoded)
	if err != nil {
		return err
	}
	if ar, ok := resp.(ApplyResult); ok && ar.Err != nil {
		return ar.Err
	}
	return nil
}

// resolveCurrentTagRow reads the (vertex,tag)'s latest version pointer
// and, if present, the row it names, returning (nil, 0, nil) if no
// version has ever been written.
func resolveCurrentTagRow(engine Engine, partID uint32, sch TagSchema, vertexID []byte) ([]codec.Value, uint64, error) {
	ptrKey := tagVersionPointerKey(partID, vertexID, sch.TagID)
	verBytes, err := engine.Get(ptrKey)
	if err != nil {
		if errs.CodeOf(err) == errs.ItemNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	version := decodeVersion(verBytes)

	key, err := codec.VertexKey(partID, vertexID, sch.VidLen, sch.TagID, version)
	if err != nil {
		return nil, 0, err
	}
	rowBytes, err := engine.Get(key)
	if err != nil {
		if errs.CodeOf(err) == errs.ItemNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	row, err := codec.DecodeRow(sch.Schema, rowBytes)
	if err != nil {
		return nil, 0, err
	}
	return row.Values, version, nil
}

func resolveCurrentEdgeRow(engine Engine, partID uint32, sch EdgeSchema, id EdgeID) ([]codec.Value, uint64, error) {
	ptrKey := edgeVersionPointerKey(partID, id)
	verBytes, err := engine.Get(ptrKey)
	if err != nil {
		if errs.CodeOf(err) == errs.ItemNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	version := decodeVersion(verBytes)

	key, err := codec.EdgeKey(partID, id.SrcID, id.EdgeType, id.Ranking, id.DstID, sch.VidLen, version)
	if err != nil {
		return nil, 0, err
	}
	rowBytes, err := engine.Get(key)
	if err != nil {
		if errs.CodeOf(err) == errs.ItemNotFound {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	row, err := codec.DecodeRow(sch.Schema, rowBytes)
	if err != nil {
		return nil, 0, err
	}
	return row.Values, version, nil
}

// tagVersionPointerKey/edgeVersionPointerKey are system keys (spec.md's
// reserved '_' prefix) naming the version currently considered "live"
// for one (vertex,tag) or one directed edge record, so the pipeline can
// find it with a point Get instead of a prefix scan it has no access to.
func tagVersionPointerKey(partID uint32, vertexID []byte, tagID int32) []byte {
	payload := make([]byte, 1+len(vertexID)+4)
	payload[0] = 'T'
	copy(payload[1:], vertexID)
	binary.BigEndian.PutUint32(payload[1+len(vertexID):], uint32(tagID))
	return codec.SystemKey(partID, payload)
}

func edgeVersionPointerKey(partID uint32, id EdgeID) []byte {
	payload := make([]byte, 1+len(id.SrcID)+4+8+len(id.DstID))
	payload[0] = 'E'
	off := 1
	copy(payload[off:], id.SrcID)
	off += len(id.SrcID)
	binary.BigEndian.PutUint32(payload[off:], uint32(id.EdgeType))
	off += 4
	binary.BigEndian.PutUint64(payload[off:], uint64(id.Ranking))
	off += 8
	copy(payload[off:], id.DstID)
	return codec.SystemKey(partID, payload)
}

func encodeVersion(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeVersion(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// nextVersion assigns a new MVCC version strictly greater than the
// prior one, falling back to old+1 when the clock hasn't advanced
// (two writes to the same row within the same wall-clock second).
func nextVersion(old uint64, now int64) uint64 {
	n := uint64(now)
	if n > old {
		return n
	}
	return old + 1
}
