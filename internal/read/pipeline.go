package read

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/errs"
)

func notFoundErr(spaceID, partID uint32) error {
	return errs.New(errs.PartNotFound, nil).WithHint(fmt.Sprintf("space %d part %d", spaceID, partID))
}

// GetVertexProps returns the current (newest, non-expired) version of
// one tag row, or errs.TagNotFound if the vertex carries no live row
// for tagID.
func (r *Reader) GetVertexProps(spaceID uint32, vertexID []byte, tagID int32) ([]codec.Value, error) {
	sch, err := r.schema.TagSchema(spaceID, tagID)
	if err != nil {
		return nil, err
	}
	partID, err := r.schema.PartitionOf(spaceID, vertexID)
	if err != nil {
		return nil, err
	}
	engine, err := r.engineFor(spaceID, partID)
	if err != nil {
		return nil, err
	}

	prefix, err := codec.VertexTagPrefix(partID, vertexID, sch.VidLen, tagID)
	if err != nil {
		return nil, err
	}
	it, err := engine.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	ctx := context.Background()
	if !it.Next(ctx) {
		return nil, errs.New(errs.TagNotFound, nil)
	}
	item := it.Item()
	row, err := codec.DecodeRow(sch.Schema, item.Value)
	if err != nil {
		return nil, err
	}
	if codec.IsExpired(sch.Schema, row, r.clock()) {
		return nil, errs.New(errs.TagNotFound, nil).WithHint("expired")
	}
	return row.Values, nil
}

// GetEdgeProps returns the current (newest, non-expired) version of
// one edge's property row, identified by its full direction+ranking+
// destination identity, or errs.EdgeNotFound if no live version
// exists.
func (r *Reader) GetEdgeProps(spaceID uint32, srcID []byte, edgeType int32, ranking int64, dstID []byte) ([]codec.Value, error) {
	sch, err := r.schema.EdgeSchema(spaceID, edgeType)
	if err != nil {
		return nil, err
	}
	partID, err := r.schema.PartitionOf(spaceID, srcID)
	if err != nil {
		return nil, err
	}
	engine, err := r.engineFor(spaceID, partID)
	if err != nil {
		return nil, err
	}

	// Every version of this exact (src,type,ranking,dst) sorts newest
	// first, the same inverted-version ordering GetNeighbors relies
	// on; dropping EdgeKey's trailing ~version suffix turns it into a
	// prefix scan over just that edge's version history.
	full, err := codec.EdgeKey(partID, srcID, edgeType, ranking, dstID, sch.VidLen, 0)
	if err != nil {
		return nil, err
	}
	prefix := full[:len(full)-8]

	it, err := engine.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	ctx := context.Background()
	if !it.Next(ctx) {
		return nil, errs.New(errs.EdgeNotFound, nil)
	}
	item := it.Item()
	row, err := codec.DecodeRow(sch.Schema, item.Value)
	if err != nil {
		return nil, err
	}
	if codec.IsExpired(sch.Schema, row, r.clock()) {
		return nil, errs.New(errs.EdgeNotFound, nil).WithHint("expired")
	}
	return row.Values, nil
}

// NeighborResult is one edge returned by GetNeighbors.
type NeighborResult struct {
	DstID   []byte
	Ranking int64
	Values  []codec.Value
}

// GetNeighbors scans every live out-edge of edgeType from srcID. When
// orderByField is non-negative the result is the top `limit` edges by
// that field's value (descending), tracked with a bounded heap rather
// than a full sort; when negative, the kv engine's own key order
// (descending ranking) is used directly and the scan stops after
// `limit` results, never materializing the rest.
func (r *Reader) GetNeighbors(spaceID uint32, srcID []byte, edgeType int32, orderByField, limit int) ([]NeighborResult, error) {
	sch, err := r.schema.EdgeSchema(spaceID, edgeType)
	if err != nil {
		return nil, err
	}
	partID, err := r.schema.PartitionOf(spaceID, srcID)
	if err != nil {
		return nil, err
	}
	engine, err := r.engineFor(spaceID, partID)
	if err != nil {
		return nil, err
	}

	prefix, err := codec.EdgeTypePrefix(partID, srcID, edgeType, sch.VidLen)
	if err != nil {
		return nil, err
	}
	it, err := engine.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	ctx := context.Background()
	now := r.clock()

	var lastRanking int64
	var lastDst []byte
	haveLast := false

	var ordered []NeighborResult
	tracker := newTopKTracker(limit)

	for it.Next(ctx) {
		item := it.Item()
		key, err := codec.DecodeEdgeKey(item.Key, sch.VidLen)
		if err != nil {
			return nil, err
		}
		// Multiple versions of the same (ranking,dst) sort adjacently,
		// newest first; keep only the first (newest) occurrence.
		if haveLast && key.Ranking == lastRanking && bytes.Equal(key.DstID, lastDst) {
			continue
		}
		haveLast, lastRanking, lastDst = true, key.Ranking, key.DstID

		row, err := codec.DecodeRow(sch.Schema, item.Value)
		if err != nil {
			return nil, err
		}
		if codec.IsExpired(sch.Schema, row, now) {
			continue
		}

		if orderByField < 0 {
			ordered = append(ordered, NeighborResult{DstID: key.DstID, Ranking: key.Ranking, Values: row.Values})
			if limit > 0 && len(ordered) >= limit {
				break
			}
			continue
		}

		if orderByField >= len(row.Values) {
			return nil, errs.Newf(errs.SchemaMismatch, "orderByField %d out of range", orderByField)
		}
		score, err := numericScore(row.Values[orderByField])
		if err != nil {
			return nil, err
		}
		tracker.Offer(neighborScore{DstID: key.DstID, Ranking: key.Ranking, Value: score, Values: row.Values})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if orderByField < 0 {
		return ordered, nil
	}
	scored := tracker.Results()
	out := make([]NeighborResult, len(scored))
	for i, s := range scored {
		out[i] = NeighborResult{DstID: s.DstID, Ranking: s.Ranking, Values: s.Values}
	}
	return out, nil
}

func numericScore(v codec.Value) (float64, error) {
	if v.Null {
		return 0, nil
	}
	switch v.Type {
	case codec.FieldInt64, codec.FieldDateTime, codec.FieldTimestamp, codec.FieldDate:
		return float64(v.Int64), nil
	case codec.FieldDouble:
		return v.Double, nil
	default:
		return 0, errs.Newf(errs.WrongType, "field type %d is not orderable", v.Type)
	}
}

// GetDstBySrc resolves, for every srcID, the distinct destination
// vertex ids reachable over edgeType, fanning the per-source scans out
// concurrently since each srcID may live on a different partition.
func (r *Reader) GetDstBySrc(spaceID uint32, srcIDs [][]byte, edgeType int32) (map[string][][]byte, error) {
	results := make([][][]byte, len(srcIDs))
	g, _ := errgroup.WithContext(context.Background())
	for i, src := range srcIDs {
		i, src := i, src
		g.Go(func() error {
			neighbors, err := r.GetNeighbors(spaceID, src, edgeType, -1, 0)
			if err != nil {
				return err
			}
			dsts := make([][]byte, len(neighbors))
			for j, n := range neighbors {
				dsts[j] = n.DstID
			}
			results[i] = dsts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][][]byte, len(srcIDs))
	for i, src := range srcIDs {
		out[string(src)] = results[i]
	}
	return out, nil
}

// IndexHit is one matching entry from a secondary-index lookup.
type IndexHit struct {
	VertexID []byte // tag indexes only
	SrcID    []byte // edge indexes only
	DstID    []byte
	Ranking  int64
}

// LookupTagIndex scans indexID's key range, on one partition, for
// entries whose order-preserving value prefix equals valuePrefix (an
// equality probe when valuePrefix is the full encoded column tuple, a
// range probe when it is a leading subset), applying an optional
// residual filter for predicates the index encoding can't express
// directly. An index is not keyed by a single entity id the way
// point/neighbor reads are, so spec.md's LookupIndex fans this out
// across every partition of the space; that fan-out is a
// query-planning concern internal/schema's catalog owns, and callers
// loop over PartitionsOf(spaceID) themselves, calling this once per
// partition.
func (r *Reader) LookupTagIndex(spaceID, partID uint32, tagID int32, indexID uint32, valuePrefix []byte, residual func(vertexID []byte) bool) ([]IndexHit, error) {
	sch, err := r.schema.TagSchema(spaceID, tagID)
	if err != nil {
		return nil, err
	}
	engine, err := r.engineFor(spaceID, partID)
	if err != nil {
		return nil, err
	}

	prefix := append(codec.IndexPrefix(partID, int32(indexID)), valuePrefix...)
	it, err := engine.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var hits []IndexHit
	ctx := context.Background()
	for it.Next(ctx) {
		key := it.Item().Key
		vid := key[len(key)-sch.VidLen:]
		if residual != nil && !residual(vid) {
			continue
		}
		hits = append(hits, IndexHit{VertexID: append([]byte(nil), vid...)})
	}
	return hits, it.Err()
}

// LookupEdgeIndex is the edge analogue of LookupTagIndex.
func (r *Reader) LookupEdgeIndex(spaceID, partID uint32, edgeType int32, indexID uint32, valuePrefix []byte, residual func(src, dst []byte, ranking int64) bool) ([]IndexHit, error) {
	sch, err := r.schema.EdgeSchema(spaceID, edgeType)
	if err != nil {
		return nil, err
	}
	engine, err := r.engineFor(spaceID, partID)
	if err != nil {
		return nil, err
	}

	prefix := append(codec.IndexPrefix(partID, int32(indexID)), valuePrefix...)
	it, err := engine.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var hits []IndexHit
	ctx := context.Background()
	vidLen := sch.VidLen
	for it.Next(ctx) {
		key := it.Item().Key
		if len(key) < 2*vidLen+8 {
			continue
		}
		tail := key[len(key)-(2*vidLen+8):]
		src := tail[:vidLen]
		ranking := int64(bigEndianUint64(tail[vidLen : vidLen+8]))
		dst := tail[vidLen+8:]
		if residual != nil && !residual(src, dst, ranking) {
			continue
		}
		hits = append(hits, IndexHit{
			SrcID:   append([]byte(nil), src...),
			DstID:   append([]byte(nil), dst...),
			Ranking: ranking,
		})
	}
	return hits, it.Err()
}

func bigEndianUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
