// Package schema implements the partition-routing and schema cache of
// spec.md §4.2: the per-space partition count and tag/edge schema
// catalog every storage host needs to encode keys and rows, refreshed
// from the metadata service and kept current via serial
// per-(space,partition) change notification.
//
// Grounded on pkg/manager/manager.go's cached GetRaftStats/LeaderAddr
// read pattern (a mutex-guarded in-memory copy, refreshed out of band
// rather than round-tripping to the source of truth on every read) and
// pkg/events/events.go's Broker, generalized from a single
// broadcast-to-everyone channel to serial per-(space,partition)
// delivery order.
package schema

import (
	"context"

	"github.com/cuemby/nebulastore/internal/mutation"
)

// SpaceMeta is one graph space's routing parameters.
type SpaceMeta struct {
	SpaceID        uint32
	VidLen         int
	PartitionCount int
}

// PartitionMeta names the current leader hint and replica set for one
// partition, as last reported by the metadata service.
type PartitionMeta struct {
	SpaceID uint32
	PartID  uint32
	Leader  string
	Peers   []string
}

// Catalog is one full snapshot of everything the schema cache tracks.
type Catalog struct {
	Version    int64
	Spaces     map[uint32]SpaceMeta
	Tags       map[tagKey]mutation.TagSchema
	Edges      map[edgeKey]mutation.EdgeSchema
	Partitions map[partKey]PartitionMeta
}

type tagKey struct {
	SpaceID uint32
	TagID   int32
}

type edgeKey struct {
	SpaceID  uint32
	EdgeType int32
}

type partKey struct {
	SpaceID uint32
	PartID  uint32
}

// NewCatalog builds an empty Catalog ready for the Put* methods below.
// internal/metaclient uses this to translate metad.Catalog into the
// shape schema.Cache consumes without needing to name this package's
// unexported key types itself.
func NewCatalog(version int64) Catalog {
	return Catalog{
		Version:    version,
		Spaces:     map[uint32]SpaceMeta{},
		Tags:       map[tagKey]mutation.TagSchema{},
		Edges:      map[edgeKey]mutation.EdgeSchema{},
		Partitions: map[partKey]PartitionMeta{},
	}
}

// PutSpace registers one space's routing parameters.
func (c Catalog) PutSpace(m SpaceMeta) { c.Spaces[m.SpaceID] = m }

// PutTag registers one tag's schema.
func (c Catalog) PutTag(s mutation.TagSchema) {
	c.Tags[tagKey{SpaceID: s.SpaceID, TagID: s.TagID}] = s
}

// PutEdge registers one edge type's schema.
func (c Catalog) PutEdge(s mutation.EdgeSchema) {
	c.Edges[edgeKey{SpaceID: s.SpaceID, EdgeType: s.EdgeType}] = s
}

// PutPartition registers one partition's leader/replica hint.
func (c Catalog) PutPartition(m PartitionMeta) {
	c.Partitions[partKey{SpaceID: m.SpaceID, PartID: m.PartID}] = m
}

// MetaClient is the read contract internal/metaclient provides: fetch
// the full catalog, or block until it has changed past sinceVersion
// (a long poll) so the cache only wakes up when there is something new
// to pull.
type MetaClient interface {
	FetchCatalog(ctx context.Context) (Catalog, error)
	WatchCatalog(ctx context.Context, sinceVersion int64) (Catalog, error)
}
