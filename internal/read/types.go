// Package read implements the storage read path of spec.md §4.5:
// point vertex/edge property lookup, bounded top-K neighbor scans,
// secondary-index lookups with pushed-down range hints, and dst-by-src
// dedup fan-out across one or many source vertices. Reads never go
// through Raft — a caller on the partition's leader serves a strong
// read straight from its own kv engine, and any replica may serve a
// stale one — mirroring pkg/manager/manager.go's read accessors, which
// likewise hit the local BoltDB store directly rather than proposing
// a no-op command through raft.Apply.
package read

import (
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/mutation"
)

// SchemaSource is the read-only schema contract the read pipeline
// needs; internal/schema's cache implements both this and
// mutation.SchemaSource with the same underlying method set.
type SchemaSource = mutation.SchemaSource

// EngineLocator resolves the local kv engine for one partition. Unlike
// mutation.EngineLocator, the read pipeline needs the full
// kvengine.Engine (Prefix/Range/MultiGet), not just point Get.
type EngineLocator interface {
	Engine(spaceID, partID uint32) (kvengine.Engine, bool)
}

// Clock returns the current unix time in seconds, used to evaluate
// TTL expiry against a row's write timestamp.
type Clock func() int64

// Reader is the read pipeline over one host's locally-owned
// partitions.
type Reader struct {
	schema  SchemaSource
	engines EngineLocator
	clock   Clock
}

// NewReader builds a Reader over the given schema/engine resolvers.
func NewReader(schema SchemaSource, engines EngineLocator, clock Clock) *Reader {
	return &Reader{schema: schema, engines: engines, clock: clock}
}

func (r *Reader) engineFor(spaceID, partID uint32) (kvengine.Engine, error) {
	engine, ok := r.engines.Engine(spaceID, partID)
	if !ok {
		return nil, notFoundErr(spaceID, partID)
	}
	return engine, nil
}
