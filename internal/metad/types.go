// Package metad implements the write side of spec.md §4.8's metadata
// service contract: a single strongly-consistent Raft group holding
// the catalog of spaces, tag/edge schemas, partition-to-host
// assignments, registered hosts, and leased Snowflake WorkerIds.
//
// The storage core never writes here directly (per spec.md §4.8,
// "the storage core relies only on the read API and the long-poll
// notification stream; it never performs metadata writes itself") —
// internal/metaclient is the read-only consumer internal/schema.Cache
// is built on. The write methods on Service exist for whatever drives
// the catalog (operator tooling, cmd/metad's bootstrap path, tests).
//
// Grounded on pkg/manager/manager.go (one Raft group guarding a BoltDB-
// backed catalog of cluster-wide state) and pkg/manager/fsm.go's
// command-replay shape, generalized from a JSON Command{Op,Data}
// switch over cluster entities to the same gob step/plan encoding
// internal/mutation uses, so the FSM replays raw kv steps without any
// catalog-shape knowledge.
package metad

import "github.com/cuemby/nebulastore/internal/mutation"

// SpaceDef is one graph space's routing parameters, as registered
// with the metadata service.
type SpaceDef struct {
	SpaceID        uint32
	Name           string
	VidLen         int
	PartitionCount int
	ReplicaFactor  int
}

// PartitionAssignment names the current leader hint and replica set
// the metadata service has recorded for one partition.
type PartitionAssignment struct {
	SpaceID uint32
	PartID  uint32
	Leader  string
	Peers   []string
}

// HostDef is one registered storage host.
type HostDef struct {
	Addr   string
	Status string // "online", "offline"
}

// Catalog is a full snapshot of the metadata service's state, the
// source internal/metaclient converts into schema.Catalog for
// consumption by internal/schema.Cache.
type Catalog struct {
	Version      int64
	Spaces       map[uint32]SpaceDef
	Tags         map[TagKey]mutation.TagSchema
	Edges        map[EdgeKey]mutation.EdgeSchema
	Partitions   map[PartKey]PartitionAssignment
	Hosts        map[string]HostDef
	WorkerLeases map[string]uint32 // host addr -> leased 13-bit worker id
}

// TagKey, EdgeKey and PartKey are exported (unlike internal/schema's
// private equivalents) since cmd/metad and internal/metaclient both
// need to construct them when translating between the two catalog
// shapes.
type TagKey struct {
	SpaceID uint32
	TagID   int32
}

type EdgeKey struct {
	SpaceID  uint32
	EdgeType int32
}

type PartKey struct {
	SpaceID uint32
	PartID  uint32
}

func emptyCatalog() Catalog {
	return Catalog{
		Spaces:       map[uint32]SpaceDef{},
		Tags:         map[TagKey]mutation.TagSchema{},
		Edges:        map[EdgeKey]mutation.EdgeSchema{},
		Partitions:   map[PartKey]PartitionAssignment{},
		Hosts:        map[string]HostDef{},
		WorkerLeases: map[string]uint32{},
	}
}
