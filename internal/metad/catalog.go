package metad

import (
	"context"
	"encoding/binary"

	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/mutation"
)

// decodeCatalog scans the metadata group's entire kv engine and
// rebuilds the catalog it represents. Called on every read since the
// catalog is expected to be small (one row per space/tag/edge/
// partition/host) and the engine is the single source of truth — no
// separate in-memory cache is kept on the metad side, unlike
// internal/schema.Cache which caches precisely to avoid doing this on
// every storage-host lookup.
func decodeCatalog(engine kvengine.Engine) (Catalog, error) {
	cat := emptyCatalog()

	it, err := engine.Prefix(nil)
	if err != nil {
		return Catalog{}, err
	}
	defer it.Close()

	for it.Next(context.Background()) {
		kv := it.Item()
		if len(kv.Key) == 0 {
			continue
		}
		switch kv.Key[0] {
		case tagSpace:
			var s SpaceDef
			if err := gobDecode(kv.Value, &s); err != nil {
				return Catalog{}, err
			}
			cat.Spaces[s.SpaceID] = s
		case tagTag:
			var s mutation.TagSchema
			if err := gobDecode(kv.Value, &s); err != nil {
				return Catalog{}, err
			}
			cat.Tags[TagKey{SpaceID: s.SpaceID, TagID: s.TagID}] = s
		case tagEdge:
			var s mutation.EdgeSchema
			if err := gobDecode(kv.Value, &s); err != nil {
				return Catalog{}, err
			}
			cat.Edges[EdgeKey{SpaceID: s.SpaceID, EdgeType: s.EdgeType}] = s
		case tagPart:
			var p PartitionAssignment
			if err := gobDecode(kv.Value, &p); err != nil {
				return Catalog{}, err
			}
			cat.Partitions[PartKey{SpaceID: p.SpaceID, PartID: p.PartID}] = p
		case tagHost:
			var h HostDef
			if err := gobDecode(kv.Value, &h); err != nil {
				return Catalog{}, err
			}
			cat.Hosts[h.Addr] = h
		case tagWorker:
			addr := string(kv.Key[1:])
			cat.WorkerLeases[addr] = binary.BigEndian.Uint32(kv.Value)
		case tagVer:
			cat.Version = int64(binary.BigEndian.Uint64(kv.Value))
		}
	}
	if err := it.Err(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}
