// Package metaclient is the read-only client internal/schema.Cache is
// built on: it implements schema.MetaClient, translating
// internal/metad's own Catalog representation into schema.Catalog.
//
// This is an in-process client — it calls straight into a *metad.Service
// in the same host process, which is sufficient for a single-process
// deployment (cmd/graphd and cmd/storaged embedding their own metad) or
// for tests. A real multi-host deployment reaches the metadata group
// over the network instead; that transport is internal/rpc's concern
// (the same wire contracts as the storage RPC surface, per spec.md
// §4.8), and wiring it in only requires a second MetaClient
// implementation here that dials out instead of calling in — nothing
// in internal/schema depends on which one is used.
//
// Grounded on pkg/client/client.go's Client (a thin wrapper translating
// one service's wire types into the caller's own types) generalized
// from a gRPC-dialing client to an in-process one, since spec.md §1
// scopes the admin/query RPC surface this would normally ride on out
// of this repo's responsibility.
package metaclient

import (
	"context"
	"time"

	"github.com/cuemby/nebulastore/internal/metad"
	"github.com/cuemby/nebulastore/internal/schema"
)

// pollInterval bounds how long WatchCatalog waits between polls of
// the embedded metad.Service for a version past the caller's
// baseline. A real network MetaClient would instead block inside a
// long-poll RPC; this one polls an in-process call, which is cheap
// enough that a short fixed interval is simpler than plumbing a
// change-notification channel through metad as well.
const pollInterval = 200 * time.Millisecond

// InProcessClient adapts a *metad.Service into schema.MetaClient.
type InProcessClient struct {
	svc *metad.Service
}

// New wraps svc for consumption by internal/schema.Cache.
func New(svc *metad.Service) *InProcessClient {
	return &InProcessClient{svc: svc}
}

// FetchCatalog implements schema.MetaClient.
func (c *InProcessClient) FetchCatalog(ctx context.Context) (schema.Catalog, error) {
	cat, err := c.svc.Catalog()
	if err != nil {
		return schema.Catalog{}, err
	}
	return toSchemaCatalog(cat), nil
}

// WatchCatalog implements schema.MetaClient by polling the embedded
// service until its version advances past sinceVersion or ctx is
// done.
func (c *InProcessClient) WatchCatalog(ctx context.Context, sinceVersion int64) (schema.Catalog, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		cat, err := c.svc.Catalog()
		if err != nil {
			return schema.Catalog{}, err
		}
		if cat.Version > sinceVersion {
			return toSchemaCatalog(cat), nil
		}
		select {
		case <-ctx.Done():
			return schema.Catalog{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toSchemaCatalog(cat metad.Catalog) schema.Catalog {
	out := schema.NewCatalog(cat.Version)
	for _, sp := range cat.Spaces {
		out.PutSpace(schema.SpaceMeta{
			SpaceID:        sp.SpaceID,
			VidLen:         sp.VidLen,
			PartitionCount: sp.PartitionCount,
		})
	}
	for _, t := range cat.Tags {
		out.PutTag(t)
	}
	for _, e := range cat.Edges {
		out.PutEdge(e)
	}
	for _, p := range cat.Partitions {
		out.PutPartition(schema.PartitionMeta{
			SpaceID: p.SpaceID,
			PartID:  p.PartID,
			Leader:  p.Leader,
			Peers:   p.Peers,
		})
	}
	return out
}
