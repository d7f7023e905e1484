package schema

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/pkg/log"
	"github.com/cuemby/nebulastore/pkg/metrics"
)

// Cache is the in-memory, periodically-refreshed view of the metadata
// service's catalog. It implements mutation.SchemaSource directly, so
// the mutation and read pipelines depend on this package's exported
// surface and never talk to internal/metaclient themselves.
type Cache struct {
	client MetaClient
	broker *Broker

	mu  sync.RWMutex
	cur Catalog

	refreshGroup singleflight.Group
}

// NewCache builds an empty Cache; call Refresh (or Run) before serving
// any lookups.
func NewCache(client MetaClient) *Cache {
	return &Cache{
		client: client,
		broker: NewBroker(),
		cur:    Catalog{Spaces: map[uint32]SpaceMeta{}, Tags: map[tagKey]mutation.TagSchema{}, Edges: map[edgeKey]mutation.EdgeSchema{}, Partitions: map[partKey]PartitionMeta{}},
	}
}

// Subscribe exposes the cache's change notifications.
func (c *Cache) Subscribe() Subscriber { return c.broker.Subscribe() }

// Unsubscribe removes a prior subscription.
func (c *Cache) Unsubscribe(s Subscriber) { c.broker.Unsubscribe(s) }

// Refresh fetches the full catalog once, de-duplicating concurrent
// callers into a single round trip via singleflight — a cache-miss
// storm from many goroutines resolving schema at once collapses to
// one FetchCatalog call.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		next, err := c.client.FetchCatalog(ctx)
		if err != nil {
			return nil, err
		}
		c.swap(next)
		return nil, nil
	})
	if shared {
		metrics.SchemaCacheRefreshTotal.WithLabelValues("singleflight_shared").Inc()
	} else {
		metrics.SchemaCacheRefreshTotal.WithLabelValues("miss").Inc()
	}
	return err
}

// Run long-polls the metadata service for changes past the
// currently-cached version until ctx is done, swapping in and
// diffing each new catalog as it arrives. Callers typically run this
// in its own goroutine for the lifetime of the process.
func (c *Cache) Run(ctx context.Context) {
	logger := log.Logger
	if err := c.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("initial catalog fetch failed")
	}
	for {
		select {
		case <-ctx.Done():
			c.broker.Stop()
			return
		default:
		}
		c.mu.RLock()
		version := c.cur.Version
		c.mu.RUnlock()

		next, err := c.client.WatchCatalog(ctx, version)
		if err != nil {
			if ctx.Err() != nil {
				c.broker.Stop()
				return
			}
			logger.Warn().Err(err).Msg("catalog watch failed, retrying")
			continue
		}
		c.swap(next)
		metrics.SchemaCacheRefreshTotal.WithLabelValues("long_poll").Inc()
	}
}

// swap installs next as the current catalog and publishes a Change
// for every newly seen space, every newly seen partition, every
// partition whose leader changed, and every partition that is gone.
// A change to a partition's Peers alone publishes nothing.
func (c *Cache) swap(next Catalog) {
	c.mu.Lock()
	prev := c.cur
	c.cur = next
	c.mu.Unlock()

	for id := range next.Spaces {
		if _, existed := prev.Spaces[id]; !existed {
			c.broker.Publish(Change{SpaceID: id, Kind: SpaceAdded})
		}
	}
	for key, pm := range next.Partitions {
		old, existed := prev.Partitions[key]
		if !existed {
			c.broker.Publish(Change{SpaceID: key.SpaceID, PartID: key.PartID, Kind: PartitionAdded})
			continue
		}
		if old.Leader != pm.Leader {
			c.broker.Publish(Change{SpaceID: key.SpaceID, PartID: key.PartID, Kind: LeaderChanged})
		}
	}
	for key := range prev.Partitions {
		if _, stillThere := next.Partitions[key]; !stillThere {
			c.broker.Publish(Change{SpaceID: key.SpaceID, PartID: key.PartID, Kind: PartitionRemoved})
		}
	}
}

// TagSchema implements mutation.SchemaSource.
func (c *Cache) TagSchema(spaceID uint32, tagID int32) (mutation.TagSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.cur.Tags[tagKey{SpaceID: spaceID, TagID: tagID}]
	if !ok {
		return mutation.TagSchema{}, errs.New(errs.TagNotFound, nil)
	}
	return s, nil
}

// EdgeSchema implements mutation.SchemaSource.
func (c *Cache) EdgeSchema(spaceID uint32, edgeType int32) (mutation.EdgeSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.cur.Edges[edgeKey{SpaceID: spaceID, EdgeType: edgeType}]
	if !ok {
		return mutation.EdgeSchema{}, errs.New(errs.EdgeNotFound, nil)
	}
	return s, nil
}

// PartitionOf implements mutation.SchemaSource: partitionOf(v) =
// hash(v) mod P + 1, per spec.md's routing invariant.
func (c *Cache) PartitionOf(spaceID uint32, vertexID []byte) (uint32, error) {
	c.mu.RLock()
	sp, ok := c.cur.Spaces[spaceID]
	c.mu.RUnlock()
	if !ok {
		return 0, errs.New(errs.SpaceNotFound, nil)
	}
	hash := xxhash.Sum64(vertexID)
	return partitionOf(hash, sp.PartitionCount), nil
}

func partitionOf(hash uint64, numParts int) uint32 {
	if numParts <= 0 {
		return 1
	}
	return uint32(hash%uint64(numParts)) + 1
}

// LeaderOf returns the cached leader hint for one partition.
func (c *Cache) LeaderOf(spaceID, partID uint32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pm, ok := c.cur.Partitions[partKey{SpaceID: spaceID, PartID: partID}]
	if !ok {
		return "", false
	}
	return pm.Leader, true
}

// PartitionsOf returns every partition id of a space, the fan-out list
// a multi-partition scan (e.g. read.LookupTagIndex) iterates over.
func (c *Cache) PartitionsOf(spaceID uint32) ([]uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sp, ok := c.cur.Spaces[spaceID]
	if !ok {
		return nil, errs.New(errs.SpaceNotFound, nil)
	}
	out := make([]uint32, sp.PartitionCount)
	for i := range out {
		out[i] = uint32(i) + 1
	}
	return out, nil
}
