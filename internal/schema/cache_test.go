package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/nebulastore/internal/mutation"
)

type fakeMetaClient struct {
	catalogs []Catalog
	i        int
}

func (f *fakeMetaClient) FetchCatalog(ctx context.Context) (Catalog, error) {
	return f.catalogs[0], nil
}

func (f *fakeMetaClient) WatchCatalog(ctx context.Context, sinceVersion int64) (Catalog, error) {
	for f.i+1 < len(f.catalogs) {
		f.i++
		if f.catalogs[f.i].Version > sinceVersion {
			return f.catalogs[f.i], nil
		}
	}
	<-ctx.Done()
	return Catalog{}, ctx.Err()
}

func baseCatalog() Catalog {
	return Catalog{
		Version: 1,
		Spaces:  map[uint32]SpaceMeta{1: {SpaceID: 1, VidLen: 8, PartitionCount: 4}},
		Tags: map[tagKey]mutation.TagSchema{
			{SpaceID: 1, TagID: 10}: {SpaceID: 1, TagID: 10, VidLen: 8},
		},
		Edges: map[edgeKey]mutation.EdgeSchema{},
		Partitions: map[partKey]PartitionMeta{
			{SpaceID: 1, PartID: 1}: {SpaceID: 1, PartID: 1, Leader: "host-a:1"},
		},
	}
}

func TestCacheRefreshPopulatesSchemaSource(t *testing.T) {
	client := &fakeMetaClient{catalogs: []Catalog{baseCatalog()}}
	c := NewCache(client)
	require.NoError(t, c.Refresh(context.Background()))

	sch, err := c.TagSchema(1, 10)
	require.NoError(t, err)
	require.Equal(t, int32(10), sch.TagID)

	_, err = c.TagSchema(1, 99)
	require.Error(t, err)

	part, err := c.PartitionOf(1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.GreaterOrEqual(t, part, uint32(1))
	require.LessOrEqual(t, part, uint32(4))
}

func TestCacheSwapPublishesChanges(t *testing.T) {
	second := baseCatalog()
	second.Version = 2
	pm := second.Partitions[partKey{SpaceID: 1, PartID: 1}]
	pm.Leader = "host-b:1"
	second.Partitions[partKey{SpaceID: 1, PartID: 1}] = pm

	client := &fakeMetaClient{catalogs: []Catalog{baseCatalog(), second}}
	c := NewCache(client)
	sub := c.Subscribe()
	defer c.Unsubscribe(sub)

	require.NoError(t, c.Refresh(context.Background()))

	var gotSpaceAdded, gotPartAdded bool
	deadline := time.After(time.Second)
drain1:
	for {
		select {
		case ch := <-sub:
			switch ch.Kind {
			case SpaceAdded:
				gotSpaceAdded = true
			case PartitionAdded:
				gotPartAdded = true
			}
			if gotSpaceAdded && gotPartAdded {
				break drain1
			}
		case <-deadline:
			break drain1
		}
	}
	require.True(t, gotSpaceAdded)
	require.True(t, gotPartAdded)

	c.swap(second)
	select {
	case ch := <-sub:
		require.Equal(t, LeaderChanged, ch.Kind)
		require.Equal(t, uint32(1), ch.PartID)
	case <-time.After(time.Second):
		t.Fatal("expected a LeaderChanged notification")
	}
}
