package metaclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/metad"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/raftgroup"
	"github.com/cuemby/nebulastore/internal/schema"
)

func openTestMetad(t *testing.T) *metad.Service {
	t.Helper()
	engine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: t.TempDir()}, 0, 0)
	require.NoError(t, err)

	sm := metad.NewStateMachine(engine)
	g, err := raftgroup.Open(raftgroup.Config{
		SpaceID:  0,
		PartID:   0,
		LocalID:  "node-a",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, sm)
	require.NoError(t, err)
	t.Cleanup(func() { g.Shutdown() })
	require.NoError(t, g.Bootstrap())
	require.Eventually(t, g.IsLeader, 5*time.Second, 20*time.Millisecond, "metadata group never elected a leader")

	return metad.NewService(g, engine)
}

func TestInProcessClientFetchCatalog(t *testing.T) {
	svc := openTestMetad(t)
	require.NoError(t, svc.CreateSpace(metad.SpaceDef{SpaceID: 1, Name: "social", VidLen: 8, PartitionCount: 4}))
	require.NoError(t, svc.CreateTag(mutation.TagSchema{SpaceID: 1, TagID: 10, VidLen: 8, Schema: codec.Schema{Version: 1}}))

	c := New(svc)
	cat, err := c.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, cat.Spaces[1].PartitionCount)

	cache := schema.NewCache(c)
	require.NoError(t, cache.Refresh(context.Background()))
	sch, err := cache.TagSchema(1, 10)
	require.NoError(t, err)
	require.Equal(t, int32(10), sch.TagID)
}

func TestInProcessClientWatchCatalogBlocksUntilChange(t *testing.T) {
	svc := openTestMetad(t)
	require.NoError(t, svc.CreateSpace(metad.SpaceDef{SpaceID: 1, Name: "social", VidLen: 8, PartitionCount: 4}))

	c := New(svc)
	base, err := c.FetchCatalog(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, svc.CreateSpace(metad.SpaceDef{SpaceID: 2, Name: "ads", VidLen: 8, PartitionCount: 2}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	next, err := c.WatchCatalog(ctx, base.Version)
	require.NoError(t, err)
	require.Contains(t, next.Spaces, uint32(2))
	<-done
}
