package metad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/nebulastore/internal/codec"
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	engine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: t.TempDir()}, 0, 0)
	require.NoError(t, err)

	sm := NewStateMachine(engine)
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

	return NewService(g, engine)
}

func TestServiceCreateSpaceAndTag(t *testing.T) {
	svc := openTestService(t)

	require.NoError(t, svc.CreateSpace(SpaceDef{SpaceID: 1, Name: "social", VidLen: 8, PartitionCount: 4, ReplicaFactor: 3}))
	require.NoError(t, svc.CreateTag(mutation.TagSchema{
		SpaceID: 1,
		TagID:   10,
		VidLen:  8,
		Schema:  codec.Schema{Version: 1},
	}))

	cat, err := svc.Catalog()
	require.NoError(t, err)
	require.Equal(t, "social", cat.Spaces[1].Name)
	require.Equal(t, int32(10), cat.Tags[TagKey{SpaceID: 1, TagID: 10}].TagID)
	require.Equal(t, int64(2), cat.Version)
}

func TestServiceLeaseWorkerIDIsIdempotentPerHost(t *testing.T) {
	svc := openTestService(t)

	id1, err := svc.LeaseWorkerID("host-a:9500")
	require.NoError(t, err)
	id2, err := svc.LeaseWorkerID("host-b:9500")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	again, err := svc.LeaseWorkerID("host-a:9500")
	require.NoError(t, err)
	require.Equal(t, id1, again)
}

func TestServiceSetPartitionAssignment(t *testing.T) {
	svc := openTestService(t)

	require.NoError(t, svc.SetPartitionAssignment(PartitionAssignment{
		SpaceID: 1, PartID: 1, Leader: "host-a:9780", Peers: []string{"host-a:9780", "host-b:9780"},
	}))
	cat, err := svc.Catalog()
	require.NoError(t, err)
	require.Equal(t, "host-a:9780", cat.Partitions[PartKey{SpaceID: 1, PartID: 1}].Leader)

	require.NoError(t, svc.SetPartitionAssignment(PartitionAssignment{
		SpaceID: 1, PartID: 1, Leader: "host-b:9780", Peers: []string{"host-a:9780", "host-b:9780"},
	}))
	cat, err = svc.Catalog()
	require.NoError(t, err)
	require.Equal(t, "host-b:9780", cat.Partitions[PartKey{SpaceID: 1, PartID: 1}].Leader)
}
