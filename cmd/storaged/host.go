package main

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"

	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/metad"
	"github.com/cuemby/nebulastore/internal/metaclient"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/raftgroup"
	"github.com/cuemby/nebulastore/internal/read"
	"github.com/cuemby/nebulastore/internal/schema"
	"github.com/cuemby/nebulastore/pkg/config"
)

// partKey identifies one (space,partition) pair this host owns, the
// same key schema.Cache and internal/metad use internally.
type partKey struct {
	SpaceID uint32
	PartID  uint32
}

// host owns every partition (storage data plus the embedded metadata
// group) this process serves, and implements mutation.GroupLocator,
// mutation.EngineLocator and read.EngineLocator over them directly —
// grounded on pkg/manager/manager.go owning its single cluster-wide
// Raft group and BoltDB store the same way, generalized here to one
// group+engine pair per partition instead of one of each for the
// whole cluster.
type host struct {
	cfg config.Config

	mu     sync.RWMutex
	groups map[partKey]*raftgroup.Group
	engines map[partKey]*kvengine.BoltEngine

	metaGroup *raftgroup.Group
	meta      *metad.Service
}

func newHost(cfg config.Config) *host {
	return &host{
		cfg:     cfg,
		groups:  make(map[partKey]*raftgroup.Group),
		engines: make(map[partKey]*kvengine.BoltEngine),
	}
}

// bootstrapMeta opens (and, on first run, bootstraps) this host's
// embedded metadata group as a single-voter cluster. Joining an
// existing metadata group from a second host is an operator action
// against the admin RPC surface (AddLearner/MemberChange), not
// something serve does at startup.
func (h *host) bootstrapMeta() error {
	metaEngine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: h.metaDataDir()}, 0, 0)
	if err != nil {
		return fmt.Errorf("open metadata engine: %w", err)
	}

	grp, err := raftgroup.Open(raftgroup.Config{
		SpaceID:  0,
		PartID:   0,
		LocalID:  h.cfg.NodeID,
		BindAddr: h.cfg.BindAddr,
		DataDir:  filepath.Join(h.metaDataDir(), "raft"),
	}, metad.NewStateMachine(metaEngine))
	if err != nil {
		return fmt.Errorf("open metadata group: %w", err)
	}
	if err := grp.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap metadata group: %w", err)
	}

	h.metaGroup = grp
	h.meta = metad.NewService(grp, metaEngine)
	return nil
}

func (h *host) metaDataDir() string {
	return filepath.Join(h.cfg.DataDir, "meta")
}

// ensureSpace registers spaceID with the metadata service (if not
// already present) and opens a local storage group+engine for every
// partition of it this single-node deployment owns (all of them, in
// this single-host bootstrap path).
func (h *host) ensureSpace(def metad.SpaceDef) error {
	cat, err := h.meta.Catalog()
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if _, ok := cat.Spaces[def.SpaceID]; !ok {
		if err := h.meta.CreateSpace(def); err != nil {
			return fmt.Errorf("create space: %w", err)
		}
	}

	for partID := uint32(1); partID <= uint32(def.PartitionCount); partID++ {
		if err := h.ensurePartition(def.SpaceID, partID); err != nil {
			return err
		}
		if err := h.meta.SetPartitionAssignment(metad.PartitionAssignment{
			SpaceID: def.SpaceID,
			PartID:  partID,
			Leader:  h.cfg.NodeID,
			Peers:   []string{h.cfg.NodeID},
		}); err != nil {
			return fmt.Errorf("assign partition %d: %w", partID, err)
		}
	}
	return nil
}

func (h *host) ensurePartition(spaceID, partID uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := partKey{SpaceID: spaceID, PartID: partID}
	if _, ok := h.groups[key]; ok {
		return nil
	}

	engine, err := kvengine.OpenBoltEngine(kvengine.Options{DataDir: h.cfg.DataDir}, spaceID, partID)
	if err != nil {
		return fmt.Errorf("open engine for partition %d: %w", partID, err)
	}

	raftAddr, err := freeLoopbackAddr()
	if err != nil {
		return err
	}
	grp, err := raftgroup.Open(raftgroup.Config{
		SpaceID:  spaceID,
		PartID:   partID,
		LocalID:  fmt.Sprintf("%s-p%d", h.cfg.NodeID, partID),
		BindAddr: raftAddr,
		DataDir:  filepath.Join(h.cfg.DataDir, fmt.Sprintf("%d", spaceID), "raft", fmt.Sprintf("p%d", partID)),
	}, mutation.NewStateMachine(engine))
	if err != nil {
		return fmt.Errorf("open partition group %d: %w", partID, err)
	}
	if err := grp.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap partition group %d: %w", partID, err)
	}

	h.groups[key] = grp
	h.engines[key] = engine
	return nil
}

// freeLoopbackAddr picks an ephemeral loopback port for a partition's
// own Raft transport, distinct from the host's primary BindAddr (the
// metadata group's own transport).
func freeLoopbackAddr() (string, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := lis.Addr().String()
	lis.Close()
	return addr, nil
}

func (h *host) metaClient() *metaclient.InProcessClient {
	return metaclient.New(h.meta)
}

// Group implements mutation.GroupLocator.
func (h *host) Group(spaceID, partID uint32) (*raftgroup.Group, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	g, ok := h.groups[partKey{SpaceID: spaceID, PartID: partID}]
	return g, ok
}

// engineFor looks up the engine of one locally owned partition; the
// adapters below expose it as mutation.EngineLocator and
// read.EngineLocator.
func (h *host) engineFor(spaceID, partID uint32) (*kvengine.BoltEngine, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.engines[partKey{SpaceID: spaceID, PartID: partID}]
	return e, ok
}

type mutationEngineLocator struct{ h *host }

func (l mutationEngineLocator) Engine(spaceID, partID uint32) (mutation.Engine, bool) {
	return l.h.engineFor(spaceID, partID)
}

type readEngineLocator struct{ h *host }

func (l readEngineLocator) Engine(spaceID, partID uint32) (kvengine.Engine, bool) {
	return l.h.engineFor(spaceID, partID)
}

func (h *host) newPipeline(sch *schema.Cache) *mutation.Pipeline {
	return mutation.NewPipeline(sch, h, mutationEngineLocator{h}, unixClock)
}

func (h *host) newReader(sch *schema.Cache) *read.Reader {
	return read.NewReader(sch, readEngineLocator{h}, unixClock)
}

func (h *host) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range h.groups {
		_ = g.Shutdown()
	}
	if h.metaGroup != nil {
		_ = h.metaGroup.Shutdown()
	}
}
