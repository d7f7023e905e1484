// Package raftgroup wraps one hashicorp/raft replication group per
// partition. Where the teacher runs a single raft.Raft for the whole
// cluster's control-plane state, nebulastore opens one Group per
// (space, partition) pair a host owns, each with its own log/stable/
// snapshot stores under a partition-scoped data directory.
//
// Grounded on pkg/manager/manager.go's Bootstrap/Join/AddVoter/
// RemoveServer/GetClusterServers wiring (same raft.NewTCPTransport +
// raft.NewFileSnapshotStore + raftboltdb.NewBoltStore construction,
// generalized to run once per partition) and pkg/manager/fsm.go's
// Apply/Snapshot/Restore shape, generalized from a JSON command switch
// over cluster-state entities to an opaque StateMachine the mutation
// pipeline supplies.
package raftgroup

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/pkg/log"
	"github.com/cuemby/nebulastore/pkg/metrics"
)

// StateMachine is what a partition owner (internal/mutation) supplies
// to be driven by a Group. It mirrors raft.FSM under names that don't
// leak hashicorp/raft types to callers that only ever see decoded log
// entries and snapshot streams.
type StateMachine interface {
	// Apply replays one committed log entry and returns a value the
	// submitter of that entry (via Group.Apply) receives back.
	Apply(entry []byte) any
	Snapshot() (Snapshot, error)
	Restore(r io.ReadCloser) error
}

// Snapshot is a point-in-time export of a StateMachine's state.
type Snapshot interface {
	Persist(w io.Writer) error
	Release()
}

// Role is this replica's position in the partition's term, used
// alongside the term itself to build roleSignature.
type Role uint32

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
	RoleShutdown
)

func roleFromRaft(s raft.RaftState) Role {
	switch s {
	case raft.Follower:
		return RoleFollower
	case raft.Candidate:
		return RoleCandidate
	case raft.Leader:
		return RoleLeader
	default:
		return RoleShutdown
	}
}

// Config configures a single partition's replication group.
type Config struct {
	SpaceID  uint32
	PartID   uint32
	LocalID  string // raft.ServerID, e.g. "host-a:3"
	BindAddr string
	DataDir  string // partition-scoped raft metadata root

	HeartbeatTimeout   time.Duration
	ElectionTimeout    time.Duration
	CommitTimeout      time.Duration
	LeaderLeaseTimeout time.Duration
	ApplyTimeout       time.Duration

	// OnElected and OnLostLeadership, if set, run on this partition's
	// leadership transitions (on a background goroutine, never
	// concurrently with each other).
	OnElected        func()
	OnLostLeadership func()
}

func (c Config) withDefaults() Config {
	// Same tuning as the teacher's Bootstrap/Join: conservative
	// hashicorp/raft defaults are sized for WAN clusters, these
	// values target sub-10s failover on a LAN.
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 500 * time.Millisecond
	}
	if c.ElectionTimeout == 0 {
		c.ElectionTimeout = 500 * time.Millisecond
	}
	if c.CommitTimeout == 0 {
		c.CommitTimeout = 50 * time.Millisecond
	}
	if c.LeaderLeaseTimeout == 0 {
		c.LeaderLeaseTimeout = 250 * time.Millisecond
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	return c
}

// Group is one partition's Raft replication group.
type Group struct {
	cfg   Config
	raft  *raft.Raft
	fsm   *fsmAdapter
	trans *raft.NetworkTransport
	logs  *raftboltdb.BoltStore
	stab  *raftboltdb.BoltStore

	roleSig atomic.Uint64 // epoch<<32 | role, see RoleSignature

	obs     *raft.Observer
	obsCh   chan raft.Observation
	closeCh chan struct{}

	logger zerolog.Logger
}

// Open constructs the Group's Raft instance (transport, log/stable/
// snapshot stores, FSM adapter) without joining or bootstrapping a
// cluster. Callers then call Bootstrap (first partition owner) or
// rely on the existing leader to AddVoter this replica in.
func Open(cfg Config, sm StateMachine) (*Group, error) {
	cfg = cfg.withDefaults()

	dir := filepath.Join(cfg.DataDir, fmt.Sprintf("%d", cfg.SpaceID), "raft", fmt.Sprintf("p%d", cfg.PartID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.IoError, err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.LocalID)
	raftCfg.HeartbeatTimeout = cfg.HeartbeatTimeout
	raftCfg.ElectionTimeout = cfg.ElectionTimeout
	raftCfg.CommitTimeout = cfg.CommitTimeout
	raftCfg.LeaderLeaseTimeout = cfg.LeaderLeaseTimeout

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, errs.New(errs.IllFormat, fmt.Errorf("resolve bind addr: %w", err))
	}
	trans, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, errs.New(errs.IoError, fmt.Errorf("raft transport: %w", err))
	}

	snaps, err := raft.NewFileSnapshotStore(dir, 2, os.Stderr)
	if err != nil {
		return nil, errs.New(errs.IoError, fmt.Errorf("snapshot store: %w", err))
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dir, "log.db"))
	if err != nil {
		return nil, errs.New(errs.IoError, fmt.Errorf("log store: %w", err))
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dir, "stable.db"))
	if err != nil {
		return nil, errs.New(errs.IoError, fmt.Errorf("stable store: %w", err))
	}

	fsm := &fsmAdapter{sm: sm}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snaps, trans)
	if err != nil {
		return nil, errs.New(errs.IoError, fmt.Errorf("raft.NewRaft: %w", err))
	}

	g := &Group{
		cfg:     cfg,
		raft:    r,
		fsm:     fsm,
		trans:   trans,
		logs:    logStore,
		stab:    stableStore,
		obsCh:   make(chan raft.Observation, 8),
		closeCh: make(chan struct{}),
		logger:  log.WithPartition(cfg.SpaceID, cfg.PartID),
	}
	g.roleSig.Store(packRole(0, RoleFollower))

	g.obs = raft.NewObserver(g.obsCh, true, func(o *raft.Observation) bool { return true })
	r.RegisterObserver(g.obs)
	go g.watchLeadership()

	return g, nil
}

// packRole packs a term and role into the single word compared-and-
// swapped by RoleSignature callers, so a watcher can tell "the term
// advanced" from "the role changed within the same term" in one load.
func packRole(epoch uint32, role Role) uint64 {
	return uint64(epoch)<<32 | uint64(role)
}

func unpackRole(sig uint64) (epoch uint32, role Role) {
	return uint32(sig >> 32), Role(uint32(sig))
}

// RoleSignature returns the partition's current (term, role) packed
// into one word, suitable for a lock-free "has anything changed since
// I last looked" comparison by read-path callers deciding whether a
// cached leader hint is still good.
func (g *Group) RoleSignature() uint64 { return g.roleSig.Load() }

func (g *Group) watchLeadership() {
	wasLeader := false
	for {
		select {
		case <-g.closeCh:
			return
		case <-g.obsCh:
			term := g.raft.Stats()["term"]
			var epoch uint64
			fmt.Sscanf(term, "%d", &epoch)
			role := roleFromRaft(g.raft.State())
			g.roleSig.Store(packRole(uint32(epoch), role))

			isLeader := role == RoleLeader
			if isLeader && !wasLeader {
				wasLeader = true
				g.logger.Info().Uint64("term", epoch).Msg("partition leadership acquired")
				if g.cfg.OnElected != nil {
					g.cfg.OnElected()
				}
			} else if !isLeader && wasLeader {
				wasLeader = false
				g.logger.Info().Uint64("term", epoch).Msg("partition leadership lost")
				if g.cfg.OnLostLeadership != nil {
					g.cfg.OnLostLeadership()
				}
			}
		}
	}
}

// Bootstrap initializes a brand-new single-member cluster for this
// partition. Only the first replica of a newly created partition
// calls this; every later replica joins via the leader's AddVoter.
func (g *Group) Bootstrap() error {
	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(g.cfg.LocalID), Address: g.trans.LocalAddr()},
		},
	}
	return g.raft.BootstrapCluster(configuration).Error()
}

// Apply submits entry to this partition's Raft log and blocks until
// it is committed and replayed by the local StateMachine, returning
// whatever StateMachine.Apply returned for this entry.
func (g *Group) Apply(entry []byte) (any, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	future := g.raft.Apply(entry, g.cfg.ApplyTimeout)
	if err := future.Error(); err != nil {
		return nil, translateRaftErr(err)
	}
	resp := future.Response()
	if err, ok := resp.(error); ok && err != nil {
		return nil, err
	}
	return resp, nil
}

// AddVoter adds a replica to this partition's group. Must be called
// on the current leader.
func (g *Group) AddVoter(id, addr string) error {
	if !g.IsLeader() {
		return errs.New(errs.LeaderChanged, nil).WithHint(g.LeaderAddr())
	}
	return g.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// AddLearner adds a non-voting replica, used to catch a new replica
// up before promoting it with AddVoter (spec.md §4.6's add-learner
// step of membership changes).
func (g *Group) AddLearner(id, addr string) error {
	if !g.IsLeader() {
		return errs.New(errs.LeaderChanged, nil).WithHint(g.LeaderAddr())
	}
	return g.raft.AddNonvoter(raft.ServerID(id), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// RemoveServer removes a replica from this partition's group.
func (g *Group) RemoveServer(id string) error {
	if !g.IsLeader() {
		return errs.New(errs.LeaderChanged, nil).WithHint(g.LeaderAddr())
	}
	return g.raft.RemoveServer(raft.ServerID(id), 0, 10*time.Second).Error()
}

// TransferLeadership asks this partition's current leader to hand
// leadership to another voter (spec.md §4.6 transferLeader).
func (g *Group) TransferLeadership() error {
	return g.raft.LeadershipTransfer().Error()
}

// WaitForAppliedIndex blocks until this replica has applied at least
// index, or timeout elapses; used by waitForCatchUpData before
// promoting a learner to a voter.
func (g *Group) WaitForAppliedIndex(index uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for g.raft.AppliedIndex() < index {
		if time.Now().After(deadline) {
			return errs.New(errs.Timeout, fmt.Errorf("applied index %d < target %d", g.raft.AppliedIndex(), index))
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func (g *Group) IsLeader() bool { return g.raft.State() == raft.Leader }

func (g *Group) LeaderAddr() string { _, addr := g.raft.LeaderWithID(); return string(addr) }

func (g *Group) LeaderID() string { id, _ := g.raft.LeaderWithID(); return string(id) }

// Configuration returns the current voter/learner set.
func (g *Group) Configuration() ([]raft.Server, error) {
	future := g.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, err
	}
	return future.Configuration().Servers, nil
}

// Shutdown tears down this partition's Raft instance and its
// transport and log/stable stores.
func (g *Group) Shutdown() error {
	close(g.closeCh)
	if err := g.raft.Shutdown().Error(); err != nil {
		return err
	}
	g.trans.Close()
	g.logs.Close()
	g.stab.Close()
	return nil
}

// translateRaftErr maps hashicorp/raft's own sentinel errors onto the
// wire-stable error taxonomy (spec.md §7) so callers above raftgroup
// never see raft.Err* directly.
func translateRaftErr(err error) error {
	switch err {
	case raft.ErrNotLeader, raft.ErrLeadershipLost, raft.ErrLeadershipTransferInProgress:
		return errs.New(errs.LeaderChanged, err)
	case raft.ErrEnqueueTimeout:
		return errs.New(errs.Timeout, err)
	case raft.ErrRaftShutdown:
		return errs.New(errs.CfClosed, err)
	default:
		return errs.New(errs.Unknown, err)
	}
}
