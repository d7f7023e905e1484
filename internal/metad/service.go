package metad

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cuemby/nebulastore/internal/errs"
	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/mutation"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

// Service is the metadata group's write surface: one Raft group
// guarding one catalog, per spec.md §4.8 ("a strongly-consistent
// (single-Raft-group) catalog"). Every write method here reads the
// current catalog, decides the resulting kv effect, and proposes it —
// the same decide-at-propose-time shape internal/mutation.Pipeline
// uses for version assignment, so the FSM itself stays a dumb kv
// replayer.
//
// mu serializes the decide-then-propose sequence across concurrent
// callers on the same leader; Raft itself only guarantees ordering
// among entries once appended; the read-modify-propose window before
// that needs its own lock to avoid two concurrent calls computing the
// same "next" value (e.g. two LeaseWorkerID calls for different hosts
// racing to the same lease slot).
type Service struct {
	group  *raftgroup.Group
	engine kvengine.Engine

	mu sync.Mutex
}

// NewService wraps an already-open (bootstrapped or joined) Raft
// group and the kv engine its StateMachine was built over.
func NewService(group *raftgroup.Group, engine kvengine.Engine) *Service {
	return &Service{group: group, engine: engine}
}

// Catalog returns the current full catalog snapshot.
func (s *Service) Catalog() (Catalog, error) {
	return decodeCatalog(s.engine)
}

func (s *Service) propose(steps []step) error {
	data, err := encodePlan(plan{Steps: steps})
	if err != nil {
		return errs.New(errs.IllFormat, err)
	}
	res, err := s.group.Apply(data)
	if err != nil {
		return errs.New(errs.LeaderChanged, err)
	}
	if ar, ok := res.(ApplyResult); ok && ar.Err != nil {
		return ar.Err
	}
	return nil
}

// bumpVersion appends a version-counter increment to steps, reading
// the counter's current value from the engine (only valid when called
// on the leader, the only replica that ever proposes).
func (s *Service) bumpVersion(steps []step) ([]step, error) {
	var cur uint64
	raw, err := s.engine.Get(versionKey())
	if err != nil && errs.CodeOf(err) != errs.ItemNotFound {
		return nil, err
	}
	if len(raw) == 8 {
		cur = binary.BigEndian.Uint64(raw)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, cur+1)
	return append(steps, step{Kind: kindPut, Key: versionKey(), Value: next}), nil
}

// CreateSpace registers a new graph space.
func (s *Service) CreateSpace(def SpaceDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := []step{{Kind: kindPut, Key: spaceKey(def.SpaceID), Value: gobEncode(def)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

// CreateTag registers (or replaces) one tag's schema.
func (s *Service) CreateTag(schema mutation.TagSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := TagKey{SpaceID: schema.SpaceID, TagID: schema.TagID}
	steps := []step{{Kind: kindPut, Key: tagSchemaKey(k), Value: gobEncode(schema)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

// CreateEdgeType registers (or replaces) one edge type's schema.
func (s *Service) CreateEdgeType(schema mutation.EdgeSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := EdgeKey{SpaceID: schema.SpaceID, EdgeType: schema.EdgeType}
	steps := []step{{Kind: kindPut, Key: edgeSchemaKey(k), Value: gobEncode(schema)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

// SetPartitionAssignment records a partition's current leader hint and
// replica set, as reported by the replica group itself or an operator
// rebalance decision.
func (s *Service) SetPartitionAssignment(a PartitionAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := PartKey{SpaceID: a.SpaceID, PartID: a.PartID}
	steps := []step{{Kind: kindPut, Key: partKey(k), Value: gobEncode(a)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

// RegisterHost records a storage host as known to the cluster.
func (s *Service) RegisterHost(host HostDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := []step{{Kind: kindPut, Key: hostKey(host.Addr), Value: gobEncode(host)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

// RemoveHost deregisters a storage host, e.g. after a confirmed
// decommission.
func (s *Service) RemoveHost(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps := []step{{Kind: kindDelete, Key: hostKey(addr)}}
	steps, err := s.bumpVersion(steps)
	if err != nil {
		return err
	}
	return s.propose(steps)
}

var errWorkerIDsExhausted = fmt.Errorf("metad: all %d snowflake worker ids leased", maxWorkerID+1)
