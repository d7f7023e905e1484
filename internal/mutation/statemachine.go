package mutation

import (
	"context"
	"io"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

// idempotencyCacheSize bounds how many recent plan idempotency keys a
// partition remembers; a replayed paired-edge retry older than this
// many entries is re-applied (harmless, since kv puts are themselves
// idempotent) rather than rejected.
const idempotencyCacheSize = 4096

// StateMachine replays committed plans into one partition's kv engine.
// It implements raftgroup.StateMachine; mutation.Pipeline builds the
// plans this replays and never touches the engine except through it.
//
// Grounded on pkg/manager/fsm.go's WarrenFSM (mutex-free here because
// raft.Raft already guarantees Apply calls for one partition are
// strictly sequential; the teacher's mutex instead protects a BoltDB
// store that also serves unrelated concurrent API reads, which this
// package's read pipeline issues directly against the engine instead).
type StateMachine struct {
	engine kvengine.Engine
	seen   *lru.Cache // idempotency key -> struct{}
}

// NewStateMachine wraps engine for one partition.
func NewStateMachine(engine kvengine.Engine) *StateMachine {
	cache, _ := lru.New(idempotencyCacheSize) // only errors on a non-positive size
	return &StateMachine{engine: engine, seen: cache}
}

// ApplyResult is what Group.Apply returns via StateMachine.Apply for
// every plan, so proposers can tell a no-op replay (duplicate) from a
// fresh commit without re-deriving it from the batch itself.
type ApplyResult struct {
	Duplicate bool
	Err       error
}

func (sm *StateMachine) Apply(entry []byte) any {
	p, err := decodePlan(entry)
	if err != nil {
		return ApplyResult{Err: err}
	}

	if p.IdempotencyKey != "" {
		if _, dup := sm.seen.Get(p.IdempotencyKey); dup {
			return ApplyResult{Duplicate: true}
		}
	}

	if err := sm.engine.Write(p.toBatch()); err != nil {
		return ApplyResult{Err: err}
	}

	if p.IdempotencyKey != "" {
		sm.seen.Add(p.IdempotencyKey, struct{}{})
	}
	return ApplyResult{}
}

// Snapshot exports every key the engine holds for this partition, a
// plain concatenation of codec'd key/value pairs; the kv engine's own
// ordering already makes this deterministic across replicas.
func (sm *StateMachine) Snapshot() (raftgroup.Snapshot, error) {
	it, err := sm.engine.Prefix(nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var pairs []kvengine.KVPair
	for it.Next(context.Background()) {
		pairs = append(pairs, it.Item())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return &engineSnapshot{pairs: pairs}, nil
}

// Restore replaces this partition's engine content with a previously
// persisted snapshot stream.
func (sm *StateMachine) Restore(r io.ReadCloser) error {
	defer r.Close()
	pairs, err := decodeSnapshotStream(r)
	if err != nil {
		return err
	}
	batch := make(kvengine.Batch, 0, len(pairs))
	for _, kv := range pairs {
		batch = append(batch, kvengine.PutOp(kv.Key, kv.Value))
	}
	return sm.engine.Write(batch)
}

type engineSnapshot struct {
	pairs []kvengine.KVPair
}

func (s *engineSnapshot) Persist(w io.Writer) error {
	return encodeSnapshotStream(w, s.pairs)
}

func (s *engineSnapshot) Release() {}
