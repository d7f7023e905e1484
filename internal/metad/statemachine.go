package metad

import (
	"context"
	"io"

	"github.com/cuemby/nebulastore/internal/kvengine"
	"github.com/cuemby/nebulastore/internal/raftgroup"
)

// StateMachine replays committed catalog plans into the metadata
// group's kv engine. Grounded on internal/mutation/statemachine.go's
// shape; no idempotency cache here, since catalog commands are
// operator-driven and low-rate rather than the data plane's
// paired-edge retries.
type StateMachine struct {
	engine kvengine.Engine
}

func NewStateMachine(engine kvengine.Engine) *StateMachine {
	return &StateMachine{engine: engine}
}

// ApplyResult is what every committed plan returns to its proposer.
type ApplyResult struct {
	Err error
}

func (sm *StateMachine) Apply(entry []byte) any {
	p, err := decodePlan(entry)
	if err != nil {
		return ApplyResult{Err: err}
	}
	if err := sm.engine.Write(p.toBatch()); err != nil {
		return ApplyResult{Err: err}
	}
	return ApplyResult{}
}

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
