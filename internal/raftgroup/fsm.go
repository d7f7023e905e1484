package raftgroup

import (
	"io"

	"github.com/hashicorp/raft"
)

// fsmAdapter satisfies raft.FSM by delegating to a StateMachine,
// keeping hashicorp/raft's types out of the mutation pipeline's view.
// Grounded on pkg/manager/fsm.go's WarrenFSM shape (Apply/Snapshot/
// Restore over a mutex-guarded store), generalized so the entry
// format and the store itself are both opaque to this package.
type fsmAdapter struct {
	sm StateMachine
}

func (f *fsmAdapter) Apply(log *raft.Log) interface{} {
	return f.sm.Apply(log.Data)
}

func (f *fsmAdapter) Snapshot() (raft.FSMSnapshot, error) {
	snap, err := f.sm.Snapshot()
	if err != nil {
		return nil, err
	}
	return &snapshotAdapter{snap: snap}, nil
}

func (f *fsmAdapter) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	return f.sm.Restore(rc)
}

// snapshotAdapter satisfies raft.FSMSnapshot by delegating Persist's
// io.Writer half to Snapshot.Persist, per pkg/manager/fsm.go's
// WarrenSnapshot.Persist/Release shape (encode-then-close-the-sink,
// cancel on error).
type snapshotAdapter struct {
	snap Snapshot
}

func (s *snapshotAdapter) Persist(sink raft.SnapshotSink) error {
	if err := s.snap.Persist(sink); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *snapshotAdapter) Release() {
	s.snap.Release()
}
