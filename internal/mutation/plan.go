package mutation

import (
	"bytes"
	"encoding/gob"

	"github.com/cuemby/nebulastore/internal/kvengine"
)

// kind enumerates the kv-level effect of one planned operation; the
// FSM replays these directly into the kv engine without any further
// interpretation of what entity they belong to.
type kind uint8

const (
	kindPut kind = iota
	kindDelete
)

// step is one planned kv-level write, gob-encoded as part of a plan
// and replayed verbatim by the state machine. Using the raw codec'd
// key/value here (rather than a higher-level vertex/edge description)
// keeps the FSM free of any schema or partitioning knowledge — by the
// time a plan reaches Raft it is just bytes.
type step struct {
	Kind  kind
	Key   []byte
	Value []byte
}

// plan is one Raft log entry: an ordered batch of kv steps plus an
// idempotency key so paired-edge replays and client retries can be
// recognized and skipped by the FSM.
type plan struct {
	IdempotencyKey string
	Steps          []step
}

func encodePlan(p plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePlan(data []byte) (plan, error) {
	var p plan
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p)
	return p, err
}

func (p plan) toBatch() kvengine.Batch {
	batch := make(kvengine.Batch, 0, len(p.Steps))
	for _, s := range p.Steps {
		switch s.Kind {
		case kindPut:
			batch = append(batch, kvengine.PutOp(s.Key, s.Value))
		case kindDelete:
			batch = append(batch, kvengine.RemoveOp(s.Key))
		}
	}
	return batch
}
