package metad

import (
	"bytes"
	"encoding/gob"

	"github.com/cuemby/nebulastore/internal/kvengine"
)

// kind mirrors internal/mutation/plan.go's step kind: the FSM replays
// raw kv effects only, never catalog-shaped commands.
type kind uint8

const (
	kindPut kind = iota
	kindDelete
)

type step struct {
	Kind  kind
	Key   []byte
	Value []byte
}

// plan is one Raft log entry applied atomically to the catalog
// engine.
type plan struct {
	Steps []step
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
