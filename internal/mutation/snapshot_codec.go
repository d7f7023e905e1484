package mutation

import (
	"encoding/gob"
	"io"

	"github.com/cuemby/nebulastore/internal/kvengine"
)

// encodeSnapshotStream/decodeSnapshotStream frame a partition's full
// key space as a single gob-encoded slice. Partition snapshots are
// bounded by spec.md's per-partition sizing guidance, so holding the
// whole thing in memory during Persist/Restore (mirroring
// pkg/manager/fsm.go's WarrenSnapshot, which does the same for
// cluster state) is the teacher's own approach rather than a
// streaming encoder.
func encodeSnapshotStream(w io.Writer, pairs []kvengine.KVPair) error {
	return gob.NewEncoder(w).Encode(pairs)
}

func decodeSnapshotStream(r io.Reader) ([]kvengine.KVPair, error) {
	var pairs []kvengine.KVPair
	if err := gob.NewDecoder(r).Decode(&pairs); err != nil && err != io.EOF {
		return nil, err
	}
	return pairs, nil
}
