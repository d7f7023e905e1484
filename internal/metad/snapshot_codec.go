package metad

import (
	"encoding/gob"
	"io"

	"github.com/cuemby/nebulastore/internal/kvengine"
)

// encodeSnapshotStream/decodeSnapshotStream frame the catalog's full
// key space as a single gob-encoded slice, same shape as
// internal/mutation/snapshot_codec.go: the metadata catalog is small
// enough to hold in memory during Persist/Restore rather than stream.
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
