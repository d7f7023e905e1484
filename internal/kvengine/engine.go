// Package kvengine implements the ordered key-value store contract of
// spec.md §4.3: point/prefix/range reads, atomic batched writes, bulk
// SST import, and best-effort maintenance, one instance per partition,
// each over its own bbolt database file.
//
// Grounded on pkg/storage/boltdb.go's bbolt usage, generalized from a
// bucket-per-entity-type layout to a bucket-per-partition layout whose
// keys are the codec's raw binary keys rather than JSON-valued structs
// keyed by id.
package kvengine

import (
	"bytes"
	"context"

	"github.com/cuemby/nebulastore/internal/errs"
)

// Op is one operation in an atomic Write batch.
type Op struct {
	Put    bool // false => Remove
	Key    []byte
	Value  []byte
}

// PutOp builds a put operation.
func PutOp(key, value []byte) Op { return Op{Put: true, Key: key, Value: value} }

// RemoveOp builds a remove operation.
func RemoveOp(key []byte) Op { return Op{Put: false, Key: key} }

// Batch is an ordered sequence of operations applied atomically by
// Write. Operations within a batch apply in order, so a Put followed
// by a Remove of the same key nets to a delete.
type Batch []Op

// KVPair is one entry yielded by an Iterator.
type KVPair struct {
	Key   []byte
	Value []byte
}

// Iterator yields key-value pairs in ascending byte order over a
// consistent snapshot taken at creation time. Next returns false once
// exhausted or the iterator's Close has been called; per spec.md §5,
// an iterator yields cooperatively in batches of ~128 keys and one
// further batch may be delivered after cancellation is requested.
type Iterator interface {
	Next(ctx context.Context) bool
	Item() KVPair
	Err() error
	Close() error
}

// Engine is the per-partition ordered KV contract consumed by the
// mutation and read pipelines.
type Engine interface {
	Get(key []byte) ([]byte, error) // errs.ItemNotFound if absent
	MultiGet(keys [][]byte) ([][]byte, error) // nil entry per not-found key
	Prefix(prefix []byte) (Iterator, error)
	Range(begin, end []byte) (Iterator, error) // half-open [begin,end)
	Write(batch Batch) error
	IngestSSTFiles(paths []string) error
	Compact() error
	Flush() error
	Close() error
}

// iterBatchSize bounds how many keys a single cooperative yield pulls
// from the underlying cursor before allowing a context check, per
// spec.md §5's "yields cooperatively between batches of ~128 keys".
const iterBatchSize = 128

// NotFound wraps errs.ItemNotFound for Get/MultiGet misses.
func NotFound(key []byte) error {
	return errs.New(errs.ItemNotFound, nil).WithHint(string(key))
}

// prefixUpperBound returns the lexicographically smallest key greater
// than every key with the given prefix, or nil if prefix is all 0xFF
// bytes (in which case there is no finite upper bound and callers must
// fall back to a plain prefix check per key).
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// hasPrefix reports whether key starts with prefix; used by iterators
// whose backend has no native prefix scan and must filter a range
// scan.
func hasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}
