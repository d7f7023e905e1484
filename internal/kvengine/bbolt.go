package kvengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/nebulastore/internal/errs"
	bolt "go.etcd.io/bbolt"
)

// Options mirror the pass-through engine knobs of spec.md §6
// (target_file_size_base, write_buffer_size, ...): opaque because
// their effect is engine-specific. BoltEngine interprets none of them
// (bbolt is not an LSM engine) and reports each one through
// OnUnusedOption; it does not log them itself.
type Options struct {
	DataDir string
	// Passthrough holds engine-specific knobs this engine does not
	// interpret. OnUnusedOption, if set, is called once per ignored
	// key so the caller can log it.
	Passthrough     map[string]string
	OnUnusedOption  func(key, value string)
}

// BoltEngine implements Engine over one partition's own bbolt database
// file, with the partition's keys in a single top-level bucket named
// for it; no two partitions share a file, so partitions "must not
// interfere" (spec.md §5).
//
// Grounded on pkg/storage/boltdb.go's NewBoltStore/CreateBucketIfNotExists
// shape, generalized from one bucket per entity kind to one bucket per
// partition holding raw codec'd keys.
type BoltEngine struct {
	db       *bolt.DB
	partBkt  []byte
}

// OpenBoltEngine opens (creating if absent) the bbolt file for one
// partition of one space under opts.DataDir, at
// <DataDir>/<spaceId>/data/p<partId>.db — matching the per-host
// on-disk layout of spec.md §6.
func OpenBoltEngine(opts Options, spaceID uint32, partID uint32) (*BoltEngine, error) {
	dir := filepath.Join(opts.DataDir, fmt.Sprintf("%d", spaceID), "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.IoError, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("p%d.db", partID))

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errs.New(errs.IoError, err)
	}

	bkt := []byte(fmt.Sprintf("part-%d", partID))
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bkt)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.New(errs.IoError, err)
	}

	if opts.OnUnusedOption != nil {
		for k, v := range opts.Passthrough {
			if !boltUnderstands(k) {
				opts.OnUnusedOption(k, v)
			}
		}
	}

	return &BoltEngine{db: db, partBkt: bkt}, nil
}

// boltUnderstands reports whether k is a knob bbolt itself can honor.
// bbolt has no LSM compaction tuning, so everything currently in
// spec.md §6's pass-through table is foreign to it.
func boltUnderstands(k string) bool {
	return false
}

func (e *BoltEngine) Get(key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(e.partBkt).Get(key)
		if v == nil {
			return NotFound(key)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (e *BoltEngine) MultiGet(keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.partBkt)
		for i, k := range keys {
			if v := b.Get(k); v != nil {
				out[i] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	return out, err
}

func (e *BoltEngine) Write(batch Batch) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(e.partBkt)
		for _, op := range batch {
			if op.Put {
				if err := b.Put(op.Key, op.Value); err != nil {
					return err
				}
			} else {
				if err := b.Delete(op.Key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (e *BoltEngine) Prefix(prefix []byte) (Iterator, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, errs.New(errs.IoError, err)
	}
	return &boltIterator{
		tx:     tx,
		cursor: tx.Bucket(e.partBkt).Cursor(),
		prefix: append([]byte(nil), prefix...),
		isEnd:  func(k []byte) bool { return k == nil || !hasPrefix(k, prefix) },
		seek:   prefix,
	}, nil
}

func (e *BoltEngine) Range(begin, end []byte) (Iterator, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, errs.New(errs.IoError, err)
	}
	return &boltIterator{
		tx:     tx,
		cursor: tx.Bucket(e.partBkt).Cursor(),
		isEnd: func(k []byte) bool {
			return k == nil || (end != nil && boltCompare(k, end) >= 0)
		},
		seek: begin,
	}, nil
}

func boltCompare(a, b []byte) int {
	switch {
	case len(a) < len(b):
		for i := range a {
			if a[i] != b[i] {
				return int(a[i]) - int(b[i])
			}
		}
		return -1
	default:
		for i := range b {
			if a[i] != b[i] {
				return int(a[i]) - int(b[i])
			}
		}
		if len(a) > len(b) {
			return 1
		}
		return 0
	}
}

// IngestSSTFiles is an atomic bulk import for bootstrap/backup
// restore (spec.md §4.3). bbolt has no native SST ingest, so this
// engine implements it as a single transaction that merges each
// source bbolt file's partition bucket into this one, which preserves
// atomicity and ordering even though it is not a true SST-level
// ingest.
func (e *BoltEngine) IngestSSTFiles(paths []string) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		dst := tx.Bucket(e.partBkt)
		for _, path := range paths {
			src, err := bolt.Open(path, 0o400, &bolt.Options{ReadOnly: true})
			if err != nil {
				return errs.New(errs.IoError, err)
			}
			err = src.View(func(stx *bolt.Tx) error {
				return stx.Bucket(e.partBkt).ForEach(func(k, v []byte) error {
					return dst.Put(k, v)
				})
			})
			src.Close()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *BoltEngine) Compact() error { return nil } // bbolt auto-reclaims free pages; no manual compaction knob

func (e *BoltEngine) Flush() error {
	return e.db.Sync()
}

func (e *BoltEngine) Close() error {
	return e.db.Close()
}

// boltIterator adapts a bbolt cursor (backed by a long-lived read
// transaction, which is bbolt's consistent-snapshot mechanism) to the
// Iterator contract, yielding in batches of iterBatchSize keys so
// callers can observe context cancellation between batches.
type boltIterator struct {
	tx       *bolt.Tx
	cursor   *bolt.Cursor
	prefix   []byte
	isEnd    func(key []byte) bool
	seek     []byte
	started  bool
	cur      KVPair
	err      error
	closed   bool
	sinceYield int
}

func (it *boltIterator) Next(ctx context.Context) bool {
	if it.closed || it.err != nil {
		return false
	}
	var k, v []byte
	if !it.started {
		it.started = true
		k, v = it.cursor.Seek(it.seek)
	} else {
		if it.sinceYield >= iterBatchSize {
			it.sinceYield = 0
			select {
			case <-ctx.Done():
				it.err = ctx.Err()
				return false
			default:
			}
		}
		k, v = it.cursor.Next()
	}
	it.sinceYield++
	if it.isEnd(k) {
		return false
	}
	it.cur = KVPair{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
	return true
}

func (it *boltIterator) Item() KVPair { return it.cur }
func (it *boltIterator) Err() error   { return it.err }

func (it *boltIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.tx.Rollback()
}
