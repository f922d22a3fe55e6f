package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// DB is a Pebble instance with a fixed commit durability and a metrics hook.
type DB struct {
	inner   *pebble.DB
	commit  *pebble.WriteOptions
	metrics MetricsHook
}

// Open opens or creates the database at opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: DataDir is required")
	}
	po := &pebble.Options{}
	if opts.PebbleOptions != nil {
		cp := *opts.PebbleOptions
		po = &cp
	}
	if opts.Logger != nil {
		po.Logger = opts.Logger
	}
	commit := pebble.NoSync
	if opts.Fsync.configure(po, opts.FsyncInterval) {
		commit = pebble.Sync
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", opts.DataDir, err)
	}
	var m MetricsHook = NoopMetrics{}
	if opts.Metrics != nil {
		m = opts.Metrics
	}
	return &DB{inner: inner, commit: commit, metrics: m}, nil
}

// Close releases the database. Closing a nil DB is a no-op.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Update stages writes through fn and commits them atomically. Nothing is
// applied when fn fails or ctx is already done.
func (db *DB) Update(ctx context.Context, fn func(b *pebble.Batch) error) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	return db.commitBatch(ctx, b)
}

func (db *DB) commitBatch(ctx context.Context, b *pebble.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	began := time.Now()
	err := b.Commit(db.commit)
	db.metrics.ObserveBatchCommit(time.Since(began), int(b.Count()), b.Len())
	return err
}

// Set writes a single key.
func (db *DB) Set(ctx context.Context, key, value []byte) error {
	began := time.Now()
	err := db.Update(ctx, func(b *pebble.Batch) error { return b.Set(key, value, nil) })
	if err == nil {
		db.metrics.ObserveWrite(time.Since(began), len(key)+len(value))
	}
	return err
}

// Get returns a copy of the value stored at key. A missing key yields an
// error for which IsNotFound is true.
func (db *DB) Get(key []byte) ([]byte, error) {
	began := time.Now()
	v, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	db.metrics.ObserveRead(time.Since(began), len(out))
	return out, nil
}

// Scan visits keys in [lower, upper) in order from one iterator, so fn sees a
// point-in-time view. Key and value are only valid during the call. Scan
// stops at the first error from fn or ctx.
func (db *DB) Scan(ctx context.Context, lower, upper []byte, fn func(key, value []byte) error) error {
	began := time.Now()
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	read := 0
	for ok := it.First(); ok; ok = it.Next() {
		if err = ctx.Err(); err != nil {
			break
		}
		v := it.Value()
		read += len(v)
		if err = fn(it.Key(), v); err != nil {
			break
		}
	}
	if err == nil {
		err = it.Error()
	}
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	db.metrics.ObserveRead(time.Since(began), read)
	return err
}

// DeleteRange drops [start, end) in one committed batch.
func (db *DB) DeleteRange(ctx context.Context, start, end []byte) error {
	return db.Update(ctx, func(b *pebble.Batch) error { return b.DeleteRange(start, end, nil) })
}

// CompactRange compacts [start, end) so space held by deleted keys is reclaimed.
func (db *DB) CompactRange(start, end []byte) error {
	return db.inner.Compact(start, end, true)
}

// Ping opens and closes an iterator to confirm the engine is serving reads.
func (db *DB) Ping() error {
	it, err := db.inner.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool { return errors.Is(err, pebble.ErrNotFound) }
