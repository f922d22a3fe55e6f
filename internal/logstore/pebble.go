package logstore

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tailview/internal/storage/pebble"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// maxPrealloc bounds the slice capacity reserved for a range read.
const maxPrealloc = 4096

// PebbleOptions configures a PebbleStore.
type PebbleOptions struct {
	Logger logpkg.Logger
}

// PebbleStore is a DurableLogStore over a Pebble keyspace.
type PebbleStore struct {
	db     *pebblestore.DB
	logger logpkg.Logger

	// mu serializes writers (Append, Clear) and guards meta.
	mu     sync.Mutex
	meta   meta
	closed bool
	notify *notifier
}

// OpenPebble loads the id sequence from metadata (if any) and returns a store.
// The caller keeps ownership of db; Close on the store does not close it.
func OpenPebble(db *pebblestore.DB, opts PebbleOptions) (*PebbleStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	s := &PebbleStore{db: db, logger: logger, notify: newNotifier()}
	raw, err := db.Get(metaKey)
	switch {
	case err == nil:
		if m, ok := decodeMeta(raw); ok {
			s.meta = m
		}
	case pebblestore.IsNotFound(err):
	default:
		return nil, storageErr("open", err)
	}
	return s, nil
}

// Append writes every line and the updated metadata in one batch.
func (s *PebbleStore) Append(ctx context.Context, lines []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(lines) == 0 {
		return s.meta.count, nil
	}

	next := s.meta
	err := s.db.Update(ctx, func(b *pebble.Batch) error {
		for _, line := range lines {
			next.lastID++
			next.count++
			if err := b.Set(KeyEntry(next.lastID), EncodeRecord(line), nil); err != nil {
				return err
			}
		}
		return b.Set(metaKey, next.encode(), nil)
	})
	if err != nil {
		return 0, storageErr("append", err)
	}
	// Sequence only advances once the batch is durable.
	s.meta = next
	s.notify.broadcast()
	return next.count, nil
}

// Count returns the number of live entries.
func (s *PebbleStore) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.meta.count, nil
}

// GetRange scans [lowID, highID] with a single iterator, which gives a
// consistent view even while appends continue.
func (s *PebbleStore) GetRange(ctx context.Context, lowID, highID uint64) ([]LogEntry, error) {
	s.mu.Lock()
	closed, last := s.closed, s.meta.lastID
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	low, high, ok := normalizeRange(lowID, highID, last)
	if !ok {
		return []LogEntry{}, nil
	}

	entries := make([]LogEntry, 0, min(high-low+1, maxPrealloc))
	err := s.db.Scan(ctx, KeyEntry(low), append(KeyEntry(high), 0x00), func(key, value []byte) error {
		id, ok := idFromKey(key)
		if !ok {
			return nil
		}
		text, ok := DecodeRecord(value)
		if !ok {
			s.logger.Warn("skipping corrupt log record", logpkg.Uint64("id", id))
			return nil
		}
		entries = append(entries, LogEntry{ID: id, Text: text})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, storageErr("get_range", err)
	}
	return entries, nil
}

// Clear removes entries and metadata with one range delete.
func (s *PebbleStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.DeleteRange(ctx, keyPrefix, keyPrefixEnd); err != nil {
		return storageErr("clear", err)
	}
	s.meta = meta{}
	s.notify.broadcast()
	s.logger.Info("log store cleared")
	return nil
}

// Changes implements Watcher.
func (s *PebbleStore) Changes() <-chan struct{} { return s.notify.changes() }

// Compact asks Pebble to reclaim space left by Clear.
func (s *PebbleStore) Compact() error {
	return storageErr("compact", s.db.CompactRange(keyPrefix, keyPrefixEnd))
}

// Close marks the store closed. The underlying DB is owned by the caller.
func (s *PebbleStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
