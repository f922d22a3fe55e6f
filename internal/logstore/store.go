package logstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// LogEntry is a single persisted line.
type LogEntry struct {
	ID   uint64 `json:"id"`
	Text string `json:"text"`
}

// DurableLogStore is the contract the ingestor and the viewport rely on.
type DurableLogStore interface {
	// Append persists lines in order as one atomic batch and returns the new
	// total count. Either every line is durable or none is.
	Append(ctx context.Context, lines []string) (uint64, error)
	// Count returns the number of live entries, reflecting every completed Append.
	Count(ctx context.Context) (uint64, error)
	// GetRange returns entries with lowID <= id <= highID in ascending order.
	// Inverted or out-of-bounds ranges yield the valid subset, possibly empty.
	GetRange(ctx context.Context, lowID, highID uint64) ([]LogEntry, error)
	// Clear removes every entry and restarts the id sequence.
	Clear(ctx context.Context) error
	Close() error
}

// Watcher is implemented by stores that can signal changes.
type Watcher interface {
	// Changes returns a channel that is closed on the next Append or Clear.
	Changes() <-chan struct{}
}

// ErrStorageFailure is matched by every *StorageError.
var ErrStorageFailure = errors.New("storage failure")

// ErrClosed is returned for operations on a closed store.
var ErrClosed = errors.New("logstore: closed")

// StorageError wraps an I/O failure from the storage engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("logstore: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorageFailure) true for any StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// notifier wakes waiters by closing and replacing a channel.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier { return &notifier{ch: make(chan struct{})} }

func (n *notifier) changes() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

func (n *notifier) broadcast() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}

// normalizeRange maps a requested [low, high] onto valid ids. ok is false when
// nothing can match.
func normalizeRange(low, high, lastID uint64) (uint64, uint64, bool) {
	if low == 0 {
		low = 1
	}
	if high > lastID {
		high = lastID
	}
	if low > high {
		return 0, 0, false
	}
	return low, high, true
}
