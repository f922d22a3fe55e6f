package ingest

import (
	"errors"
	"fmt"
)

// ErrStreamFailure is matched by every *StreamError.
var ErrStreamFailure = errors.New("stream failure")

// StreamError reports a network or read failure during ingestion. Ingestion
// stops; lines appended before the failure stay durable.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("ingest: %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func (e *StreamError) Is(target error) bool { return target == ErrStreamFailure }
