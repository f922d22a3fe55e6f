package ingest

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 32 << 10

// LineIterator pulls chunks from a reader and yields one batch of complete
// lines per chunk that completed at least one line. At end of stream the
// trailing unterminated segment is yielded as a last batch.
//
//	it := ingest.NewLineIterator(ctx, r, dec, 0)
//	for it.Next() {
//	    use(it.Batch())
//	}
//	if err := it.Err(); err != nil { ... }
type LineIterator struct {
	ctx   context.Context
	r     io.Reader
	dec   *Decoder
	buf   []byte
	batch []string
	err   error
	done  bool
	bytes int64
}

// NewLineIterator wraps r. A chunkSize <= 0 uses DefaultChunkSize.
func NewLineIterator(ctx context.Context, r io.Reader, dec *Decoder, chunkSize int) *LineIterator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LineIterator{ctx: ctx, r: r, dec: dec, buf: make([]byte, chunkSize)}
}

// Next advances to the next non-empty batch. It returns false at end of
// stream, on error, or once ctx is cancelled (checked between chunks).
func (it *LineIterator) Next() bool {
	it.batch = nil
	for !it.done {
		if err := it.ctx.Err(); err != nil {
			it.err, it.done = err, true
			return false
		}
		n, rerr := it.r.Read(it.buf)
		if n > 0 {
			it.bytes += int64(n)
			lines, err := it.dec.Feed(it.buf[:n])
			if err != nil {
				it.err, it.done = err, true
				return false
			}
			it.batch = lines
		}
		if rerr != nil {
			it.done = true
			if !errors.Is(rerr, io.EOF) {
				// Lines completed before the failure are still handed out;
				// the error surfaces on the following Next.
				it.err = rerr
				return len(it.batch) > 0
			}
			tail, err := it.dec.Flush()
			if err != nil {
				it.err = err
				return len(it.batch) > 0
			}
			it.batch = append(it.batch, tail...)
			return len(it.batch) > 0
		}
		if len(it.batch) > 0 {
			return true
		}
	}
	return false
}

// Batch returns the lines produced by the last successful Next.
func (it *LineIterator) Batch() []string { return it.batch }

// Err returns the first non-EOF error encountered.
func (it *LineIterator) Err() error { return it.err }

// BytesRead is the total number of raw bytes consumed.
func (it *LineIterator) BytesRead() int64 { return it.bytes }
