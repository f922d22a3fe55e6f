package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/tailview/internal/logstore"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// Options configures an Ingestor.
type Options struct {
	// ChunkSize is the maximum read size per chunk.
	ChunkSize int
	// Charset is the stream's text encoding label ("" means UTF-8).
	Charset string
	// AppendRetries is how many times a failed Append is retried before the
	// storage error is surfaced and ingestion stops.
	AppendRetries int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
	// OnAppend is called after every durable append with the store's new
	// total and the number of lines in the batch.
	OnAppend func(total uint64, lines int)
	Logger   logpkg.Logger
}

// Stats are cumulative counters for one Ingestor.
type Stats struct {
	Lines   uint64
	Bytes   uint64
	Batches uint64
	Retries uint64
}

// Ingestor runs the read-decode-append loop for one source.
type Ingestor struct {
	src    Source
	store  logstore.DurableLogStore
	opts   Options
	logger logpkg.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	done    chan struct{}

	lines, bytes, batches, retries atomic.Uint64
}

// New validates options and returns an Ingestor ready to Run once.
func New(src Source, store logstore.DurableLogStore, opts Options) (*Ingestor, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	if opts.AppendRetries < 0 {
		opts.AppendRetries = 0
	}
	// Fail fast on an unknown charset.
	if _, err := NewDecoder(opts.Charset); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	}
	return &Ingestor{
		src:    src,
		store:  store,
		opts:   opts,
		logger: logger.With(logpkg.Component("ingest"), logpkg.Str("source", src.String())),
		done:   make(chan struct{}),
	}, nil
}

// Run ingests until end of stream, failure, or cancellation. It returns nil
// at end of stream, context.Canceled after Cancel, a *StreamError on read
// failure, or a *logstore.StorageError once append retries are exhausted.
func (in *Ingestor) Run(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		// A nil cancel means Cancel got here first.
		cancelledEarly := in.cancel == nil
		in.mu.Unlock()
		if cancelledEarly {
			return context.Canceled
		}
		return errors.New("ingest: Run called twice")
	}
	in.started = true
	ctx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.mu.Unlock()
	defer close(in.done)
	defer cancel()

	body, err := in.src.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		in.logger.Error("stream open failed", logpkg.Err(err))
		return asStreamError("open", err)
	}
	defer body.Close()
	// Unblock a Read stuck on the network when cancelled.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	dec, _ := NewDecoder(in.opts.Charset)
	it := NewLineIterator(ctx, body, dec, in.opts.ChunkSize)
	in.logger.Info("ingestion started")

	var read int64
	for it.Next() {
		in.bytes.Add(uint64(it.BytesRead() - read))
		read = it.BytesRead()
		if err := in.appendWithRetry(ctx, it.Batch()); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				in.logger.Info("ingestion cancelled during append retry", logpkg.Uint64("lines", in.lines.Load()))
				return err
			}
			in.logger.Error("append failed, stopping ingestion", logpkg.Err(err))
			return err
		}
	}
	in.bytes.Add(uint64(it.BytesRead() - read))

	if err := it.Err(); err != nil {
		if ctx.Err() != nil {
			in.logger.Info("ingestion cancelled", logpkg.Uint64("lines", in.lines.Load()))
			return ctx.Err()
		}
		in.logger.Error("stream read failed", logpkg.Err(err))
		return asStreamError("read", err)
	}
	in.logger.Info("stream ended", logpkg.Uint64("lines", in.lines.Load()), logpkg.Uint64("bytes", in.bytes.Load()))
	return nil
}

// appendWithRetry stores one batch. An attempt in flight completes even if
// ctx is cancelled meanwhile; cancellation only cuts short the wait between
// attempts, in which case ctx's error is returned.
func (in *Ingestor) appendWithRetry(ctx context.Context, lines []string) error {
	appendCtx := context.WithoutCancel(ctx)
	backoff := in.opts.RetryBackoff
	var err error
	for attempt := 0; attempt <= in.opts.AppendRetries; attempt++ {
		if attempt > 0 {
			in.retries.Add(1)
			in.logger.Warn("retrying append", logpkg.Int("attempt", attempt), logpkg.Duration("backoff", backoff), logpkg.Err(err))
			if werr := sleepCtx(ctx, backoff); werr != nil {
				return werr
			}
			backoff *= 2
		}
		var total uint64
		total, err = in.store.Append(appendCtx, lines)
		if err == nil {
			in.lines.Add(uint64(len(lines)))
			in.batches.Add(1)
			in.logger.Debug("batch appended", logpkg.Int("lines", len(lines)), logpkg.Uint64("total", total))
			if in.opts.OnAppend != nil {
				in.opts.OnAppend(total, len(lines))
			}
			return nil
		}
		if errors.Is(err, logstore.ErrClosed) {
			return err
		}
	}
	return err
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the loop between chunks. Already appended data is untouched.
// It is safe to call before Run or more than once.
func (in *Ingestor) Cancel() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancel != nil {
		in.cancel()
		return
	}
	if !in.started {
		// Never ran: mark as finished so Done does not block forever.
		in.started = true
		close(in.done)
	}
}

// Done is closed once Run has returned (or Cancel was called before Run).
func (in *Ingestor) Done() <-chan struct{} { return in.done }

// Stats returns a snapshot of the counters.
func (in *Ingestor) Stats() Stats {
	return Stats{
		Lines:   in.lines.Load(),
		Bytes:   in.bytes.Load(),
		Batches: in.batches.Load(),
		Retries: in.retries.Load(),
	}
}

func asStreamError(op string, err error) error {
	var se *StreamError
	if errors.As(err, &se) {
		return err
	}
	return &StreamError{Op: op, Err: err}
}
