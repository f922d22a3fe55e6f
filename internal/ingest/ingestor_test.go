package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/tailview/internal/logstore"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one chunk per Read call.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

// flakyStore fails the first `failures` appends.
type flakyStore struct {
	*logstore.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) Append(ctx context.Context, lines []string) (uint64, error) {
	s.mu.Lock()
	s.calls++
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return 0, &logstore.StorageError{Op: "append", Err: errors.New("disk full")}
	}
	return s.MemoryStore.Append(ctx, lines)
}

func runIngest(t *testing.T, store logstore.DurableLogStore, opts Options, chunks ...string) error {
	t.Helper()
	in, err := New(&ReaderSource{R: &chunkReader{chunks: chunks}}, store, opts)
	require.NoError(t, err)
	return in.Run(context.Background())
}

func rangeAll(t *testing.T, s logstore.DurableLogStore) []logstore.LogEntry {
	t.Helper()
	got, err := s.GetRange(context.Background(), 1, 1<<20)
	require.NoError(t, err)
	return got
}

func TestIngestSingleChunk(t *testing.T) {
	store := logstore.NewMemory()
	require.NoError(t, runIngest(t, store, Options{}, "a\nb\nc\n"))
	require.Equal(t, []logstore.LogEntry{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 3, Text: "c"}}, rangeAll(t, store))
	n, _ := store.Count(context.Background())
	require.EqualValues(t, 3, n)
}

func TestIngestSplitMidLine(t *testing.T) {
	store := logstore.NewMemory()
	require.NoError(t, runIngest(t, store, Options{}, "ab", "c\nd\n"))
	require.Equal(t, []logstore.LogEntry{{ID: 1, Text: "abc"}, {ID: 2, Text: "d"}}, rangeAll(t, store))
}

func TestIngestFlushesUnterminatedTail(t *testing.T) {
	store := logstore.NewMemory()
	require.NoError(t, runIngest(t, store, Options{}, "one\n", "xyz"))
	got := rangeAll(t, store)
	require.Len(t, got, 2)
	require.Equal(t, "xyz", got[1].Text)
}

func TestIngestOneAppendPerChunk(t *testing.T) {
	store := &flakyStore{MemoryStore: logstore.NewMemory()}
	var totals []uint64
	opts := Options{OnAppend: func(total uint64, _ int) { totals = append(totals, total) }}
	require.NoError(t, runIngest(t, store, opts, "a\nb\n", "c\nd\ne\n", "partial", " line\n"))
	require.Equal(t, 3, store.calls)
	require.Equal(t, []uint64{2, 5, 6}, totals)
}

func TestIngestRetriesAppend(t *testing.T) {
	store := &flakyStore{MemoryStore: logstore.NewMemory(), failures: 2}
	in, err := New(&ReaderSource{R: strings.NewReader("a\n")}, store, Options{AppendRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, in.Run(context.Background()))
	require.EqualValues(t, 2, in.Stats().Retries)
	require.Len(t, rangeAll(t, store), 1)
}

func TestIngestSurfacesStorageFailure(t *testing.T) {
	store := &flakyStore{MemoryStore: logstore.NewMemory(), failures: 10}
	err := runIngest(t, store, Options{AppendRetries: 1, RetryBackoff: time.Millisecond}, "a\n")
	require.ErrorIs(t, err, logstore.ErrStorageFailure)
	require.NotErrorIs(t, err, ErrStreamFailure)
	require.Equal(t, 2, store.calls)
}

func TestCancelInterruptsRetryBackoff(t *testing.T) {
	store := &flakyStore{MemoryStore: logstore.NewMemory(), failures: 100}
	in, err := New(&ReaderSource{R: strings.NewReader("a\n")}, store, Options{AppendRetries: 5, RetryBackoff: time.Minute})
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- in.Run(context.Background()) }()
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls >= 1
	}, time.Second, 5*time.Millisecond)

	began := time.Now()
	in.Cancel()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
		require.Less(t, time.Since(began), 5*time.Second)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run kept sleeping through the retry backoff after Cancel")
	}
	store.mu.Lock()
	require.Equal(t, 1, store.calls)
	store.mu.Unlock()
	require.Empty(t, rangeAll(t, store))
}

func TestIngestStreamFailureKeepsAppendedLines(t *testing.T) {
	store := logstore.NewMemory()
	r := io.MultiReader(strings.NewReader("kept\n"), &failingReader{})
	in, err := New(&ReaderSource{R: r}, store, Options{})
	require.NoError(t, err)
	err = in.Run(context.Background())
	require.ErrorIs(t, err, ErrStreamFailure)
	require.Equal(t, []logstore.LogEntry{{ID: 1, Text: "kept"}}, rangeAll(t, store))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestIngestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "yes" {
			http.Error(w, "missing header", http.StatusBadRequest)
			return
		}
		f := w.(http.Flusher)
		_, _ = io.WriteString(w, "line 1\nli")
		f.Flush()
		_, _ = io.WriteString(w, "ne 2\nline 3")
	}))
	defer srv.Close()

	store := logstore.NewMemory()
	in, err := New(NewHTTPSource(srv.URL, http.Header{"X-Test": {"yes"}}), store, Options{})
	require.NoError(t, err)
	require.NoError(t, in.Run(context.Background()))
	var texts []string
	for _, e := range rangeAll(t, store) {
		texts = append(texts, e.Text)
	}
	require.Equal(t, []string{"line 1", "line 2", "line 3"}, texts)
}

func TestIngestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	in, err := New(NewHTTPSource(srv.URL, nil), logstore.NewMemory(), Options{})
	require.NoError(t, err)
	err = in.Run(context.Background())
	require.ErrorIs(t, err, ErrStreamFailure)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "open", se.Op)
}

func TestIngestCancelStopsBetweenChunks(t *testing.T) {
	pr, pw := io.Pipe()
	store := logstore.NewMemory()
	appended := make(chan struct{}, 1)
	in, err := New(&ReaderSource{R: pr}, store, Options{OnAppend: func(uint64, int) { appended <- struct{}{} }})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- in.Run(context.Background()) }()

	_, _ = pw.Write([]byte("before\n"))
	<-appended
	in.Cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "ingestor did not stop after Cancel")
	}
	<-in.Done()
	require.Equal(t, []logstore.LogEntry{{ID: 1, Text: "before"}}, rangeAll(t, store))
}

func TestCancelBeforeRun(t *testing.T) {
	in, err := New(&ReaderSource{R: strings.NewReader("")}, logstore.NewMemory(), Options{})
	require.NoError(t, err)
	in.Cancel()
	select {
	case <-in.Done():
	default:
		require.FailNow(t, "Done should be closed after Cancel without Run")
	}
	require.ErrorIs(t, in.Run(context.Background()), context.Canceled)
}
