package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/tailview/internal/config"
	"github.com/rzbill/tailview/internal/ingest"
	"github.com/rzbill/tailview/internal/runtime"
	"github.com/rzbill/tailview/internal/session"
	"github.com/rzbill/tailview/internal/viewport"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

func newTestServer(t *testing.T, stream string) (*Server, *session.Session) {
	t.Helper()
	ctx := context.Background()
	cfg := cfgpkg.Default()
	cfg.Store.Backend = cfgpkg.BackendMemory
	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	sess := session.New(rt.Store(), session.Static(&ingest.ReaderSource{R: strings.NewReader(stream)}), session.Options{
		Geometry:          viewport.DefaultGeometry(),
		ContainerHeightPx: 500,
	})
	if err := sess.Start(ctx); err != nil {
		t.Fatalf("session start: %v", err)
	}
	<-sess.Idle()
	t.Cleanup(sess.Stop)

	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, sess, logger), sess
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func numbered(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("x", i%3))
		b.WriteString("\n")
	}
	return b.String()
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t, "a\n")
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"backend":"memory"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestStatsHandler(t *testing.T) {
	s, _ := newTestServer(t, "a\nb\n")
	w := do(t, s, http.MethodGet, "/v1/stats", "")
	if w.Code != 200 {
		t.Fatalf("stats: %d", w.Code)
	}
	var got struct {
		Backend string `json:"backend"`
		Count   uint64 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Backend != "memory" || got.Count != 2 {
		t.Fatalf("stats = %+v", got)
	}
	if w = do(t, s, http.MethodPost, "/v1/stats", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post stats: %d", w.Code)
	}
}

func TestStateAndCount(t *testing.T) {
	s, _ := newTestServer(t, "a\nb\nc\n")
	w := do(t, s, http.MethodGet, "/v1/count", "")
	if w.Code != 200 || strings.TrimSpace(w.Body.String()) != `{"count":3}` {
		t.Fatalf("count: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/v1/state", "")
	var snap session.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Mode != "auto" || snap.Count != 3 || len(snap.Window.Rows) != 3 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.Window.Rows[2].Text != "c" || snap.Window.Rows[2].TopPx != 75 {
		t.Fatalf("row: %+v", snap.Window.Rows[2])
	}
}

func TestLogsHandler(t *testing.T) {
	s, _ := newTestServer(t, "a\nb\nc\nd\n")
	w := do(t, s, http.MethodGet, "/v1/logs?low=2&high=3", "")
	if w.Code != 200 {
		t.Fatalf("status: %d", w.Code)
	}
	var resp struct {
		Entries []struct {
			ID   uint64 `json:"id"`
			Text string `json:"text"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].ID != 2 || resp.Entries[1].Text != "c" {
		t.Fatalf("entries: %+v", resp.Entries)
	}

	// Out of range is an empty result, not an error.
	w = do(t, s, http.MethodGet, "/v1/logs?low=50&high=60", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"entries":[]`) {
		t.Fatalf("empty range: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/v1/logs?low=abc&high=3", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad low: %d", w.Code)
	}
}

func TestLogsLongPoll(t *testing.T) {
	s, _ := newTestServer(t, "a\n")
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- do(t, s, http.MethodGet, "/v1/logs?low=2&high=2&waitMs=5000", "") }()

	time.Sleep(50 * time.Millisecond)
	if _, err := s.rt.Store().Append(context.Background(), []string{"late"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case w := <-done:
		if w.Code != 200 || !strings.Contains(w.Body.String(), `"text":"late"`) {
			t.Fatalf("long poll: %d %s", w.Code, w.Body.String())
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("long poll did not wake on append")
	}

	w := do(t, s, http.MethodGet, "/v1/logs?low=9&high=9&waitMs=x", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad waitMs: %d", w.Code)
	}
}

func TestToggleAndScroll(t *testing.T) {
	s, _ := newTestServer(t, numbered(2000))

	w := do(t, s, http.MethodPost, "/v1/toggle", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"mode":"manual"`) {
		t.Fatalf("toggle: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodPost, "/v1/scroll", `{"offsetPx":250}`)
	if w.Code != 200 {
		t.Fatalf("scroll: %d", w.Code)
	}
	var win viewport.Window
	if err := json.Unmarshal(w.Body.Bytes(), &win); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if win.Low != 10 || win.High != 1010 || win.ModeName != "manual" {
		t.Fatalf("window: low=%d high=%d mode=%s", win.Low, win.High, win.ModeName)
	}

	w = do(t, s, http.MethodPost, "/v1/scroll", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/v1/scroll", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method: %d", w.Code)
	}
}

func TestResizeHandler(t *testing.T) {
	s, _ := newTestServer(t, numbered(100))
	w := do(t, s, http.MethodPost, "/v1/resize", `{"heightPx":250}`)
	if w.Code != 200 {
		t.Fatalf("resize: %d", w.Code)
	}
	var win viewport.Window
	if err := json.Unmarshal(w.Body.Bytes(), &win); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if win.PageSize != 15 || len(win.Rows) != 15 {
		t.Fatalf("page size %d rows %d", win.PageSize, len(win.Rows))
	}
	w = do(t, s, http.MethodPost, "/v1/resize", `{"heightPx":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative height: %d", w.Code)
	}
}

func TestResetHandler(t *testing.T) {
	s, sess := newTestServer(t, "a\nb\n")
	w := do(t, s, http.MethodPost, "/v1/reset", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset: %d", w.Code)
	}
	<-sess.Idle()
	// The static reader is drained, so the restarted ingestion adds nothing.
	if sess.Count() != 0 {
		t.Fatalf("count after reset: %d", sess.Count())
	}
}

func TestEventsStream(t *testing.T) {
	s, _ := newTestServer(t, "a\n")
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %s", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	next := func() string {
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				return name
			}
		}
		t.Fatalf("stream ended: %v", sc.Err())
		return ""
	}
	if got := next(); got != "state" {
		t.Fatalf("first event: %s", got)
	}

	toggle, err := http.Post(ts.URL+"/v1/toggle", "application/json", nil)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	toggle.Body.Close()
	if got := next(); got != "mode" {
		t.Fatalf("expected mode event, got %s", got)
	}
}
