package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rzbill/tailview/internal/logstore"
	"github.com/rzbill/tailview/internal/session"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// ViewerController maps the session control surface onto HTTP.
type ViewerController struct {
	sess   *session.Session
	logger logpkg.Logger
}

// NewViewerController creates a new viewer controller.
func NewViewerController(sess *session.Session, logger logpkg.Logger) *ViewerController {
	return &ViewerController{sess: sess, logger: logger}
}

// RegisterRoutes registers the viewer routes with the given mux.
func (c *ViewerController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/state", c.handleState)
	mux.HandleFunc("/v1/count", c.handleCount)
	mux.HandleFunc("/v1/logs", c.handleLogs)
	mux.HandleFunc("/v1/scroll", c.handleScroll)
	mux.HandleFunc("/v1/toggle", c.handleToggle)
	mux.HandleFunc("/v1/resize", c.handleResize)
	mux.HandleFunc("/v1/reset", c.handleReset)
	mux.HandleFunc("/v1/events", c.handleEvents)
}

func (c *ViewerController) handleState(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, c.sess.Snapshot())
}

func (c *ViewerController) handleCount(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, map[string]uint64{"count": c.sess.Count()})
}

// maxLogsWait caps the long-poll on /v1/logs.
const maxLogsWait = 30 * time.Second

// handleLogs serves an inclusive id range: /v1/logs?low=1&high=50. With
// waitMs set, an empty result waits for the next append and is re-read once.
func (c *ViewerController) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	low, err := parseUint(q.Get("low"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid low")
		return
	}
	high, err := parseUint(q.Get("high"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid high")
		return
	}
	var wait time.Duration
	if v := q.Get("waitMs"); v != "" {
		ms, err := parseUint(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid waitMs")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, maxLogsWait)
	}
	changed := c.sess.Changes()
	entries, err := c.sess.Logs(r.Context(), low, high)
	if err == nil && len(entries) == 0 && wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-changed:
			entries, err = c.sess.Logs(r.Context(), low, high)
		case <-timer.C:
		case <-r.Context().Done():
		}
	}
	if err != nil {
		c.writeSessionError(w, "read logs", err)
		return
	}
	writeJSON(w, map[string]any{"entries": entries})
}

type scrollReq struct {
	OffsetPx float64 `json:"offsetPx"`
}

func (c *ViewerController) handleScroll(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req scrollReq
	if !decodeBody(w, r, &req) {
		return
	}
	if err := c.sess.OnScroll(r.Context(), req.OffsetPx); err != nil {
		c.writeSessionError(w, "scroll", err)
		return
	}
	writeJSON(w, c.sess.Window())
}

func (c *ViewerController) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	mode, err := c.sess.ToggleAutoScroll(r.Context())
	if err != nil {
		c.writeSessionError(w, "toggle", err)
		return
	}
	writeJSON(w, map[string]string{"mode": mode.String()})
}

type resizeReq struct {
	HeightPx float64 `json:"heightPx"`
}

func (c *ViewerController) handleResize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req resizeReq
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HeightPx < 0 {
		writeError(w, http.StatusBadRequest, "heightPx must not be negative")
		return
	}
	if err := c.sess.Resize(r.Context(), req.HeightPx); err != nil {
		c.writeSessionError(w, "resize", err)
		return
	}
	writeJSON(w, c.sess.Window())
}

func (c *ViewerController) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := c.sess.ResetAll(r.Context()); err != nil {
		c.writeSessionError(w, "reset", err)
		return
	}
	writeNoContent(w)
}

// handleEvents streams session events as server-sent events. The first
// event is a "state" snapshot.
func (c *ViewerController) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	events := make(chan session.Event, eventBuffer)
	unsubscribe := c.sess.Subscribe(func(ev session.Event) {
		select {
		case events <- ev:
		default:
			// Slow client: drop. Later windows carry the full view.
			c.logger.Debug("sse client lagging, event dropped", logpkg.Str("kind", ev.Kind.String()))
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	sink := sseSink{w: w, r: r}
	if err := sink.SendSnapshot(c.sess.Snapshot()); err != nil {
		return
	}
	_ = sink.Flush()

	for {
		select {
		case <-sink.Context().Done():
			return
		case ev := <-events:
			if err := sink.Send(ev); err != nil {
				c.logger.Debug("sse write failed", logpkg.Err(err))
				return
			}
			_ = sink.Flush()
		}
	}
}

func (c *ViewerController) writeSessionError(w http.ResponseWriter, op string, err error) {
	c.logger.Warn(op+" failed", logpkg.Err(err))
	if errors.Is(err, logstore.ErrStorageFailure) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
