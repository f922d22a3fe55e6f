package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rzbill/tailview/internal/session"
)

// eventBuffer is the per-client backlog before events are dropped.
const eventBuffer = 64

// sseSink writes session events as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send encodes ev as one named SSE event.
func (s sseSink) Send(ev session.Event) error {
	var data any
	switch ev.Kind {
	case session.EventWindow:
		data = ev.Window
	case session.EventScroll:
		data = map[string]float64{"offsetPx": ev.ScrollPx}
	case session.EventMode:
		data = map[string]string{"mode": ev.Mode.String()}
	case session.EventLoading:
		data = map[string]bool{"loading": ev.Loading}
	case session.EventError:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		data = map[string]string{"error": msg}
	default:
		data = struct{}{}
	}
	return s.write(ev.Kind.String(), data)
}

// SendSnapshot sends the initial "state" event.
func (s sseSink) SendSnapshot(snap session.Snapshot) error {
	return s.write("state", snap)
}

func (s sseSink) write(name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, b)
	return err
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush pushes buffered events to the client.
func (s sseSink) Flush() error {
	return http.NewResponseController(s.w).Flush()
}
