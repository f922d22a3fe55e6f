package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Source opens the byte stream to ingest. Open may be called again after a
// reset to start from scratch.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// HTTPSource performs one long-lived GET and streams the response body.
type HTTPSource struct {
	URL    string
	Header http.Header
	Client *http.Client
}

// NewHTTPSource returns a Source for url using http.DefaultClient semantics
// without a timeout (the stream is expected to stay open).
func NewHTTPSource(url string, header http.Header) *HTTPSource {
	return &HTTPSource{URL: url, Header: header, Client: &http.Client{}}
}

// Open issues the request. Non-2xx responses are stream failures.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &StreamError{Op: "open", Err: err}
	}
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &StreamError{Op: "open", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, &StreamError{Op: "open", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp.Body, nil
}

func (s *HTTPSource) String() string { return s.URL }

// ReaderSource streams from an already open reader. It can only be consumed
// once; a second Open yields whatever is left.
type ReaderSource struct {
	R    io.Reader
	Name string
}

func (s *ReaderSource) Open(context.Context) (io.ReadCloser, error) {
	if rc, ok := s.R.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(s.R), nil
}

func (s *ReaderSource) String() string {
	if s.Name != "" {
		return s.Name
	}
	return "reader"
}

// FileSource reads a file from the beginning on every Open.
type FileSource struct {
	Path string
}

func (s *FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &StreamError{Op: "open", Err: err}
	}
	return f, nil
}

func (s *FileSource) String() string { return "file://" + s.Path }
