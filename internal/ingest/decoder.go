package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder reassembles newline-delimited lines from arbitrarily chunked bytes.
// It is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte // bytes of an incomplete character
	carry   []byte // decoded text not yet terminated by '\n'
	buf     []byte
}

// NewDecoder returns a Decoder for the given charset label ("" means UTF-8).
// Labels follow the WHATWG encoding names, e.g. "utf-16le", "iso-8859-1".
func NewDecoder(charset string) (*Decoder, error) {
	var enc encoding.Encoding = unicode.UTF8
	if charset != "" && !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "utf8") {
		e, err := htmlindex.Get(charset)
		if err != nil {
			return nil, fmt.Errorf("ingest: unknown charset %q: %w", charset, err)
		}
		enc = e
	}
	return &Decoder{t: enc.NewDecoder(), buf: make([]byte, 4096)}, nil
}

// Feed decodes chunk and returns every line completed by it, without the
// terminating newline (a preceding '\r' is dropped as well).
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if err := d.decode(src, false); err != nil {
		return nil, err
	}
	return d.split(), nil
}

// Flush ends the stream: any incomplete character is decoded (as U+FFFD for
// UTF-8) and a non-empty trailing segment is returned as the final line.
func (d *Decoder) Flush() ([]string, error) {
	if len(d.pending) > 0 {
		src := d.pending
		d.pending = nil
		if err := d.decode(src, true); err != nil {
			return nil, err
		}
	}
	lines := d.split()
	if len(d.carry) > 0 {
		lines = append(lines, trimCR(string(d.carry)))
		d.carry = d.carry[:0]
	}
	return lines, nil
}

// Reset drops all carried state.
func (d *Decoder) Reset() {
	d.t.Reset()
	d.pending = nil
	d.carry = d.carry[:0]
}

// Buffered reports the bytes held across chunk boundaries.
func (d *Decoder) Buffered() int { return len(d.pending) + len(d.carry) }

func (d *Decoder) decode(src []byte, atEOF bool) error {
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, atEOF)
		d.carry = append(d.carry, d.buf[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return nil
		default:
			return fmt.Errorf("ingest: decode: %w", err)
		}
	}
}

func (d *Decoder) split() []string {
	idx := bytes.LastIndexByte(d.carry, '\n')
	if idx < 0 {
		return nil
	}
	parts := strings.Split(string(d.carry[:idx]), "\n")
	for i := range parts {
		parts[i] = trimCR(parts[i])
	}
	rest := copy(d.carry, d.carry[idx+1:])
	d.carry = d.carry[:rest]
	return parts
}

func trimCR(s string) string { return strings.TrimSuffix(s, "\r") }
