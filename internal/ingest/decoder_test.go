package ingest

import (
	"context"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, d *Decoder, chunks ...string) []string {
	t.Helper()
	var out []string
	for _, c := range chunks {
		lines, err := d.Feed([]byte(c))
		require.NoError(t, err)
		out = append(out, lines...)
	}
	tail, err := d.Flush()
	require.NoError(t, err)
	return append(out, tail...)
}

func TestDecoderSingleChunk(t *testing.T) {
	d, err := NewDecoder("")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, feedAll(t, d, "a\nb\nc\n"))
}

func TestDecoderLineSplitAcrossChunks(t *testing.T) {
	d, _ := NewDecoder("")
	require.Equal(t, []string{"abc", "d"}, feedAll(t, d, "ab", "c\nd\n"))
}

func TestDecoderFlushesTrailingLine(t *testing.T) {
	d, _ := NewDecoder("")
	lines, err := d.Feed([]byte("first\nxyz"))
	require.NoError(t, err)
	require.Equal(t, []string{"first"}, lines)
	require.Equal(t, 3, d.Buffered())

	tail, err := d.Flush()
	require.NoError(t, err)
	require.Equal(t, []string{"xyz"}, tail)
	require.Zero(t, d.Buffered())
}

func TestDecoderFlushWithoutTrailingDataIsEmpty(t *testing.T) {
	d, _ := NewDecoder("")
	_, _ = d.Feed([]byte("a\n"))
	tail, err := d.Flush()
	require.NoError(t, err)
	require.Empty(t, tail)
}

func TestDecoderMultiByteSplit(t *testing.T) {
	// "é" is 0xC3 0xA9; "€" is 0xE2 0x82 0xAC.
	d, _ := NewDecoder("utf-8")
	got := feedAll(t, d, "caf\xc3", "\xa9 \xe2\x82", "\xac\nok\n")
	require.Equal(t, []string{"café €", "ok"}, got)
}

func TestDecoderInvalidBytesBecomeReplacement(t *testing.T) {
	d, _ := NewDecoder("")
	got := feedAll(t, d, "a\xffb\n", "tail\xe2")
	require.Equal(t, []string{"a�b", "tail�"}, got)
}

func TestDecoderCRLFAndBlankLines(t *testing.T) {
	d, _ := NewDecoder("")
	require.Equal(t, []string{"a", "", "b"}, feedAll(t, d, "a\r\n\r", "\nb\r\n"))
}

func TestDecoderLatin1(t *testing.T) {
	d, err := NewDecoder("iso-8859-1")
	require.NoError(t, err)
	require.Equal(t, []string{"café"}, feedAll(t, d, "caf\xe9\n"))
}

func TestDecoderUnknownCharset(t *testing.T) {
	_, err := NewDecoder("klingon")
	require.Error(t, err)
}

func TestLineIteratorOneBatchPerChunk(t *testing.T) {
	d, _ := NewDecoder("")
	r := iotest.OneByteReader(strings.NewReader("ab\ncd\nef"))
	it := NewLineIterator(context.Background(), r, d, 16)

	var batches [][]string
	for it.Next() {
		batches = append(batches, it.Batch())
	}
	require.NoError(t, it.Err())
	require.Equal(t, [][]string{{"ab"}, {"cd"}, {"ef"}}, batches)
	require.EqualValues(t, 8, it.BytesRead())
}

func TestLineIteratorSurfacesReadError(t *testing.T) {
	d, _ := NewDecoder("")
	r := iotest.TimeoutReader(strings.NewReader("a\nb\n"))
	it := NewLineIterator(context.Background(), r, d, 64)
	require.True(t, it.Next())
	require.Equal(t, []string{"a", "b"}, it.Batch())
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), iotest.ErrTimeout)
}

func TestLineIteratorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, _ := NewDecoder("")
	it := NewLineIterator(ctx, strings.NewReader("a\n"), d, 64)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), context.Canceled)
}
