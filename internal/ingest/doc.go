// Package ingest turns a live byte stream into ordered batches of complete
// text lines and appends them to a logstore.DurableLogStore.
//
// Chunk boundaries are arbitrary: a line, or a single multi-byte character,
// may be split across reads. Decoder carries the undecoded bytes and the
// unterminated text between chunks; on end of stream the trailing segment is
// flushed as a final line.
//
//	src := ingest.NewHTTPSource("http://host/view-log", nil)
//	in, _ := ingest.New(src, store, ingest.Options{Logger: logger})
//	go func() { err := in.Run(ctx); _ = err }()
//	...
//	in.Cancel()
//	<-in.Done()
//
// One Append is issued per chunk batch, not per line.
package ingest
