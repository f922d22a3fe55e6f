// Package logstore implements tailview's durable, ordered, append-only log of
// text lines.
//
// # Overview
//
// A store assigns each appended line an id that is strictly increasing in
// insertion order. Ids are contiguous starting at 1; Clear wipes every entry
// and restarts the sequence. Two backends implement DurableLogStore:
//
//   - PebbleStore (default) keeps metadata at logs/m (lastID, count) and
//     entries at logs/e/{id_be8}. Values are framed as
//     version(1B) | text | crc32c(text).
//   - SQLiteStore keeps a single table named "logs" with an auto-increment
//     integer key and a text column.
//
// API surface
//
//	s, _ := logstore.OpenPebble(db, logstore.PebbleOptions{})
//	total, _ := s.Append(ctx, []string{"a", "b"}) // atomic, durable
//	n, _ := s.Count(ctx)
//	entries, _ := s.GetRange(ctx, 1, n)           // inclusive, ascending
//	_ = s.Clear(ctx)
//
//	<-s.Changes() // closed on the next Append or Clear
//
// Errors from the underlying engine are returned as *StorageError and match
// ErrStorageFailure with errors.Is. An empty or partial range is a normal
// result, never an error.
package logstore
