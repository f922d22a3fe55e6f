// Package pebblestore opens the Pebble database that holds tailview's log
// and applies the configured fsync policy to every commit.
//
// Writes go through Update, which stages a batch and commits it atomically.
// Reads use Get for point lookups and Scan for ordered ranges. Storage
// traffic is reported to an optional MetricsHook.
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//	err = db.Update(ctx, func(b *pebble.Batch) error {
//		return b.Set(key, value, nil)
//	})
package pebblestore
