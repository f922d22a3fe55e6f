// Package session wires one viewing session together: an ingestor feeding a
// durable store, a windower reading from it, and the control surface hosts
// drive (toggle, scroll, resize, reset).
//
// A Session owns the store for its lifetime. ResetAll cancels ingestion,
// waits for it to stop, clears the store and restarts from an empty log, so
// no append can land between the clear and the restart.
package session
