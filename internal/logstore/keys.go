package logstore

import "encoding/binary"

// Keyspace for the Pebble backend. All keys share the "logs/" prefix so a
// single range delete wipes the collection.
//
// - logs/m
// - logs/e/{id_be8}

var (
	keyPrefix    = []byte("logs/")
	keyPrefixEnd = []byte("logs0") // '0' is the byte after '/'
	metaKey      = []byte("logs/m")
	entrySeg     = []byte("logs/e/")
)

// KeyEntry builds the entry key with a big-endian id for byte-wise ordering.
func KeyEntry(id uint64) []byte {
	k := make([]byte, 0, len(entrySeg)+8)
	k = append(k, entrySeg...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return append(k, b[:]...)
}

// idFromKey extracts the id from an entry key.
func idFromKey(k []byte) (uint64, bool) {
	if len(k) != len(entrySeg)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k[len(entrySeg):]), true
}

type meta struct {
	lastID uint64
	count  uint64
}

func (m meta) encode() []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], m.lastID)
	binary.BigEndian.PutUint64(b[8:], m.count)
	return b[:]
}

func decodeMeta(b []byte) (meta, bool) {
	if len(b) < 16 {
		return meta{}, false
	}
	return meta{lastID: binary.BigEndian.Uint64(b[:8]), count: binary.BigEndian.Uint64(b[8:16])}, true
}
