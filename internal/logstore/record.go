package logstore

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: version(1B) | text | crc32c(text)

const recordVersion = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// EncodeRecord frames a line for storage.
func EncodeRecord(text string) []byte {
	out := make([]byte, 0, 1+len(text)+4)
	out = append(out, recordVersion)
	out = append(out, text...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum([]byte(text), castagnoli))
	return append(out, crcb[:]...)
}

// DecodeRecord validates the frame and returns the line. ok is false for an
// unknown version, truncated value, or checksum mismatch.
func DecodeRecord(b []byte) (string, bool) {
	if len(b) < 1+4 || b[0] != recordVersion {
		return "", false
	}
	body := b[1 : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return "", false
	}
	return string(body), true
}
