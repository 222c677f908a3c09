package fsd

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// The wire is single-byte: each byte is one character (ISO 8859-1).

// DecodeWire converts raw line bytes to a string.
func DecodeWire(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO 8859-1 maps every byte; this is unreachable in practice.
		return string(b)
	}
	return string(s)
}

// EncodeWire converts a line to wire bytes. Characters outside
// ISO 8859-1 are replaced.
func EncodeWire(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}
