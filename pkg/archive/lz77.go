// Package archive handles the container formats found inside Wii content:
// U8 archives and LZ77-compressed data.
package archive

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNotImplemented is returned by operations that only exist for API
// symmetry with their decoding counterparts.
var ErrNotImplemented = errors.New("operation is not implemented")

var lz77Magic = []byte("LZ77")

const lz77Type10 = 0x10

// DecompressLZ77 expands LZ77 type 0x10 data as used by Wii banners and ARC
// payloads. The four byte "LZ77" magic is optional; some files begin directly
// with the compression header. Decompression stops exactly at the declared
// size, even in the middle of a flag group or a back-reference copy.
func DecompressLZ77(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, lz77Magic) {
		data = data[4:]
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("LZ77 data is only %d bytes", len(data))
	}
	if data[0] != lz77Type10 {
		return nil, fmt.Errorf("unsupported LZ77 compression type 0x%02X", data[0])
	}
	// Little-endian 24-bit decompressed size.
	size := int(data[1]) | int(data[2])<<8 | int(data[3])<<16
	out := make([]byte, 0, size)
	pos := 4
	for len(out) < size {
		if pos >= len(data) {
			return nil, fmt.Errorf("LZ77 data is truncated at offset %d", pos)
		}
		flags := data[pos]
		pos++
		for bit := 0; bit < 8 && len(out) < size; bit++ {
			if flags&(0x80>>bit) == 0 {
				if pos >= len(data) {
					return nil, fmt.Errorf("LZ77 data is truncated at offset %d", pos)
				}
				out = append(out, data[pos])
				pos++
				continue
			}
			if pos+2 > len(data) {
				return nil, fmt.Errorf("LZ77 back-reference is truncated at offset %d", pos)
			}
			ref := int(data[pos])<<8 | int(data[pos+1])
			pos += 2
			length := 3 + ((ref >> 12) & 0xF)
			offset := ref & 0xFFF
			src := len(out) - offset - 1
			if src < 0 {
				return nil, fmt.Errorf("LZ77 back-reference points %d bytes before output start", -src)
			}
			// Copied byte by byte: references may overlap their own output.
			for i := 0; i < length && len(out) < size; i++ {
				out = append(out, out[src+i])
			}
		}
	}
	return out, nil
}

// CompressLZ77 would produce LZ77 type 0x10 data. Nothing in the install
// pipeline needs to emit compressed data, so only decompression is supported.
func CompressLZ77(data []byte) ([]byte, error) {
	return nil, fmt.Errorf("LZ77 compression: %w", ErrNotImplemented)
}

// IsLZ77 reports whether data looks like LZ77-compressed data, either with
// the magic prefix or a bare type 0x10 header.
func IsLZ77(data []byte) bool {
	if bytes.HasPrefix(data, lz77Magic) {
		return true
	}
	return len(data) >= 4 && data[0] == lz77Type10
}
