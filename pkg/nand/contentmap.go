package nand

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const sharedEntryLen = 28

// SharedContentEntry maps one shared content's NAND file name to the SHA-1 of
// its decrypted data. Names are eight ASCII hex digits assigned in order.
type SharedContentEntry struct {
	Name string
	Hash [20]byte
}

// SharedContentMap mirrors /shared1/content.map: the index the console uses
// to find shared contents already installed by another title.
type SharedContentMap struct {
	Entries []SharedContentEntry
}

// ParseSharedContentMap parses content.map data. The file is a bare array of
// 28-byte entries with no header.
func ParseSharedContentMap(data []byte) (*SharedContentMap, error) {
	if len(data)%sharedEntryLen != 0 {
		return nil, fmt.Errorf("content.map length %d is not a multiple of %d", len(data), sharedEntryLen)
	}
	m := &SharedContentMap{}
	for offset := 0; offset < len(data); offset += sharedEntryLen {
		var entry SharedContentEntry
		entry.Name = string(data[offset : offset+8])
		copy(entry.Hash[:], data[offset+8:offset+sharedEntryLen])
		m.Entries = append(m.Entries, entry)
	}
	return m, nil
}

// ToBytes serializes the map.
func (m *SharedContentMap) ToBytes() []byte {
	buf := new(bytes.Buffer)
	for _, entry := range m.Entries {
		buf.WriteString(entry.Name)
		buf.Write(entry.Hash[:])
	}
	return buf.Bytes()
}

// Lookup returns the NAND file name for a content hash, if it is already
// installed.
func (m *SharedContentMap) Lookup(hash [20]byte) (string, bool) {
	for _, entry := range m.Entries {
		if entry.Hash == hash {
			return entry.Name, true
		}
	}
	return "", false
}

// Add registers a new shared content and returns its assigned name. Names are
// sequential hex starting from 00000000.
func (m *SharedContentMap) Add(hash [20]byte) string {
	name := fmt.Sprintf("%08x", len(m.Entries))
	m.Entries = append(m.Entries, SharedContentEntry{Name: name, Hash: hash})
	return name
}

// String renders the map for diagnostics.
func (m *SharedContentMap) String() string {
	var b bytes.Buffer
	for _, entry := range m.Entries {
		fmt.Fprintf(&b, "%s %s\n", entry.Name, hex.EncodeToString(entry.Hash[:]))
	}
	return b.String()
}
