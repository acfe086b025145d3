package main

import (
	"encoding/binary"
	"path/filepath"
	"strings"

	"github.com/ilex/wad-go/pkg/archive"
	"github.com/ilex/wad-go/pkg/title"
)

// FileType classifies the files the tool can operate on.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeWAD
	FileTypeTMD
	FileTypeTicket
	FileTypeU8
	FileTypeLZ77
)

func (t FileType) String() string {
	switch t {
	case FileTypeWAD:
		return "WAD"
	case FileTypeTMD:
		return "TMD"
	case FileTypeTicket:
		return "Ticket"
	case FileTypeU8:
		return "U8 archive"
	case FileTypeLZ77:
		return "LZ77 compressed"
	default:
		return "unknown"
	}
}

// identifyFile classifies data by structure first and by file extension as a
// fallback. Structural checks come first because NUS downloads have no
// meaningful extension.
func identifyFile(name string, data []byte) FileType {
	if len(data) >= 8 {
		if binary.BigEndian.Uint32(data) == 0x20 {
			switch string(data[4:6]) {
			case "Is", "ib":
				return FileTypeWAD
			}
		}
		if binary.BigEndian.Uint32(data) == 0x55AA382D {
			return FileTypeU8
		}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wad":
		return FileTypeWAD
	case ".tmd":
		return FileTypeTMD
	case ".tik", ".cetk":
		return FileTypeTicket
	case ".arc", ".app", ".bnr":
		if archive.IsLZ77(data) {
			return FileTypeLZ77
		}
		if _, err := archive.ParseU8(data); err == nil {
			return FileTypeU8
		}
	case ".lz77":
		return FileTypeLZ77
	}
	// Extension told us nothing; try the cheap parses.
	if archive.IsLZ77(data) {
		return FileTypeLZ77
	}
	if len(data) == title.TicketLen {
		if _, err := title.ParseTicket(data); err == nil {
			return FileTypeTicket
		}
	}
	if _, err := title.ParseTMD(data); err == nil {
		return FileTypeTMD
	}
	if _, err := archive.ParseU8(data); err == nil {
		return FileTypeU8
	}
	return FileTypeUnknown
}
