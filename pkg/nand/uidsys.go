package nand

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const uidEntryLen = 12

// firstUID is the UID the console assigns to the first installed title.
const firstUID = 0x1000

// UIDEntry assigns a UID to one title ID in uid.sys.
type UIDEntry struct {
	TitleID [8]byte
	UID     uint16
}

// UIDSys mirrors /sys/uid.sys: the console's registry of every title it has
// ever seen, in installation order. UIDs are never reused.
type UIDSys struct {
	Entries []UIDEntry
}

// ParseUIDSys parses uid.sys data: 12-byte entries of title ID, two bytes of
// padding, and the UID.
func ParseUIDSys(data []byte) (*UIDSys, error) {
	if len(data)%uidEntryLen != 0 {
		return nil, fmt.Errorf("uid.sys length %d is not a multiple of %d", len(data), uidEntryLen)
	}
	u := &UIDSys{}
	for offset := 0; offset < len(data); offset += uidEntryLen {
		var entry UIDEntry
		copy(entry.TitleID[:], data[offset:offset+8])
		entry.UID = binary.BigEndian.Uint16(data[offset+10 : offset+12])
		u.Entries = append(u.Entries, entry)
	}
	return u, nil
}

// ToBytes serializes uid.sys.
func (u *UIDSys) ToBytes() []byte {
	buf := new(bytes.Buffer)
	for _, entry := range u.Entries {
		buf.Write(entry.TitleID[:])
		buf.Write([]byte{0, 0})
		binary.Write(buf, binary.BigEndian, entry.UID)
	}
	return buf.Bytes()
}

// Register returns the UID for a title, assigning the next free one when the
// title has never been installed.
func (u *UIDSys) Register(titleID [8]byte) uint16 {
	for _, entry := range u.Entries {
		if entry.TitleID == titleID {
			return entry.UID
		}
	}
	uid := uint16(firstUID + len(u.Entries))
	u.Entries = append(u.Entries, UIDEntry{TitleID: titleID, UID: uid})
	return uid
}
