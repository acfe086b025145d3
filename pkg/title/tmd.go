package title

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// Offset of the signed body within a TMD or Ticket. Everything before it
	// (signature type, signature, padding) is excluded from the hash that
	// signing and fakesigning operate on.
	signedBodyOffset = 0x140

	tmdHeaderLen     = 0x1E4
	contentRecordLen = 36
)

// ErrCannotFakesign is returned when the 16-bit nonce space is exhausted
// without finding a hash with a leading zero byte.
var ErrCannotFakesign = errors.New("data could not be fakesigned")

// InvalidContentTypeError reports a content record with an unknown type value.
type InvalidContentTypeError struct {
	Type uint16
}

func (e *InvalidContentTypeError) Error() string {
	return fmt.Sprintf("content record has invalid type %d", e.Type)
}

// IssuerTooLongError reports a signature issuer that exceeds its 64-byte field.
type IssuerTooLongError struct {
	Length int
}

func (e *IssuerTooLongError) Error() string {
	return fmt.Sprintf("signature issuer string must not exceed 64 characters (was %d)", e.Length)
}

// ContentType identifies the variety of a content blob in a TMD.
type ContentType uint16

const (
	ContentTypeNormal      ContentType = 1
	ContentTypeDevelopment ContentType = 2
	ContentTypeHashTree    ContentType = 3
	ContentTypeDLC         ContentType = 16385
	ContentTypeShared      ContentType = 32769
)

func (t ContentType) String() string {
	switch t {
	case ContentTypeNormal:
		return "Normal"
	case ContentTypeDevelopment:
		return "Development/Unknown"
	case ContentTypeHashTree:
		return "Hash Tree"
	case ContentTypeDLC:
		return "DLC"
	case ContentTypeShared:
		return "Shared"
	}
	return "Invalid"
}

func parseContentType(v uint16) (ContentType, error) {
	switch ContentType(v) {
	case ContentTypeNormal, ContentTypeDevelopment, ContentTypeHashTree, ContentTypeDLC, ContentTypeShared:
		return ContentType(v), nil
	}
	return 0, &InvalidContentTypeError{Type: v}
}

// TitleType identifies the kind of title a TMD describes, derived from the
// upper half of the Title ID.
type TitleType int

const (
	TitleTypeSystem TitleType = iota
	TitleTypeGame
	TitleTypeChannel
	TitleTypeSystemChannel
	TitleTypeGameChannel
	TitleTypeDLC
	TitleTypeHiddenChannel
	TitleTypeUnknown
)

func (t TitleType) String() string {
	switch t {
	case TitleTypeSystem:
		return "System"
	case TitleTypeGame:
		return "Game"
	case TitleTypeChannel:
		return "Channel"
	case TitleTypeSystemChannel:
		return "SystemChannel"
	case TitleTypeGameChannel:
		return "GameChannel"
	case TitleTypeDLC:
		return "DLC"
	case TitleTypeHiddenChannel:
		return "HiddenChannel"
	}
	return "Unknown"
}

// AccessRight is a bit position in the TMD access rights mask.
type AccessRight uint8

const (
	AccessRightAHB      AccessRight = 0
	AccessRightDVDVideo AccessRight = 1
)

// ContentRecord describes one content blob of a title: its ID, index within
// the title, type, decrypted size, and the SHA-1 of its decrypted data.
type ContentRecord struct {
	ContentID uint32
	Index     uint16
	Type      ContentType
	Size      uint64
	Hash      [20]byte
}

// TMD is a parsed Title Metadata structure. ContentRecords is the manifest of
// the title's contents; a Title keeps it in sync with its ContentRegion, and
// ToBytes always writes len(ContentRecords) as the record count so the two can
// never drift silently on serialization.
type TMD struct {
	SignatureType    uint32
	Signature        [256]byte
	padding1         [60]byte
	signatureIssuer  [64]byte
	TMDVersion       uint8
	CACRLVersion     uint8
	SignerCRLVersion uint8
	vWii             uint8
	IOSTitleID       [8]byte
	TitleID          [8]byte
	titleType        [4]byte
	GroupID          uint16
	padding2         [2]byte
	region           uint16
	Ratings          [16]byte
	reserved1        [12]byte
	IPCMask          [12]byte
	reserved2        [18]byte
	AccessRights     uint32
	TitleVersion     uint16
	BootIndex        uint16
	MinorVersion     uint16 // Normally unused, repurposed as the fakesign nonce.
	ContentRecords   []ContentRecord
}

// ParseTMD parses TMD data. The whole parse fails on a truncated buffer or an
// unknown content type; no partially populated TMD is ever returned.
func ParseTMD(data []byte) (*TMD, error) {
	if len(data) < tmdHeaderLen {
		return nil, fmt.Errorf("TMD data is truncated: %d bytes", len(data))
	}
	t := &TMD{}
	t.SignatureType = binary.BigEndian.Uint32(data[0x00:])
	copy(t.Signature[:], data[0x04:0x104])
	copy(t.padding1[:], data[0x104:0x140])
	copy(t.signatureIssuer[:], data[0x140:0x180])
	t.TMDVersion = data[0x180]
	t.CACRLVersion = data[0x181]
	t.SignerCRLVersion = data[0x182]
	t.vWii = data[0x183]
	copy(t.IOSTitleID[:], data[0x184:0x18C])
	copy(t.TitleID[:], data[0x18C:0x194])
	copy(t.titleType[:], data[0x194:0x198])
	t.GroupID = binary.BigEndian.Uint16(data[0x198:])
	copy(t.padding2[:], data[0x19A:0x19C])
	t.region = binary.BigEndian.Uint16(data[0x19C:])
	copy(t.Ratings[:], data[0x19E:0x1AE])
	copy(t.reserved1[:], data[0x1AE:0x1BA])
	copy(t.IPCMask[:], data[0x1BA:0x1C6])
	copy(t.reserved2[:], data[0x1C6:0x1D8])
	t.AccessRights = binary.BigEndian.Uint32(data[0x1D8:])
	t.TitleVersion = binary.BigEndian.Uint16(data[0x1DC:])
	numContents := binary.BigEndian.Uint16(data[0x1DE:])
	t.BootIndex = binary.BigEndian.Uint16(data[0x1E0:])
	t.MinorVersion = binary.BigEndian.Uint16(data[0x1E2:])

	if len(data) < tmdHeaderLen+int(numContents)*contentRecordLen {
		return nil, fmt.Errorf("TMD data is truncated: %d content records declared but only %d bytes present",
			numContents, len(data)-tmdHeaderLen)
	}
	t.ContentRecords = make([]ContentRecord, 0, numContents)
	for i := 0; i < int(numContents); i++ {
		rec := data[tmdHeaderLen+i*contentRecordLen:]
		contentType, err := parseContentType(binary.BigEndian.Uint16(rec[6:]))
		if err != nil {
			return nil, err
		}
		record := ContentRecord{
			ContentID: binary.BigEndian.Uint32(rec[0:]),
			Index:     binary.BigEndian.Uint16(rec[4:]),
			Type:      contentType,
			Size:      binary.BigEndian.Uint64(rec[8:]),
		}
		copy(record.Hash[:], rec[16:36])
		t.ContentRecords = append(t.ContentRecords, record)
	}
	return t, nil
}

// ToBytes serializes the TMD. The record count written is always the current
// length of ContentRecords, never a cached value.
func (t *TMD) ToBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, tmdHeaderLen+len(t.ContentRecords)*contentRecordLen))
	binary.Write(buf, binary.BigEndian, t.SignatureType)
	buf.Write(t.Signature[:])
	buf.Write(t.padding1[:])
	buf.Write(t.signatureIssuer[:])
	buf.WriteByte(t.TMDVersion)
	buf.WriteByte(t.CACRLVersion)
	buf.WriteByte(t.SignerCRLVersion)
	buf.WriteByte(t.vWii)
	buf.Write(t.IOSTitleID[:])
	buf.Write(t.TitleID[:])
	buf.Write(t.titleType[:])
	binary.Write(buf, binary.BigEndian, t.GroupID)
	buf.Write(t.padding2[:])
	binary.Write(buf, binary.BigEndian, t.region)
	buf.Write(t.Ratings[:])
	buf.Write(t.reserved1[:])
	buf.Write(t.IPCMask[:])
	buf.Write(t.reserved2[:])
	binary.Write(buf, binary.BigEndian, t.AccessRights)
	binary.Write(buf, binary.BigEndian, t.TitleVersion)
	binary.Write(buf, binary.BigEndian, uint16(len(t.ContentRecords)))
	binary.Write(buf, binary.BigEndian, t.BootIndex)
	binary.Write(buf, binary.BigEndian, t.MinorVersion)
	for _, record := range t.ContentRecords {
		binary.Write(buf, binary.BigEndian, record.ContentID)
		binary.Write(buf, binary.BigEndian, record.Index)
		binary.Write(buf, binary.BigEndian, uint16(record.Type))
		binary.Write(buf, binary.BigEndian, record.Size)
		buf.Write(record.Hash[:])
	}
	return buf.Bytes()
}

// IsFakesigned reports whether the TMD carries a null signature whose body
// hash starts with a zero byte, which vulnerable consoles accept as valid.
func (t *TMD) IsFakesigned() bool {
	if t.Signature != [256]byte{} {
		return false
	}
	digest := sha1.Sum(t.ToBytes()[signedBodyOffset:])
	return digest[0] == 0
}

// Fakesign nulls the signature and brute-forces the unused minor version field
// until the body's SHA-1 has a leading zero byte (the strncmp/trucha bug).
// Expected iterations are around 256; the search is bounded by the 16-bit
// nonce and returns ErrCannotFakesign on exhaustion.
func (t *TMD) Fakesign() error {
	t.Signature = [256]byte{}
	for nonce := uint16(1); ; nonce++ {
		t.MinorVersion = nonce
		digest := sha1.Sum(t.ToBytes()[signedBodyOffset:])
		if digest[0] == 0 {
			return nil
		}
		if nonce == 65535 {
			return ErrCannotFakesign
		}
	}
}

// Region returns the 3-letter code of the region the TMD was created for.
func (t *TMD) Region() string {
	switch t.region {
	case 0:
		return "JPN"
	case 1:
		return "USA"
	case 2:
		return "EUR"
	case 3:
		return "None"
	case 4:
		return "KOR"
	}
	return "Unknown"
}

// TitleType returns the kind of title described by the TMD.
func (t *TMD) TitleType() TitleType {
	switch hex.EncodeToString(t.TitleID[:4]) {
	case "00000001":
		return TitleTypeSystem
	case "00010000":
		return TitleTypeGame
	case "00010001":
		return TitleTypeChannel
	case "00010002":
		return TitleTypeSystemChannel
	case "00010004":
		return TitleTypeGameChannel
	case "00010005":
		return TitleTypeDLC
	case "00010008":
		return TitleTypeHiddenChannel
	}
	return TitleTypeUnknown
}

// CheckAccessRight reports whether the given right is set in the access mask.
func (t *TMD) CheckAccessRight(right AccessRight) bool {
	return t.AccessRights&(1<<right) != 0
}

// SignatureIssuer returns the name of the certificate that signed the TMD.
func (t *TMD) SignatureIssuer() string {
	return string(bytes.TrimRight(t.signatureIssuer[:], "\x00"))
}

// SetSignatureIssuer replaces the signing certificate name.
func (t *TMD) SetSignatureIssuer(issuer string) error {
	if len(issuer) > 64 {
		return &IssuerTooLongError{Length: len(issuer)}
	}
	t.signatureIssuer = [64]byte{}
	copy(t.signatureIssuer[:], issuer)
	return nil
}

// IsVWii reports whether the TMD describes a vWii title.
func (t *TMD) IsVWii() bool {
	return t.vWii == 1
}
