package title

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ilex/wad-go/pkg/crypto"
)

// TicketLen is the size of a serialized v0 Ticket.
const TicketLen = 0x2A4

// ErrUnsupportedTicketVersion is returned for any ticket format other than v0.
// v1 tickets exist on later consoles but were never used for Wii titles.
var ErrUnsupportedTicketVersion = errors.New("only v0 tickets are supported")

// TitleLimit is one of the eight usage limit slots in a Ticket (play time,
// launch count, and so on).
type TitleLimit struct {
	Type uint32
	Max  uint32
}

// Ticket grants the right to decrypt a title's content and carries the
// encrypted Title Key.
type Ticket struct {
	SignatureType           uint32
	Signature               [256]byte
	padding1                [60]byte
	signatureIssuer         [64]byte
	ECDHData                [60]byte
	TicketVersion           uint8
	reserved1               [2]byte
	TitleKey                [16]byte
	unknown1                [1]byte
	TicketID                [8]byte
	ConsoleID               [4]byte
	TitleID                 [8]byte
	unknown2                [2]byte // Reserved; repurposed as the fakesign nonce.
	TitleVersion            uint16
	PermittedTitlesMask     [4]byte
	PermitMask              [4]byte
	TitleExportAllowed      uint8
	CommonKeyIndex          uint8
	unknown3                [48]byte
	ContentAccessPermission [64]byte
	padding2                [2]byte
	TitleLimits             [8]TitleLimit
}

// ParseTicket parses ticket data. Any version other than 0 is rejected before
// the rest of the structure is read; no partial Ticket is ever returned.
func ParseTicket(data []byte) (*Ticket, error) {
	if len(data) < TicketLen {
		return nil, fmt.Errorf("ticket data is truncated: %d bytes", len(data))
	}
	t := &Ticket{}
	t.SignatureType = binary.BigEndian.Uint32(data[0x00:])
	copy(t.Signature[:], data[0x04:0x104])
	copy(t.padding1[:], data[0x104:0x140])
	copy(t.signatureIssuer[:], data[0x140:0x180])
	copy(t.ECDHData[:], data[0x180:0x1BC])
	t.TicketVersion = data[0x1BC]
	if t.TicketVersion != 0 {
		return nil, ErrUnsupportedTicketVersion
	}
	copy(t.reserved1[:], data[0x1BD:0x1BF])
	copy(t.TitleKey[:], data[0x1BF:0x1CF])
	copy(t.unknown1[:], data[0x1CF:0x1D0])
	copy(t.TicketID[:], data[0x1D0:0x1D8])
	copy(t.ConsoleID[:], data[0x1D8:0x1DC])
	copy(t.TitleID[:], data[0x1DC:0x1E4])
	copy(t.unknown2[:], data[0x1E4:0x1E6])
	t.TitleVersion = binary.BigEndian.Uint16(data[0x1E6:])
	copy(t.PermittedTitlesMask[:], data[0x1E8:0x1EC])
	copy(t.PermitMask[:], data[0x1EC:0x1F0])
	t.TitleExportAllowed = data[0x1F0]
	t.CommonKeyIndex = data[0x1F1]
	copy(t.unknown3[:], data[0x1F2:0x222])
	copy(t.ContentAccessPermission[:], data[0x222:0x262])
	copy(t.padding2[:], data[0x262:0x264])
	for i := range t.TitleLimits {
		t.TitleLimits[i].Type = binary.BigEndian.Uint32(data[0x264+i*8:])
		t.TitleLimits[i].Max = binary.BigEndian.Uint32(data[0x268+i*8:])
	}
	return t, nil
}

// ToBytes serializes the Ticket back into its 676-byte binary form.
func (t *Ticket) ToBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, TicketLen))
	binary.Write(buf, binary.BigEndian, t.SignatureType)
	buf.Write(t.Signature[:])
	buf.Write(t.padding1[:])
	buf.Write(t.signatureIssuer[:])
	buf.Write(t.ECDHData[:])
	buf.WriteByte(t.TicketVersion)
	buf.Write(t.reserved1[:])
	buf.Write(t.TitleKey[:])
	buf.Write(t.unknown1[:])
	buf.Write(t.TicketID[:])
	buf.Write(t.ConsoleID[:])
	buf.Write(t.TitleID[:])
	buf.Write(t.unknown2[:])
	binary.Write(buf, binary.BigEndian, t.TitleVersion)
	buf.Write(t.PermittedTitlesMask[:])
	buf.Write(t.PermitMask[:])
	buf.WriteByte(t.TitleExportAllowed)
	buf.WriteByte(t.CommonKeyIndex)
	buf.Write(t.unknown3[:])
	buf.Write(t.ContentAccessPermission[:])
	buf.Write(t.padding2[:])
	for _, limit := range t.TitleLimits {
		binary.Write(buf, binary.BigEndian, limit.Type)
		binary.Write(buf, binary.BigEndian, limit.Max)
	}
	return buf.Bytes()
}

// DecTitleKey unwraps the Ticket's Title Key using the common key named by the
// common key index and the Ticket's dev status.
func (t *Ticket) DecTitleKey() ([16]byte, error) {
	return crypto.DecryptTitleKey(t.TitleKey, t.CommonKeyIndex, t.TitleID, t.IsDev())
}

// IsDev reports whether this Ticket was signed by the development certificate
// chain, determined from the signature issuer string.
func (t *Ticket) IsDev() bool {
	issuer := t.SignatureIssuer()
	return strings.Contains(issuer, "Root-CA00000002-XS00000004") ||
		strings.Contains(issuer, "Root-CA00000002-XS00000006")
}

// IsFakesigned reports whether the Ticket carries a null signature whose body
// hash starts with a zero byte.
func (t *Ticket) IsFakesigned() bool {
	if t.Signature != [256]byte{} {
		return false
	}
	digest := sha1.Sum(t.ToBytes()[signedBodyOffset:])
	return digest[0] == 0
}

// Fakesign nulls the signature and brute-forces a nonce in the unused unknown2
// field until the body's SHA-1 has a leading zero byte. Bounded by the 16-bit
// nonce; returns ErrCannotFakesign on exhaustion.
func (t *Ticket) Fakesign() error {
	t.Signature = [256]byte{}
	for nonce := uint16(1); ; nonce++ {
		binary.BigEndian.PutUint16(t.unknown2[:], nonce)
		digest := sha1.Sum(t.ToBytes()[signedBodyOffset:])
		if digest[0] == 0 {
			return nil
		}
		if nonce == 65535 {
			return ErrCannotFakesign
		}
	}
}

// SignatureIssuer returns the name of the certificate that signed the Ticket.
func (t *Ticket) SignatureIssuer() string {
	return string(bytes.TrimRight(t.signatureIssuer[:], "\x00"))
}

// SetSignatureIssuer replaces the signing certificate name.
func (t *Ticket) SetSignatureIssuer(issuer string) error {
	if len(issuer) > 64 {
		return &IssuerTooLongError{Length: len(issuer)}
	}
	t.signatureIssuer = [64]byte{}
	copy(t.signatureIssuer[:], issuer)
	return nil
}
