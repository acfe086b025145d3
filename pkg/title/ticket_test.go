package title

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/ilex/wad-go/pkg/crypto"
	"github.com/ilex/wad-go/pkg/keys"
)

func testTicket(t *testing.T) *Ticket {
	t.Helper()
	keys.Set(keys.KeyNameCommon, []byte{
		0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
		0x18, 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E, 0x1F,
	})
	titleID := [8]byte{0x00, 0x01, 0x00, 0x01, 0x61, 0x62, 0x63, 0x64}
	titleKey := [16]byte{0xCA, 0xFE, 0xBA, 0xBE}
	enc, err := crypto.EncryptTitleKey(titleKey, keys.CommonKeyIndexRetail, titleID, false)
	if err != nil {
		t.Fatal(err)
	}
	tik := &Ticket{
		SignatureType:  uint32(SignatureTypeRSA2048),
		TitleKey:       enc,
		TitleID:        titleID,
		TitleVersion:   0x0101,
		CommonKeyIndex: keys.CommonKeyIndexRetail,
	}
	tik.SetSignatureIssuer("Root-CA00000001-XS00000003")
	return tik
}

func TestTicketRoundTrip(t *testing.T) {
	tik := testTicket(t)
	data := tik.ToBytes()
	if len(data) != TicketLen {
		t.Fatalf("serialized ticket is %d bytes, want %d", len(data), TicketLen)
	}
	parsed, err := ParseTicket(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(parsed.ToBytes(), data) {
		t.Fatal("serialized ticket changed across a parse round trip")
	}
	if parsed.TitleID != tik.TitleID {
		t.Fatalf("title ID changed: got %x", parsed.TitleID)
	}
}

func TestParseTicketRejectsV1(t *testing.T) {
	data := testTicket(t).ToBytes()
	data[0x1BC] = 1
	_, err := ParseTicket(data)
	if !errors.Is(err, ErrUnsupportedTicketVersion) {
		t.Fatalf("expected ErrUnsupportedTicketVersion, got %v", err)
	}
}

func TestParseTicketRejectsTruncated(t *testing.T) {
	data := testTicket(t).ToBytes()
	if _, err := ParseTicket(data[:100]); err == nil {
		t.Fatal("expected an error for truncated data")
	}
}

func TestTicketDecTitleKey(t *testing.T) {
	tik := testTicket(t)
	key, err := tik.DecTitleKey()
	if err != nil {
		t.Fatal(err)
	}
	want := [16]byte{0xCA, 0xFE, 0xBA, 0xBE}
	if key != want {
		t.Fatalf("got title key %x, want %x", key, want)
	}
}

func TestTicketIsDev(t *testing.T) {
	tik := testTicket(t)
	if tik.IsDev() {
		t.Fatal("retail issuer reported as dev")
	}
	tik.SetSignatureIssuer("Root-CA00000002-XS00000006")
	if !tik.IsDev() {
		t.Fatal("dev issuer not reported as dev")
	}
}

func TestTicketFakesign(t *testing.T) {
	tik := testTicket(t)
	tik.Signature = [256]byte{0xFF}
	if err := tik.Fakesign(); err != nil {
		t.Fatal(err)
	}
	if !tik.IsFakesigned() {
		t.Fatal("ticket not fakesigned after Fakesign")
	}
	digest := sha1.Sum(tik.ToBytes()[signedBodyOffset:])
	if digest[0] != 0 {
		t.Fatalf("body hash %x does not start with a zero byte", digest)
	}
	// Fakesigning must survive a round trip.
	parsed, err := ParseTicket(tik.ToBytes())
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.IsFakesigned() {
		t.Fatal("fakesigned state lost across serialization")
	}
}
