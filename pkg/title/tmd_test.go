package title

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"testing"
)

func testTMD() *TMD {
	t := &TMD{
		SignatureType: uint32(SignatureTypeRSA2048),
		TMDVersion:    1,
		IOSTitleID:    [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x3A},
		TitleID:       [8]byte{0x00, 0x01, 0x00, 0x01, 0x61, 0x62, 0x63, 0x64},
		TitleVersion:  0x0101,
		BootIndex:     0,
	}
	t.SetSignatureIssuer("Root-CA00000001-CP00000004")
	content := []byte("boot content")
	t.ContentRecords = []ContentRecord{
		{ContentID: 0x17, Index: 0, Type: ContentTypeNormal, Size: uint64(len(content)), Hash: sha1.Sum(content)},
		{ContentID: 0x18, Index: 1, Type: ContentTypeShared, Size: 64, Hash: sha1.Sum(make([]byte, 64))},
	}
	return t
}

func TestTMDRoundTrip(t *testing.T) {
	tmd := testTMD()
	data := tmd.ToBytes()
	parsed, err := ParseTMD(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(parsed.ToBytes(), data) {
		t.Fatal("serialized TMD changed across a parse round trip")
	}
	if parsed.TitleID != tmd.TitleID {
		t.Fatalf("title ID changed: got %x", parsed.TitleID)
	}
	if len(parsed.ContentRecords) != 2 {
		t.Fatalf("expected 2 content records, got %d", len(parsed.ContentRecords))
	}
	if parsed.ContentRecords[1].Type != ContentTypeShared {
		t.Fatalf("record type changed: got %v", parsed.ContentRecords[1].Type)
	}
}

func TestTMDRecordCountFollowsSlice(t *testing.T) {
	tmd := testTMD()
	tmd.ContentRecords = append(tmd.ContentRecords, ContentRecord{
		ContentID: 0x19, Index: 2, Type: ContentTypeNormal, Size: 1,
	})
	data := tmd.ToBytes()
	if got := binary.BigEndian.Uint16(data[0x1DE:]); got != 3 {
		t.Fatalf("serialized record count is %d, want 3", got)
	}
}

func TestParseTMDRejectsInvalidContentType(t *testing.T) {
	tmd := testTMD()
	data := tmd.ToBytes()
	// Corrupt the first record's type field.
	binary.BigEndian.PutUint16(data[tmdHeaderLen+6:], 0x1234)
	_, err := ParseTMD(data)
	var typeErr *InvalidContentTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected InvalidContentTypeError, got %v", err)
	}
	if typeErr.Type != 0x1234 {
		t.Fatalf("error reports type %#x", typeErr.Type)
	}
}

func TestParseTMDRejectsTruncatedRecords(t *testing.T) {
	data := testTMD().ToBytes()
	if _, err := ParseTMD(data[:len(data)-1]); err == nil {
		t.Fatal("expected an error for truncated records")
	}
}

func TestTMDFakesign(t *testing.T) {
	tmd := testTMD()
	tmd.Signature = [256]byte{0xFF}
	if tmd.IsFakesigned() {
		t.Fatal("TMD with a real signature reported as fakesigned")
	}
	if err := tmd.Fakesign(); err != nil {
		t.Fatal(err)
	}
	if !tmd.IsFakesigned() {
		t.Fatal("TMD not fakesigned after Fakesign")
	}
	if tmd.Signature != [256]byte{} {
		t.Fatal("fakesigning left a non-null signature")
	}
	digest := sha1.Sum(tmd.ToBytes()[signedBodyOffset:])
	if digest[0] != 0 {
		t.Fatalf("body hash %x does not start with a zero byte", digest)
	}
}

func TestTMDRegion(t *testing.T) {
	tmd := testTMD()
	for code, want := range map[uint16]string{0: "JPN", 1: "USA", 2: "EUR", 3: "None", 4: "KOR", 9: "Unknown"} {
		tmd.region = code
		if got := tmd.Region(); got != want {
			t.Fatalf("region %d: got %q, want %q", code, got, want)
		}
	}
}

func TestTMDTitleType(t *testing.T) {
	tmd := testTMD()
	if tmd.TitleType() != TitleTypeChannel {
		t.Fatalf("got %v, want channel", tmd.TitleType())
	}
	tmd.TitleID = [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	if tmd.TitleType() != TitleTypeSystem {
		t.Fatalf("got %v, want system", tmd.TitleType())
	}
}

func TestSetSignatureIssuerTooLong(t *testing.T) {
	tmd := testTMD()
	err := tmd.SetSignatureIssuer(string(make([]byte, 65)))
	var issuerErr *IssuerTooLongError
	if !errors.As(err, &issuerErr) {
		t.Fatalf("expected IssuerTooLongError, got %v", err)
	}
}
