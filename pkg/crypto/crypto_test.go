package crypto

import (
	"bytes"
	"testing"

	"github.com/ilex/wad-go/pkg/keys"
)

func TestTitleKeyRoundTrip(t *testing.T) {
	keys.Set("common", []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	})
	titleID := [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}
	titleKey := [16]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}

	enc, err := EncryptTitleKey(titleKey, keys.CommonKeyIndexRetail, titleID, false)
	if err != nil {
		t.Fatal(err)
	}
	if enc == titleKey {
		t.Fatal("encryption did not change the title key")
	}
	dec, err := DecryptTitleKey(enc, keys.CommonKeyIndexRetail, titleID, false)
	if err != nil {
		t.Fatal(err)
	}
	if dec != titleKey {
		t.Fatalf("round trip changed the title key: got %x, want %x", dec, titleKey)
	}
}

func TestTitleKeyIVDependsOnTitleID(t *testing.T) {
	keys.Set("common", make([]byte, 16))
	titleKey := [16]byte{0x11}
	encA, err := EncryptTitleKey(titleKey, 0, [8]byte{0, 0, 0, 1, 0, 0, 0, 2}, false)
	if err != nil {
		t.Fatal(err)
	}
	encB, err := EncryptTitleKey(titleKey, 0, [8]byte{0, 0, 0, 1, 0, 0, 0, 3}, false)
	if err != nil {
		t.Fatal(err)
	}
	if encA == encB {
		t.Fatal("different title IDs produced the same encrypted title key")
	}
}

func TestContentRoundTrip(t *testing.T) {
	titleKey := [16]byte{0x47, 0x11}
	data := bytes.Repeat([]byte{0xAB}, 64)

	enc, err := EncryptContent(data, titleKey, 3)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := DecryptContent(enc, titleKey, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatal("round trip changed the content")
	}
}

func TestEncryptContentZeroPads(t *testing.T) {
	titleKey := [16]byte{0x01}
	enc, err := EncryptContent([]byte{1, 2, 3}, titleKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != 16 {
		t.Fatalf("expected one padded block, got %d bytes", len(enc))
	}
	dec, err := DecryptContent(enc, titleKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(dec, want) {
		t.Fatalf("got %x, want %x", dec, want)
	}
}

func TestDecryptContentRejectsUnalignedData(t *testing.T) {
	if _, err := DecryptContent(make([]byte, 15), [16]byte{}, 0); err == nil {
		t.Fatal("expected an error for unaligned content")
	}
}

func TestContentIndexChangesIV(t *testing.T) {
	titleKey := [16]byte{0x02}
	data := make([]byte, 16)
	encA, err := EncryptContent(data, titleKey, 0)
	if err != nil {
		t.Fatal(err)
	}
	encB, err := EncryptContent(data, titleKey, 1)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(encA, encB) {
		t.Fatal("different indices produced identical ciphertext")
	}
}
