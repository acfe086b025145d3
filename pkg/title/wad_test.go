package title

import (
	"bytes"
	"testing"
)

func TestWADRoundTrip(t *testing.T) {
	w := NewWAD(WADTypeInstallable,
		bytes.Repeat([]byte{0xCC}, 1024+768+768),
		nil,
		bytes.Repeat([]byte{0x71}, TicketLen),
		bytes.Repeat([]byte{0x7D}, tmdHeaderLen),
		bytes.Repeat([]byte{0xC0}, 80),
		[]byte("footer"),
	)
	data := w.ToBytes()
	if len(data)%64 != 0 {
		t.Fatalf("serialized WAD is %d bytes, not 64-byte aligned", len(data))
	}
	parsed, err := ParseWAD(data)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Type != WADTypeInstallable {
		t.Fatalf("got type %q", parsed.Type)
	}
	if !bytes.Equal(parsed.TicketData(), w.TicketData()) {
		t.Fatal("ticket region changed")
	}
	if !bytes.Equal(parsed.MetaData(), []byte("footer")) {
		t.Fatal("meta region changed")
	}
	if !bytes.Equal(parsed.ToBytes(), data) {
		t.Fatal("WAD bytes changed across a round trip")
	}
}

func TestParseWADContentBlockRounding(t *testing.T) {
	// A header that declares 70 content bytes must yield an 80-byte region
	// so the AES blocks stay intact.
	w := NewWAD(WADTypeInstallable, nil, nil, nil, nil, make([]byte, 80), nil)
	data := w.ToBytes()
	// Patch the content size down to an unaligned value.
	data[0x18], data[0x19], data[0x1A], data[0x1B] = 0, 0, 0, 70
	parsed, err := ParseWAD(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.ContentData()) != 80 {
		t.Fatalf("content region is %d bytes, want 80", len(parsed.ContentData()))
	}
}

func TestParseWADRejectsBadHeader(t *testing.T) {
	if _, err := ParseWAD(make([]byte, 16)); err == nil {
		t.Fatal("expected an error for a short header")
	}
	data := NewWAD(WADTypeInstallable, nil, nil, nil, nil, nil, nil).ToBytes()
	data[3] = 0x40
	if _, err := ParseWAD(data); err == nil {
		t.Fatal("expected an error for a bad header size")
	}
	data[3] = 0x20
	data[4], data[5] = 'X', 'X'
	if _, err := ParseWAD(data); err == nil {
		t.Fatal("expected an error for an unknown WAD type")
	}
}

func TestParseWADRejectsOverrunningRegion(t *testing.T) {
	w := NewWAD(WADTypeInstallable, nil, nil, nil, nil, make([]byte, 64), nil)
	data := w.ToBytes()
	if _, err := ParseWAD(data[:len(data)-32]); err == nil {
		t.Fatal("expected an error for a truncated content region")
	}
}
