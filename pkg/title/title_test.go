package title

import (
	"bytes"
	"testing"
)

// testTitle builds a complete installable title: a CA-signed chain, a ticket
// whose title key is wrapped with the test common key, and two contents.
func testTitle(t *testing.T) *Title {
	t.Helper()
	chain, _, _ := testChain(t)
	tik := testTicket(t)
	tmd := testTMD()
	tmd.ContentRecords = nil

	tt := NewTitleFromParts(chain, tik, tmd, NewContentRegion(nil))
	if err := tt.AddContent([]byte("the boot content"), 0x17, ContentTypeNormal); err != nil {
		t.Fatal(err)
	}
	if err := tt.AddContent(bytes.Repeat([]byte{0x42}, 200), 0x18, ContentTypeShared); err != nil {
		t.Fatal(err)
	}
	return tt
}

func TestTitleRoundTrip(t *testing.T) {
	tt := testTitle(t)
	data, err := tt.ToBytes()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseTitle(data)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.TMD.TitleID != tt.TMD.TitleID {
		t.Fatal("title ID changed across a round trip")
	}
	if len(parsed.TMD.ContentRecords) != 2 {
		t.Fatalf("expected 2 records, got %d", len(parsed.TMD.ContentRecords))
	}
	got, err := parsed.GetContentByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("the boot content")) {
		t.Fatalf("content changed: %q", got)
	}
	got, err = parsed.GetContentByCID(0x18)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 200 || got[0] != 0x42 {
		t.Fatal("shared content changed")
	}
}

func TestTitleRecordsStaySynced(t *testing.T) {
	tt := testTitle(t)
	if err := tt.AddContent([]byte("extra"), 0x19, ContentTypeNormal); err != nil {
		t.Fatal(err)
	}
	if len(tt.TMD.ContentRecords) != 3 {
		t.Fatalf("TMD has %d records after add, want 3", len(tt.TMD.ContentRecords))
	}
	if err := tt.RemoveContent(0); err != nil {
		t.Fatal(err)
	}
	if len(tt.TMD.ContentRecords) != 2 {
		t.Fatalf("TMD has %d records after remove, want 2", len(tt.TMD.ContentRecords))
	}
	if err := tt.SetContent([]byte("rewritten"), 0, 0, 0); err != nil {
		t.Fatal(err)
	}
	if tt.TMD.ContentRecords[0].Size != uint64(len("rewritten")) {
		t.Fatal("TMD record size not updated by SetContent")
	}
}

func TestTitleFakesign(t *testing.T) {
	tt := testTitle(t)
	if tt.IsFakesigned() {
		t.Fatal("fresh title reported as fakesigned")
	}
	if err := tt.Fakesign(); err != nil {
		t.Fatal(err)
	}
	if !tt.IsFakesigned() {
		t.Fatal("title not fakesigned after Fakesign")
	}
	// A fakesigned title must fail real verification.
	if err := tt.VerifySignatures(); err == nil {
		t.Fatal("fakesigned title passed signature verification")
	}
	// Fakesigning must survive a pack/parse cycle.
	data, err := tt.ToBytes()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseTitle(data)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.IsFakesigned() {
		t.Fatal("fakesigned state lost across a round trip")
	}
}

func TestTitleHalfFakesignedIsNotFakesigned(t *testing.T) {
	tt := testTitle(t)
	if err := tt.TMD.Fakesign(); err != nil {
		t.Fatal(err)
	}
	if tt.IsFakesigned() {
		t.Fatal("title with only a fakesigned TMD reported as fakesigned")
	}
}

func TestTitleSize(t *testing.T) {
	tt := testTitle(t)
	// The installed size counts the serialized TMD and Ticket, not just the
	// contents.
	base := uint64(len(tt.TMD.ToBytes()) + len(tt.Ticket.ToBytes()))
	normal := base + uint64(len("the boot content"))
	if got := tt.TitleSize(false); got != normal {
		t.Fatalf("TitleSize(false) = %d, want %d (TMD + Ticket + non-shared contents)", got, normal)
	}
	if got := tt.TitleSize(true); got != normal+200 {
		t.Fatalf("TitleSize(true) = %d, want %d", got, normal+200)
	}
	if got := tt.TitleSizeBlocks(true); got != 1 {
		t.Fatalf("TitleSizeBlocks(true) = %d, want 1", got)
	}
}

func TestTitleBoot2PacksAsBootWAD(t *testing.T) {
	tt := testTitle(t)
	tt.TMD.TitleID = boot2TitleID
	w, err := tt.ToWAD()
	if err != nil {
		t.Fatal(err)
	}
	if w.Type != WADTypeBoot2 {
		t.Fatalf("boot2 packed as type %q", w.Type)
	}
}

func TestTitleIncompleteCannotPack(t *testing.T) {
	tt := testTitle(t)
	tt.Ticket = nil
	if _, err := tt.ToWAD(); err == nil {
		t.Fatal("packed a title with no ticket")
	}
}
