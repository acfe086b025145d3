package archive

import (
	"bytes"
	"testing"
)

// testArchive is a small tree: /a.txt, /sub/b.bin.
func testArchive() *U8Archive {
	return &U8Archive{
		Nodes: []U8Node{
			{Type: 1, Size: 4},
			{Type: 0},
			{Type: 1, DataOffset: 0, Size: 4},
			{Type: 0},
		},
		names: []string{"", "a.txt", "sub", "b.bin"},
		data:  [][]byte{nil, []byte("hello"), nil, bytes.Repeat([]byte{0xEE}, 40)},
	}
}

func TestU8RoundTrip(t *testing.T) {
	data := testArchive().ToBytes()
	parsed, err := ParseU8(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(parsed.Nodes))
	}
	// The serializer is canonical: reserializing a parsed archive must
	// reproduce the same bytes.
	if !bytes.Equal(parsed.ToBytes(), data) {
		t.Fatal("archive bytes changed across a round trip")
	}
}

func TestU8Tree(t *testing.T) {
	data := testArchive().ToBytes()
	parsed, err := ParseU8(data)
	if err != nil {
		t.Fatal(err)
	}
	root, err := parsed.Tree()
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	if root.Children[0].Name != "a.txt" || root.Children[0].IsDir {
		t.Fatalf("first child is %q (dir=%v)", root.Children[0].Name, root.Children[0].IsDir)
	}
	if !bytes.Equal(root.Children[0].Data, []byte("hello")) {
		t.Fatalf("a.txt holds %q", root.Children[0].Data)
	}
	sub := root.Children[1]
	if sub.Name != "sub" || !sub.IsDir {
		t.Fatalf("second child is %q (dir=%v)", sub.Name, sub.IsDir)
	}
	if len(sub.Children) != 1 || sub.Children[0].Name != "b.bin" {
		t.Fatal("sub directory lost its file")
	}
	if len(sub.Children[0].Data) != 40 {
		t.Fatalf("b.bin is %d bytes", len(sub.Children[0].Data))
	}
}

func TestU8ToBytesPadsFinalFile(t *testing.T) {
	// The last file is 40 bytes; its padding to the next 32-byte boundary
	// must be written out, not just the padding between files.
	data := testArchive().ToBytes()
	if len(data)%32 != 0 {
		t.Fatalf("archive is %d bytes, final file not padded to 32", len(data))
	}
}

func TestParseU8IMETOffsets(t *testing.T) {
	arc := testArchive().ToBytes()

	banner := make([]byte, 0x600+len(arc))
	copy(banner[0x40:], "IMET")
	copy(banner[0x600:], arc)
	if _, err := ParseU8(banner); err != nil {
		t.Fatalf("IMET banner at 0x600: %v", err)
	}

	tagged := make([]byte, 0x640+len(arc))
	copy(tagged[0x80:], "IMET")
	copy(tagged[0x640:], arc)
	if _, err := ParseU8(tagged); err != nil {
		t.Fatalf("IMET banner with build tag at 0x640: %v", err)
	}
}

func TestParseU8Rejects(t *testing.T) {
	if _, err := ParseU8([]byte("not an archive")); err == nil {
		t.Fatal("expected an error for non-archive data")
	}
	arc := testArchive().ToBytes()
	arc[0] = 0x00
	if _, err := ParseU8(arc); err == nil {
		t.Fatal("expected an error for a bad magic")
	}
}

func TestU8FromDirNotImplemented(t *testing.T) {
	if _, err := U8FromDir("somewhere"); err == nil {
		t.Fatal("expected ErrNotImplemented")
	}
}
