package nand

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ilex/wad-go/pkg/crypto"
	"github.com/ilex/wad-go/pkg/keys"
	"github.com/ilex/wad-go/pkg/title"
)

func installableTitle(t *testing.T, titleID [8]byte) *title.Title {
	t.Helper()
	keys.Set(keys.KeyNameCommon, bytes.Repeat([]byte{0x35}, 16))
	titleKey := [16]byte{0xAA, 0xBB}
	encKey, err := crypto.EncryptTitleKey(titleKey, keys.CommonKeyIndexRetail, titleID, false)
	if err != nil {
		t.Fatal(err)
	}
	tik := &title.Ticket{
		TitleKey: encKey,
		TitleID:  titleID,
	}
	tik.SetSignatureIssuer("Root-CA00000001-XS00000003")
	tmd := &title.TMD{TitleID: titleID}
	tmd.SetSignatureIssuer("Root-CA00000001-CP00000004")

	tt := title.NewTitleFromParts(nil, tik, tmd, title.NewContentRegion(nil))
	if err := tt.AddContent([]byte("private content"), 0x20, title.ContentTypeNormal); err != nil {
		t.Fatal(err)
	}
	if err := tt.AddContent([]byte("shared content"), 0x21, title.ContentTypeShared); err != nil {
		t.Fatal(err)
	}
	return tt
}

func TestOpenCreatesSkeleton(t *testing.T) {
	root := t.TempDir()
	if _, err := Open(root, zap.NewNop().Sugar()); err != nil {
		t.Fatal(err)
	}
	for _, dir := range nandDirs {
		info, err := os.Stat(filepath.Join(root, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %s missing after Open", dir)
		}
	}
}

func TestInstallTitle(t *testing.T) {
	root := t.TempDir()
	n, err := Open(root, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	tid := [8]byte{0x00, 0x01, 0x00, 0x01, 0x61, 0x62, 0x63, 0x64}
	if err := n.InstallTitle(installableTitle(t, tid)); err != nil {
		t.Fatal(err)
	}

	tikData, err := os.ReadFile(filepath.Join(root, "ticket", "00010001", "61626364.tik"))
	if err != nil {
		t.Fatal(err)
	}
	if len(tikData) != title.TicketLen {
		t.Fatalf("installed ticket is %d bytes", len(tikData))
	}
	if _, err := os.ReadFile(filepath.Join(root, "title", "00010001", "61626364", "content", "title.tmd")); err != nil {
		t.Fatal(err)
	}
	// Private contents land decrypted under the title, shared ones under
	// /shared1 with names from content.map.
	private, err := os.ReadFile(filepath.Join(root, "title", "00010001", "61626364", "content", "00000020.app"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(private, []byte("private content")) {
		t.Fatalf("private content is %q", private)
	}
	shared, err := os.ReadFile(filepath.Join(root, "shared1", "00000000.app"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(shared, []byte("shared content")) {
		t.Fatalf("shared content is %q", shared)
	}

	uidData, err := os.ReadFile(filepath.Join(root, "sys", "uid.sys"))
	if err != nil {
		t.Fatal(err)
	}
	uidSys, err := ParseUIDSys(uidData)
	if err != nil {
		t.Fatal(err)
	}
	if len(uidSys.Entries) != 1 || uidSys.Entries[0].TitleID != tid {
		t.Fatal("uid.sys does not record the installed title")
	}

	titles, err := n.InstalledTitles()
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != 1 || titles[0] != tid {
		t.Fatalf("InstalledTitles returned %v", titles)
	}
}

func TestInstallDeduplicatesSharedContents(t *testing.T) {
	root := t.TempDir()
	n, err := Open(root, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	first := [8]byte{0x00, 0x01, 0x00, 0x01, 0x61, 0x61, 0x61, 0x61}
	second := [8]byte{0x00, 0x01, 0x00, 0x01, 0x62, 0x62, 0x62, 0x62}
	if err := n.InstallTitle(installableTitle(t, first)); err != nil {
		t.Fatal(err)
	}
	if err := n.InstallTitle(installableTitle(t, second)); err != nil {
		t.Fatal(err)
	}

	mapData, err := os.ReadFile(filepath.Join(root, "shared1", "content.map"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := ParseSharedContentMap(mapData)
	if err != nil {
		t.Fatal(err)
	}
	// Both titles carry the same shared content; the map must hold one entry.
	if len(m.Entries) != 1 {
		t.Fatalf("content.map has %d entries, want 1", len(m.Entries))
	}
}
