package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPropertiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wii.keys")
	content := "common = 000102030405060708090A0B0C0D0E0F\nkorean = FFEEDDCCBBAA99887766554433221100\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Load(path); err != nil {
		t.Fatal(err)
	}
	common := Get("common")
	if len(common) != 16 || common[0] != 0x00 || common[15] != 0x0F {
		t.Fatalf("unexpected common key %x", common)
	}
	korean := Get("korean")
	if len(korean) != 16 || korean[0] != 0xFF {
		t.Fatalf("unexpected korean key %x", korean)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	Set("copytest", []byte{1, 2, 3})
	k := Get("copytest")
	k[0] = 99
	if Get("copytest")[0] != 1 {
		t.Fatal("Get exposed internal key storage")
	}
}

func TestCommonKeySelection(t *testing.T) {
	Set(KeyNameCommon, bytes.Repeat([]byte{0x01}, 16))
	Set(KeyNameCommonDev, bytes.Repeat([]byte{0x02}, 16))
	Set(KeyNameKorean, bytes.Repeat([]byte{0x03}, 16))
	Set(KeyNameVWii, bytes.Repeat([]byte{0x04}, 16))

	cases := []struct {
		index uint8
		isDev bool
		want  byte
	}{
		{CommonKeyIndexRetail, false, 0x01},
		{CommonKeyIndexRetail, true, 0x02},
		{CommonKeyIndexKorean, false, 0x03},
		{CommonKeyIndexVWii, false, 0x04},
		// Out-of-range indices fall back to the common key.
		{7, false, 0x01},
	}
	for _, c := range cases {
		key, err := CommonKey(c.index, c.isDev)
		if err != nil {
			t.Fatalf("index %d: %v", c.index, err)
		}
		if key[0] != c.want {
			t.Fatalf("index %d isDev=%v: got key %x, want leading byte %#x", c.index, c.isDev, key, c.want)
		}
	}
}

func TestCommonKeyMissing(t *testing.T) {
	Set(KeyNameKorean, nil)
	if _, err := CommonKey(CommonKeyIndexKorean, false); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}
