// Package nand manages EmuNAND directory trees: the on-disk layout Dolphin
// and USB loaders use to emulate a console's internal storage.
package nand

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ilex/wad-go/pkg/title"
)

var nandDirs = []string{
	"import", "meta", "shared1", "shared2", "sys", "ticket", "title", "tmp",
}

// EmuNAND is an emulated NAND root directory.
type EmuNAND struct {
	root string
	log  *zap.SugaredLogger
}

// Open opens an EmuNAND at root, creating the standard directory skeleton for
// any directories that are missing.
func Open(root string, log *zap.SugaredLogger) (*EmuNAND, error) {
	info, err := os.Stat(root)
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%s exists and is not a directory", root)
	}
	for _, dir := range nandDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("creating NAND directory %s: %w", dir, err)
		}
	}
	return &EmuNAND{root: root, log: log}, nil
}

// Root returns the NAND root path.
func (n *EmuNAND) Root() string { return n.root }

func titleIDParts(titleID [8]byte) (string, string) {
	return hex.EncodeToString(titleID[:4]), hex.EncodeToString(titleID[4:])
}

// InstallTitle installs a title the way ES would: ticket under /ticket, TMD
// and private contents decrypted under /title, shared contents deduplicated
// into /shared1 via content.map, the WAD footer under /meta, and the title
// registered in /sys/uid.sys. Contents are hash-checked during decryption, so
// a tampered title fails before anything is written.
func (n *EmuNAND) InstallTitle(t *title.Title) error {
	if _, err := t.TitleKey(); err != nil {
		return fmt.Errorf("cannot decrypt title key: %w", err)
	}
	tidHi, tidLo := titleIDParts(t.TMD.TitleID)

	decrypted := make([][]byte, len(t.TMD.ContentRecords))
	for i := range t.TMD.ContentRecords {
		data, err := t.GetContentByIndex(i)
		if err != nil {
			return fmt.Errorf("decrypting content %d: %w", i, err)
		}
		decrypted[i] = data
	}

	ticketDir := filepath.Join(n.root, "ticket", tidHi)
	if err := os.MkdirAll(ticketDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(ticketDir, tidLo+".tik"), t.Ticket.ToBytes(), 0644); err != nil {
		return err
	}

	contentDir := filepath.Join(n.root, "title", tidHi, tidLo, "content")
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(n.root, "title", tidHi, tidLo, "data"), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(contentDir, "title.tmd"), t.TMD.ToBytes(), 0644); err != nil {
		return err
	}

	sharedMap, err := n.loadSharedMap()
	if err != nil {
		return err
	}
	for i, record := range t.TMD.ContentRecords {
		if record.Type == title.ContentTypeShared {
			if name, ok := sharedMap.Lookup(record.Hash); ok {
				n.log.Debugw("shared content already installed", "hash", fmt.Sprintf("%x", record.Hash), "name", name)
				continue
			}
			name := sharedMap.Add(record.Hash)
			path := filepath.Join(n.root, "shared1", name+".app")
			if err := os.WriteFile(path, decrypted[i], 0644); err != nil {
				return err
			}
			continue
		}
		path := filepath.Join(contentDir, fmt.Sprintf("%08x.app", record.ContentID))
		if err := os.WriteFile(path, decrypted[i], 0644); err != nil {
			return err
		}
	}
	if err := os.WriteFile(filepath.Join(n.root, "shared1", "content.map"), sharedMap.ToBytes(), 0644); err != nil {
		return err
	}

	if meta := t.Meta(); len(meta) > 0 {
		metaDir := filepath.Join(n.root, "meta", tidHi, tidLo)
		if err := os.MkdirAll(metaDir, 0755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(metaDir, "title.met"), meta, 0644); err != nil {
			return err
		}
	}

	uidSys, err := n.loadUIDSys()
	if err != nil {
		return err
	}
	uid := uidSys.Register(t.TMD.TitleID)
	if err := os.WriteFile(filepath.Join(n.root, "sys", "uid.sys"), uidSys.ToBytes(), 0644); err != nil {
		return err
	}

	n.log.Infow("installed title",
		"title_id", tidHi+tidLo,
		"version", t.TMD.TitleVersion,
		"contents", len(t.TMD.ContentRecords),
		"uid", uid,
	)
	return nil
}

func (n *EmuNAND) loadSharedMap() (*SharedContentMap, error) {
	data, err := os.ReadFile(filepath.Join(n.root, "shared1", "content.map"))
	if errors.Is(err, os.ErrNotExist) {
		return &SharedContentMap{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseSharedContentMap(data)
}

func (n *EmuNAND) loadUIDSys() (*UIDSys, error) {
	data, err := os.ReadFile(filepath.Join(n.root, "sys", "uid.sys"))
	if errors.Is(err, os.ErrNotExist) {
		return &UIDSys{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseUIDSys(data)
}

// InstalledTitles lists the title IDs with a TMD present under /title.
func (n *EmuNAND) InstalledTitles() ([][8]byte, error) {
	var titles [][8]byte
	hiDirs, err := os.ReadDir(filepath.Join(n.root, "title"))
	if err != nil {
		return nil, err
	}
	for _, hi := range hiDirs {
		if !hi.IsDir() {
			continue
		}
		loDirs, err := os.ReadDir(filepath.Join(n.root, "title", hi.Name()))
		if err != nil {
			return nil, err
		}
		for _, lo := range loDirs {
			if !lo.IsDir() {
				continue
			}
			tmdPath := filepath.Join(n.root, "title", hi.Name(), lo.Name(), "content", "title.tmd")
			if _, err := os.Stat(tmdPath); err != nil {
				continue
			}
			raw, err := hex.DecodeString(hi.Name() + lo.Name())
			if err != nil || len(raw) != 8 {
				continue
			}
			var tid [8]byte
			copy(tid[:], raw)
			titles = append(titles, tid)
		}
	}
	return titles, nil
}
