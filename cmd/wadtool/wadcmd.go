package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilex/wad-go/pkg/title"
)

func cmdWAD(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: wadtool wad <unpack|pack> ...")
	}
	switch args[0] {
	case "unpack":
		return cmdWADUnpack(args[1:])
	case "pack":
		return cmdWADPack(args[1:])
	default:
		return fmt.Errorf("unknown wad subcommand %q", args[0])
	}
}

func cmdWADUnpack(args []string) error {
	fs := flag.NewFlagSet("wad unpack", flag.ExitOnError)
	keysPath := fs.String("k", "", "Path to a Wii key file")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: wadtool wad unpack <in.wad> <outdir>")
	}
	if err := loadKeys(*keysPath); err != nil {
		return err
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	t, err := title.ParseTitle(data)
	if err != nil {
		return err
	}
	outDir := fs.Arg(1)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	tid := hex.EncodeToString(t.TMD.TitleID[:])
	if err := os.WriteFile(filepath.Join(outDir, tid+".cert"), t.CertChain.ToBytes(), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, tid+".tik"), t.Ticket.ToBytes(), 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, tid+".tmd"), t.TMD.ToBytes(), 0644); err != nil {
		return err
	}
	if meta := t.Meta(); len(meta) > 0 {
		if err := os.WriteFile(filepath.Join(outDir, tid+".footer"), meta, 0644); err != nil {
			return err
		}
	}
	// Contents are written decrypted, named by record index so pack can
	// rebuild the region in order.
	for i, record := range t.TMD.ContentRecords {
		content, err := t.GetContentByIndex(i)
		if err != nil {
			return fmt.Errorf("decrypting content %d: %w", i, err)
		}
		name := fmt.Sprintf("%08x.app", record.Index)
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0644); err != nil {
			return err
		}
	}
	fmt.Printf("Unpacked %s (%d contents) into %s\n", tid, len(t.TMD.ContentRecords), outDir)
	return nil
}

func cmdWADPack(args []string) error {
	fs := flag.NewFlagSet("wad pack", flag.ExitOnError)
	keysPath := fs.String("k", "", "Path to a Wii key file")
	fakesign := fs.Bool("fakesign", false, "Fakesign the packed WAD")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: wadtool wad pack [-fakesign] <indir> <out.wad>")
	}
	if err := loadKeys(*keysPath); err != nil {
		return err
	}
	inDir := fs.Arg(0)

	certData, err := readOneByExt(inDir, ".cert")
	if err != nil {
		return err
	}
	tikData, err := readOneByExt(inDir, ".tik")
	if err != nil {
		return err
	}
	tmdData, err := readOneByExt(inDir, ".tmd")
	if err != nil {
		return err
	}

	certChain, err := title.ParseCertificateChain(certData)
	if err != nil {
		return fmt.Errorf("parsing certificate chain: %w", err)
	}
	ticket, err := title.ParseTicket(tikData)
	if err != nil {
		return fmt.Errorf("parsing ticket: %w", err)
	}
	tmd, err := title.ParseTMD(tmdData)
	if err != nil {
		return fmt.Errorf("parsing TMD: %w", err)
	}

	content := title.NewContentRegion(tmd.ContentRecords)
	t := title.NewTitleFromParts(certChain, ticket, tmd, content)
	for i, record := range tmd.ContentRecords {
		name := fmt.Sprintf("%08x.app", record.Index)
		data, err := os.ReadFile(filepath.Join(inDir, name))
		if err != nil {
			return fmt.Errorf("reading content %s: %w", name, err)
		}
		if err := t.LoadContent(data, i); err != nil {
			return fmt.Errorf("content %s: %w", name, err)
		}
	}
	if *fakesign {
		if err := t.Fakesign(); err != nil {
			return err
		}
	}
	out, err := t.ToBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(fs.Arg(1), out, 0644); err != nil {
		return err
	}
	fmt.Printf("Packed %s (%d bytes)\n", fs.Arg(1), len(out))
	return nil
}

// readOneByExt reads the single file with the given extension in dir.
func readOneByExt(dir, ext string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("expected exactly one %s file in %s, found %d", ext, dir, len(matches))
	}
	return os.ReadFile(matches[0])
}

func cmdFakesign(args []string) error {
	fs := flag.NewFlagSet("fakesign", flag.ExitOnError)
	output := fs.String("o", "", "Output path (defaults to overwriting the input)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wadtool fakesign [-o <out>] <in>")
	}
	inPath := fs.Arg(0)
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	outPath := *output
	if outPath == "" {
		outPath = inPath
	}

	var out []byte
	switch kind := identifyFile(inPath, data); kind {
	case FileTypeWAD:
		t, err := title.ParseTitle(data)
		if err != nil {
			return err
		}
		if err := t.Fakesign(); err != nil {
			return err
		}
		if out, err = t.ToBytes(); err != nil {
			return err
		}
	case FileTypeTMD:
		tmd, err := title.ParseTMD(data)
		if err != nil {
			return err
		}
		if err := tmd.Fakesign(); err != nil {
			return err
		}
		out = tmd.ToBytes()
	case FileTypeTicket:
		tik, err := title.ParseTicket(data)
		if err != nil {
			return err
		}
		if err := tik.Fakesign(); err != nil {
			return err
		}
		out = tik.ToBytes()
	default:
		return fmt.Errorf("%s is a %s file, which cannot be fakesigned", inPath, kind)
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return err
	}
	fmt.Printf("Fakesigned %s\n", outPath)
	return nil
}
