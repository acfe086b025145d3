package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/ilex/wad-go/pkg/nus"
)

func parseTitleID(s string) ([8]byte, error) {
	var tid [8]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return tid, fmt.Errorf("title ID must be 16 hex digits, got %q", s)
	}
	copy(tid[:], raw)
	return tid, nil
}

func newNUSClient(cachePath string, verbose bool) (*nus.Client, func(), error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	client := nus.NewClient(logger.Sugar())
	client.OnDownload = func(name string, size int64) io.Writer {
		return progressbar.DefaultBytes(size, name)
	}
	cleanup := func() { logger.Sync() }
	if cachePath != "" {
		cache, err := nus.OpenCache(cachePath)
		if err != nil {
			return nil, nil, err
		}
		client.Cache = cache
		cleanup = func() {
			cache.Close()
			logger.Sync()
		}
	}
	return client, cleanup, nil
}

func cmdNUS(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: wadtool nus <tmd|ticket|content|title> ...")
	}
	sub, args := args[0], args[1:]

	fs := flag.NewFlagSet("nus "+sub, flag.ExitOnError)
	output := fs.String("o", "", "Output path")
	version := fs.String("version", "", "Title version (latest if omitted)")
	cachePath := fs.String("cache", "", "Path to a download cache database")
	keysPath := fs.String("k", "", "Path to a Wii key file (title downloads only)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: wadtool nus %s [options] <title-id> [content-id]", sub)
	}
	titleID, err := parseTitleID(fs.Arg(0))
	if err != nil {
		return err
	}
	var versionNum *uint16
	if *version != "" {
		v, err := strconv.ParseUint(*version, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", *version, err)
		}
		n := uint16(v)
		versionNum = &n
	}

	client, cleanup, err := newNUSClient(*cachePath, *verbose)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	switch sub {
	case "tmd":
		data, err := client.DownloadTMD(ctx, titleID, versionNum)
		if err != nil {
			return err
		}
		return writeDownload(*output, fs.Arg(0)+".tmd", data)
	case "ticket":
		data, err := client.DownloadTicket(ctx, titleID)
		if err != nil {
			return err
		}
		return writeDownload(*output, fs.Arg(0)+".tik", data)
	case "content":
		if fs.NArg() != 2 {
			return fmt.Errorf("usage: wadtool nus content <title-id> <content-id>")
		}
		cid, err := strconv.ParseUint(fs.Arg(1), 16, 32)
		if err != nil {
			return fmt.Errorf("invalid content ID %q: %w", fs.Arg(1), err)
		}
		data, err := client.DownloadContent(ctx, titleID, uint32(cid))
		if err != nil {
			return err
		}
		return writeDownload(*output, fmt.Sprintf("%08x", cid), data)
	case "title":
		// Packing only rearranges encrypted data, so missing keys are not
		// fatal here.
		if err := loadKeys(*keysPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		t, err := client.DownloadTitle(ctx, titleID, versionNum)
		if err != nil {
			return err
		}
		data, err := t.ToBytes()
		if err != nil {
			return err
		}
		return writeDownload(*output, fs.Arg(0)+".wad", data)
	default:
		return fmt.Errorf("unknown nus subcommand %q", sub)
	}
}

func writeDownload(output, fallback string, data []byte) error {
	path := output
	if path == "" {
		path = fallback
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Saved %s (%d bytes)\n", path, len(data))
	return nil
}
