package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilex/wad-go/pkg/archive"
)

func cmdLZ77(args []string) error {
	fs := flag.NewFlagSet("lz77", flag.ExitOnError)
	output := fs.String("o", "", "Output path (defaults to the input with a .dec suffix)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wadtool lz77 [-o <out>] <in>")
	}
	inPath := fs.Arg(0)
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	out, err := archive.DecompressLZ77(data)
	if err != nil {
		return err
	}
	outPath := *output
	if outPath == "" {
		outPath = strings.TrimSuffix(inPath, filepath.Ext(inPath)) + ".dec"
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return err
	}
	fmt.Printf("Decompressed %d bytes into %s\n", len(out), outPath)
	return nil
}

func cmdU8(args []string) error {
	if len(args) == 0 || args[0] != "unpack" {
		return fmt.Errorf("usage: wadtool u8 unpack <in> <outdir>")
	}
	fs := flag.NewFlagSet("u8 unpack", flag.ExitOnError)
	fs.Parse(args[1:])
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: wadtool u8 unpack <in> <outdir>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	a, err := archive.ParseU8(data)
	if err != nil {
		return err
	}
	root, err := a.Tree()
	if err != nil {
		return err
	}
	outDir := fs.Arg(1)
	count, err := writeU8Tree(root, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("Extracted %d files into %s\n", count, outDir)
	return nil
}

func writeU8Tree(entry *archive.U8Entry, path string) (int, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return 0, err
	}
	count := 0
	for _, child := range entry.Children {
		childPath := filepath.Join(path, child.Name)
		if child.IsDir {
			n, err := writeU8Tree(child, childPath)
			if err != nil {
				return count, err
			}
			count += n
			continue
		}
		if err := os.WriteFile(childPath, child.Data, 0644); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
