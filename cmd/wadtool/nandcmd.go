package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ilex/wad-go/pkg/nand"
	"github.com/ilex/wad-go/pkg/title"
)

func cmdEmuNAND(args []string) error {
	if len(args) == 0 || args[0] != "install" {
		return fmt.Errorf("usage: wadtool emunand install [options] <nand-root> <wad>...")
	}
	fs := flag.NewFlagSet("emunand install", flag.ExitOnError)
	keysPath := fs.String("k", "", "Path to a Wii key file")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args[1:])
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: wadtool emunand install [options] <nand-root> <wad>...")
	}
	if err := loadKeys(*keysPath); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if *verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	n, err := nand.Open(fs.Arg(0), logger.Sugar())
	if err != nil {
		return err
	}
	for _, wadPath := range fs.Args()[1:] {
		data, err := os.ReadFile(wadPath)
		if err != nil {
			return err
		}
		t, err := title.ParseTitle(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", wadPath, err)
		}
		if err := n.InstallTitle(t); err != nil {
			return fmt.Errorf("installing %s: %w", wadPath, err)
		}
		fmt.Printf("Installed %s\n", wadPath)
	}
	return nil
}
