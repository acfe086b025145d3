package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilex/wad-go/pkg/keys"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: wadtool <command> [options] <args>

Commands:
  wad unpack <in.wad> <outdir>   Unpack a WAD into its parts
  wad pack <indir> <out.wad>     Pack unpacked parts back into a WAD
  fakesign <in> [-o <out>]       Fakesign a WAD, TMD, or Ticket
  info <file>                    Show information about a WAD, TMD, or Ticket
  lz77 <in> [-o <out>]           Decompress LZ77 data
  u8 unpack <in> <outdir>        Extract a U8 archive
  nus tmd|ticket|content|title   Download from the Nintendo Update Server
  emunand install <root> <wad>   Install a WAD into an EmuNAND

Run 'wadtool <command> -h' for command options.
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "wad":
		err = cmdWAD(args[1:])
	case "fakesign":
		err = cmdFakesign(args[1:])
	case "info":
		err = cmdInfo(args[1:])
	case "lz77":
		err = cmdLZ77(args[1:])
	case "u8":
		err = cmdU8(args[1:])
	case "nus":
		err = cmdNUS(args[1:])
	case "emunand":
		err = cmdEmuNAND(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadKeys loads the common key file for commands that decrypt content.
func loadKeys(path string) error {
	if path != "" {
		return keys.Load(path)
	}
	if err := keys.LoadDefault(); err != nil {
		return fmt.Errorf("could not load keys (provide a key file with -k or place wii.keys in ~/.wii): %w", err)
	}
	return nil
}
