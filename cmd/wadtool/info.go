package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/table"

	"github.com/ilex/wad-go/pkg/title"
)

var systemMenuTID = [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: wadtool info <file>")
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch kind := identifyFile(path, data); kind {
	case FileTypeWAD:
		t, err := title.ParseTitle(data)
		if err != nil {
			return err
		}
		return printTitleInfo(t)
	case FileTypeTMD:
		tmd, err := title.ParseTMD(data)
		if err != nil {
			return err
		}
		printTMDInfo(tmd)
		return nil
	case FileTypeTicket:
		tik, err := title.ParseTicket(data)
		if err != nil {
			return err
		}
		printTicketInfo(tik)
		return nil
	default:
		return fmt.Errorf("%s is a %s file; info supports WAD, TMD, and Ticket files", path, kind)
	}
}

func newInfoTable(heading string) table.Writer {
	fmt.Printf("\n%s:\n", heading)
	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	return w
}

func signatureStatus(verify func() error, fakesigned bool) string {
	if err := verify(); err == nil {
		return "valid (signed by Nintendo)"
	}
	if fakesigned {
		return "fakesigned"
	}
	return "invalid"
}

func printTitleInfo(t *title.Title) error {
	w := newInfoTable("Title")
	tid := hex.EncodeToString(t.TMD.TitleID[:])
	w.AppendRow(table.Row{"Title ID", tid})
	w.AppendRow(table.Row{"Type", t.TMD.TitleType().String()})
	w.AppendRow(table.Row{"Region", t.TMD.Region()})
	if t.TMD.TitleID == systemMenuTID {
		w.AppendRow(table.Row{"System Menu", title.SystemMenuVersion(t.TMD.TitleVersion)})
	}
	w.AppendRow(table.Row{"Title version", t.TMD.TitleVersion})
	ios := uint32(t.TMD.IOSTitleID[6])<<8 | uint32(t.TMD.IOSTitleID[7])
	w.AppendRow(table.Row{"Required IOS", fmt.Sprintf("IOS%d", ios)})
	w.AppendRow(table.Row{"vWii title", t.TMD.IsVWii()})
	w.AppendRow(table.Row{"Installed size", fmt.Sprintf("%d blocks (%d bytes)", t.TitleSizeBlocks(false), t.TitleSize(false))})
	w.AppendRow(table.Row{"Development", t.Ticket.IsDev()})
	w.AppendRow(table.Row{"Signature", signatureStatus(t.VerifySignatures, t.IsFakesigned())})
	w.Render()

	printContentRecords(t.TMD.ContentRecords)
	return nil
}

func printTMDInfo(tmd *title.TMD) {
	w := newInfoTable("TMD")
	w.AppendRow(table.Row{"Title ID", hex.EncodeToString(tmd.TitleID[:])})
	w.AppendRow(table.Row{"Type", tmd.TitleType().String()})
	w.AppendRow(table.Row{"Region", tmd.Region()})
	w.AppendRow(table.Row{"Title version", tmd.TitleVersion})
	w.AppendRow(table.Row{"Issuer", tmd.SignatureIssuer()})
	w.AppendRow(table.Row{"Boot content index", tmd.BootIndex})
	w.AppendRow(table.Row{"Fakesigned", tmd.IsFakesigned()})
	w.Render()
	printContentRecords(tmd.ContentRecords)
}

func printTicketInfo(tik *title.Ticket) {
	w := newInfoTable("Ticket")
	w.AppendRow(table.Row{"Title ID", hex.EncodeToString(tik.TitleID[:])})
	w.AppendRow(table.Row{"Title version", tik.TitleVersion})
	w.AppendRow(table.Row{"Issuer", tik.SignatureIssuer()})
	w.AppendRow(table.Row{"Common key index", tik.CommonKeyIndex})
	w.AppendRow(table.Row{"Development", tik.IsDev()})
	w.AppendRow(table.Row{"Fakesigned", tik.IsFakesigned()})
	if key, err := tik.DecTitleKey(); err == nil {
		w.AppendRow(table.Row{"Title key", hex.EncodeToString(key[:])})
	}
	w.Render()
}

func printContentRecords(records []title.ContentRecord) {
	w := newInfoTable("Contents")
	w.AppendHeader(table.Row{"Index", "Content ID", "Type", "Size", "Hash"})
	for _, record := range records {
		w.AppendRow(table.Row{
			record.Index,
			fmt.Sprintf("%08x", record.ContentID),
			record.Type.String(),
			record.Size,
			hex.EncodeToString(record.Hash[:]),
		})
	}
	w.Render()
}
