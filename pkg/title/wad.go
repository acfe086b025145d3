package title

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wadHeaderLen = 0x20

// WADType marks what a WAD installs. Almost every WAD is an installable
// title; boot2 WADs use a separate marker because they flash the second-stage
// bootloader instead.
type WADType string

const (
	WADTypeInstallable WADType = "Is"
	WADTypeBoot2       WADType = "ib"
)

// WAD is the on-disk container bundling a title's certificate chain, Ticket,
// TMD, and encrypted content. Region blobs are stored as raw bytes; parsing
// them into structures is the Title layer's job, so a WAD with a malformed
// region can still be opened and repacked.
type WAD struct {
	Type    WADType
	Version uint16

	certChain []byte
	crl       []byte
	ticket    []byte
	tmd       []byte
	content   []byte
	meta      []byte
}

// ParseWAD splits WAD data into its regions. The header records each region's
// size; regions follow the header in fixed order, each aligned to a 64-byte
// boundary. The content region is read rounded up to the AES block size
// because some tools write a truncated size for block-padded data.
func ParseWAD(data []byte) (*WAD, error) {
	if len(data) < wadHeaderLen {
		return nil, fmt.Errorf("WAD data is only %d bytes, header requires %d", len(data), wadHeaderLen)
	}
	headerSize := binary.BigEndian.Uint32(data[0x00:0x04])
	if headerSize != wadHeaderLen {
		return nil, fmt.Errorf("invalid WAD header size %d", headerSize)
	}
	w := &WAD{}
	w.Type = WADType(data[0x04:0x06])
	switch w.Type {
	case WADTypeInstallable, WADTypeBoot2:
	default:
		return nil, fmt.Errorf("unsupported WAD type %q", string(w.Type))
	}
	w.Version = binary.BigEndian.Uint16(data[0x06:0x08])
	certSize := binary.BigEndian.Uint32(data[0x08:0x0C])
	crlSize := binary.BigEndian.Uint32(data[0x0C:0x10])
	ticketSize := binary.BigEndian.Uint32(data[0x10:0x14])
	tmdSize := binary.BigEndian.Uint32(data[0x14:0x18])
	contentSize := binary.BigEndian.Uint32(data[0x18:0x1C])
	metaSize := binary.BigEndian.Uint32(data[0x1C:0x20])

	offset := alignUp(wadHeaderLen, 64)
	read := func(size uint64, name string) ([]byte, error) {
		if offset+size > uint64(len(data)) {
			return nil, fmt.Errorf("WAD %s region of %d bytes at offset %d overruns %d-byte file",
				name, size, offset, len(data))
		}
		region := make([]byte, size)
		copy(region, data[offset:offset+size])
		offset = alignUp(offset+size, 64)
		return region, nil
	}

	var err error
	if w.certChain, err = read(uint64(certSize), "certificate chain"); err != nil {
		return nil, err
	}
	if w.crl, err = read(uint64(crlSize), "CRL"); err != nil {
		return nil, err
	}
	if w.ticket, err = read(uint64(ticketSize), "ticket"); err != nil {
		return nil, err
	}
	if w.tmd, err = read(uint64(tmdSize), "TMD"); err != nil {
		return nil, err
	}
	if w.content, err = read(alignUp(uint64(contentSize), 16), "content"); err != nil {
		return nil, err
	}
	if w.meta, err = read(uint64(metaSize), "meta"); err != nil {
		return nil, err
	}
	return w, nil
}

// NewWAD assembles a WAD from serialized regions. The crl and meta regions
// are optional and may be nil.
func NewWAD(wadType WADType, certChain, crl, ticket, tmd, content, meta []byte) *WAD {
	return &WAD{
		Type:      wadType,
		certChain: certChain,
		crl:       crl,
		ticket:    ticket,
		tmd:       tmd,
		content:   content,
		meta:      meta,
	}
}

// ToBytes serializes the WAD, padding the header and every region to 64
// bytes. The trailing padding after the final region is included, matching
// what Nintendo's own tooling produces.
func (w *WAD) ToBytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(wadHeaderLen))
	buf.WriteString(string(w.Type))
	binary.Write(buf, binary.BigEndian, w.Version)
	binary.Write(buf, binary.BigEndian, uint32(len(w.certChain)))
	binary.Write(buf, binary.BigEndian, uint32(len(w.crl)))
	binary.Write(buf, binary.BigEndian, uint32(len(w.ticket)))
	binary.Write(buf, binary.BigEndian, uint32(len(w.tmd)))
	binary.Write(buf, binary.BigEndian, uint32(len(w.content)))
	binary.Write(buf, binary.BigEndian, uint32(len(w.meta)))
	pad := func() {
		if over := buf.Len() % 64; over != 0 {
			buf.Write(make([]byte, 64-over))
		}
	}
	pad()
	for _, region := range [][]byte{w.certChain, w.crl, w.ticket, w.tmd, w.content, w.meta} {
		buf.Write(region)
		pad()
	}
	return buf.Bytes()
}

// CertChainData returns the raw certificate chain region.
func (w *WAD) CertChainData() []byte { return w.certChain }

// SetCertChainData replaces the raw certificate chain region.
func (w *WAD) SetCertChainData(data []byte) { w.certChain = data }

// CRLData returns the raw certificate revocation list region. Retail WADs
// leave it empty.
func (w *WAD) CRLData() []byte { return w.crl }

// SetCRLData replaces the raw CRL region.
func (w *WAD) SetCRLData(data []byte) { w.crl = data }

// TicketData returns the raw ticket region.
func (w *WAD) TicketData() []byte { return w.ticket }

// SetTicketData replaces the raw ticket region.
func (w *WAD) SetTicketData(data []byte) { w.ticket = data }

// TMDData returns the raw TMD region.
func (w *WAD) TMDData() []byte { return w.tmd }

// SetTMDData replaces the raw TMD region.
func (w *WAD) SetTMDData(data []byte) { w.tmd = data }

// ContentData returns the raw encrypted content region.
func (w *WAD) ContentData() []byte { return w.content }

// SetContentData replaces the raw content region.
func (w *WAD) SetContentData(data []byte) { w.content = data }

// MetaData returns the raw meta/footer region, usually a build timestamp.
func (w *WAD) MetaData() []byte { return w.meta }

// SetMetaData replaces the raw meta region.
func (w *WAD) SetMetaData(data []byte) { w.meta = data }
