package title

import (
	"errors"
	"fmt"
)

// blockSize is the unit the System Menu reports storage in.
const blockSize = 131072

var boot2TitleID = [8]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01}

// Title ties together the four structures a WAD carries. All content
// mutations go through Title so the TMD's content records and the content
// region can never disagree; the records are re-synced after every mutating
// call and again when packing.
type Title struct {
	CertChain *CertificateChain
	Ticket    *Ticket
	TMD       *TMD
	Content   *ContentRegion

	// wad retains the source container so the CRL and meta regions and the
	// header version survive an unpack/repack cycle.
	wad *WAD
}

// NewTitleFromParts assembles a Title from already-parsed structures. The
// content region's records become the canonical record list.
func NewTitleFromParts(certChain *CertificateChain, ticket *Ticket, tmd *TMD, content *ContentRegion) *Title {
	t := &Title{
		CertChain: certChain,
		Ticket:    ticket,
		TMD:       tmd,
		Content:   content,
	}
	t.syncRecords()
	return t
}

// TitleFromWAD parses every region of a WAD into a Title.
func TitleFromWAD(w *WAD) (*Title, error) {
	certChain, err := ParseCertificateChain(w.CertChainData())
	if err != nil {
		return nil, fmt.Errorf("parsing certificate chain: %w", err)
	}
	ticket, err := ParseTicket(w.TicketData())
	if err != nil {
		return nil, fmt.Errorf("parsing ticket: %w", err)
	}
	tmd, err := ParseTMD(w.TMDData())
	if err != nil {
		return nil, fmt.Errorf("parsing TMD: %w", err)
	}
	content, err := ParseContentRegion(w.ContentData(), tmd.ContentRecords)
	if err != nil {
		return nil, fmt.Errorf("parsing content region: %w", err)
	}
	return &Title{
		CertChain: certChain,
		Ticket:    ticket,
		TMD:       tmd,
		Content:   content,
		wad:       w,
	}, nil
}

// ParseTitle parses raw WAD data into a Title.
func ParseTitle(data []byte) (*Title, error) {
	w, err := ParseWAD(data)
	if err != nil {
		return nil, err
	}
	return TitleFromWAD(w)
}

func (t *Title) syncRecords() {
	if t.TMD != nil && t.Content != nil {
		t.TMD.ContentRecords = t.Content.Records
	}
}

// ToWAD packs the Title back into a container. A Title built from a WAD
// carries that WAD's CRL, meta region, and header version forward; one built
// from parts gets empty optional regions. boot2 gets its own container type.
func (t *Title) ToWAD() (*WAD, error) {
	if t.CertChain == nil || t.Ticket == nil || t.TMD == nil || t.Content == nil {
		return nil, errors.New("title is incomplete and cannot be packed")
	}
	t.syncRecords()
	wadType := WADTypeInstallable
	if t.TMD.TitleID == boot2TitleID {
		wadType = WADTypeBoot2
	}
	var crl, meta []byte
	var version uint16
	if t.wad != nil {
		crl = t.wad.CRLData()
		meta = t.wad.MetaData()
		version = t.wad.Version
	}
	w := NewWAD(wadType, t.CertChain.ToBytes(), crl, t.Ticket.ToBytes(), t.TMD.ToBytes(), t.Content.ToBytes(), meta)
	w.Version = version
	return w, nil
}

// ToBytes packs the Title and serializes the resulting WAD.
func (t *Title) ToBytes() ([]byte, error) {
	w, err := t.ToWAD()
	if err != nil {
		return nil, err
	}
	return w.ToBytes(), nil
}

// Meta returns the meta/footer region of the WAD this Title came from, or
// nil for a Title built from parts.
func (t *Title) Meta() []byte {
	if t.wad == nil {
		return nil
	}
	return t.wad.MetaData()
}

// TitleKey decrypts the Title Key from the Ticket.
func (t *Title) TitleKey() ([16]byte, error) {
	return t.Ticket.DecTitleKey()
}

// IsFakesigned reports whether both the TMD and the Ticket are fakesigned.
// A title with only one forged signature still fails to install on a
// vulnerable IOS, so a half-fakesigned title reports false.
func (t *Title) IsFakesigned() bool {
	return t.TMD.IsFakesigned() && t.Ticket.IsFakesigned()
}

// Fakesign forges both signatures, syncing the content records first so the
// TMD signs the manifest that will actually be packed.
func (t *Title) Fakesign() error {
	t.syncRecords()
	if err := t.TMD.Fakesign(); err != nil {
		return err
	}
	return t.Ticket.Fakesign()
}

// VerifySignatures checks the real signatures of the TMD and Ticket against
// the certificate chain, and the CP and XS certificates against the CA.
// Fakesigned titles fail this check.
func (t *Title) VerifySignatures() error {
	tmdCert, err := t.CertChain.TMDCert()
	if err != nil {
		return err
	}
	if err := t.CertChain.VerifyCert(tmdCert); err != nil {
		return fmt.Errorf("verifying CP certificate: %w", err)
	}
	ticketCert, err := t.CertChain.TicketCert()
	if err != nil {
		return err
	}
	if err := t.CertChain.VerifyCert(ticketCert); err != nil {
		return fmt.Errorf("verifying XS certificate: %w", err)
	}
	if err := t.CertChain.VerifyTMD(t.TMD); err != nil {
		return fmt.Errorf("verifying TMD signature: %w", err)
	}
	if err := t.CertChain.VerifyTicket(t.Ticket); err != nil {
		return fmt.Errorf("verifying ticket signature: %w", err)
	}
	return nil
}

// GetEncContentByIndex returns stored encrypted content by position.
func (t *Title) GetEncContentByIndex(index int) ([]byte, error) {
	return t.Content.GetEncContentByIndex(index)
}

// GetContentByIndex decrypts and verifies content by position using the
// Ticket's Title Key.
func (t *Title) GetContentByIndex(index int) ([]byte, error) {
	titleKey, err := t.TitleKey()
	if err != nil {
		return nil, err
	}
	return t.Content.GetContentByIndex(index, titleKey)
}

// GetEncContentByCID returns stored encrypted content by Content ID.
func (t *Title) GetEncContentByCID(cid uint32) ([]byte, error) {
	return t.Content.GetEncContentByCID(cid)
}

// GetContentByCID decrypts and verifies content by Content ID.
func (t *Title) GetContentByCID(cid uint32) ([]byte, error) {
	titleKey, err := t.TitleKey()
	if err != nil {
		return nil, err
	}
	return t.Content.GetContentByCID(cid, titleKey)
}

// SetContent replaces content by position, updating its record.
func (t *Title) SetContent(content []byte, index int, newCID uint32, newType ContentType) error {
	titleKey, err := t.TitleKey()
	if err != nil {
		return err
	}
	if err := t.Content.SetContent(content, index, newCID, newType, titleKey); err != nil {
		return err
	}
	t.syncRecords()
	return nil
}

// SetEncContent replaces content by position with pre-encrypted data.
func (t *Title) SetEncContent(content []byte, index int, size uint64, hash [20]byte, newCID uint32, newType ContentType) error {
	if err := t.Content.SetEncContent(content, index, size, hash, newCID, newType); err != nil {
		return err
	}
	t.syncRecords()
	return nil
}

// AddContent encrypts and appends new content at the next free index.
func (t *Title) AddContent(content []byte, cid uint32, contentType ContentType) error {
	titleKey, err := t.TitleKey()
	if err != nil {
		return err
	}
	if err := t.Content.AddContent(content, cid, contentType, titleKey); err != nil {
		return err
	}
	t.syncRecords()
	return nil
}

// AddEncContent appends pre-encrypted content with a fully specified record.
func (t *Title) AddEncContent(content []byte, index uint16, cid uint32, contentType ContentType, size uint64, hash [20]byte) error {
	if err := t.Content.AddEncContent(content, index, cid, contentType, size, hash); err != nil {
		return err
	}
	t.syncRecords()
	return nil
}

// RemoveContent deletes content and its record by position.
func (t *Title) RemoveContent(index int) error {
	if err := t.Content.RemoveContent(index); err != nil {
		return err
	}
	t.syncRecords()
	return nil
}

// LoadContent encrypts and stores decrypted data for an existing record.
func (t *Title) LoadContent(content []byte, index int) error {
	titleKey, err := t.TitleKey()
	if err != nil {
		return err
	}
	return t.Content.LoadContent(content, index, titleKey)
}

// TitleSize returns the installed size of the title in bytes: the serialized
// TMD and Ticket plus every content. Shared contents usually already exist on
// the console, so they are only counted when absolute is true.
func (t *Title) TitleSize(absolute bool) uint64 {
	size := uint64(len(t.TMD.ToBytes())) + uint64(len(t.Ticket.ToBytes()))
	for _, record := range t.TMD.ContentRecords {
		if record.Type == ContentTypeShared && !absolute {
			continue
		}
		size += record.Size
	}
	return size
}

// TitleSizeBlocks returns the installed size in the 128 KiB blocks the
// System Menu displays, rounded up.
func (t *Title) TitleSizeBlocks(absolute bool) uint64 {
	return (t.TitleSize(absolute) + blockSize - 1) / blockSize
}
