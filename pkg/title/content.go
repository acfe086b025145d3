package title

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/ilex/wad-go/pkg/crypto"
)

// IndexOutOfRangeError reports a content index beyond the record list.
type IndexOutOfRangeError struct {
	Index int
	Max   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("requested index %d is out of range (must not exceed %d)", e.Index, e.Max)
}

// MissingContentsError reports a mismatch between supplied contents and the
// content records describing them.
type MissingContentsError struct {
	Required int
	Found    int
}

func (e *MissingContentsError) Error() string {
	return fmt.Sprintf("expected %d contents based on content records but found %d", e.Required, e.Found)
}

// CIDNotFoundError reports a Content ID with no matching record.
type CIDNotFoundError struct {
	ContentID uint32
}

func (e *CIDNotFoundError) Error() string {
	return fmt.Sprintf("content with requested Content ID %d could not be found", e.ContentID)
}

// IndexExistsError reports an attempt to add a content index already in use.
type IndexExistsError struct {
	Index uint16
}

func (e *IndexExistsError) Error() string {
	return fmt.Sprintf("the specified index %d already exists in the content records", e.Index)
}

// CIDExistsError reports an attempt to assign a Content ID already in use.
type CIDExistsError struct {
	ContentID uint32
}

func (e *CIDExistsError) Error() string {
	return fmt.Sprintf("the specified Content ID %d already exists in the content records", e.ContentID)
}

// BadHashError reports decrypted content whose SHA-1 does not match its
// record. Both hashes are carried for diagnosis; the data is never repaired.
type BadHashError struct {
	Actual   [20]byte
	Expected [20]byte
}

func (e *BadHashError) Error() string {
	return fmt.Sprintf("content's hash did not match the expected value (was %s, expected %s)",
		hex.EncodeToString(e.Actual[:]), hex.EncodeToString(e.Expected[:]))
}

// RegionSizeError reports a content blob whose length disagrees with the sum
// of the 64-byte-aligned record sizes. Only returned by the strict parser;
// real-world WADs are sometimes sloppy here.
type RegionSizeError struct {
	Declared int
	Computed int
}

func (e *RegionSizeError) Error() string {
	return fmt.Sprintf("content region is %d bytes but records describe %d bytes", e.Declared, e.Computed)
}

func alignUp(n uint64, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

func decryptToSize(enc []byte, titleKey [16]byte, index uint16, size uint64) ([]byte, error) {
	dec, err := crypto.DecryptContent(enc, titleKey, index)
	if err != nil {
		return nil, err
	}
	if size > uint64(len(dec)) {
		return nil, fmt.Errorf("content record declares %d bytes but only %d were stored", size, len(dec))
	}
	return dec[:size], nil
}

func encryptRecordContent(content []byte, titleKey [16]byte, index uint16) ([]byte, error) {
	return crypto.EncryptContent(content, titleKey, index)
}

// ContentRegion holds a title's encrypted content blobs alongside the content
// records describing them. Records is the canonical record list: a Title
// copies it back into its TMD after every mutation, so the two structures can
// never hold divergent manifests.
//
// Contents are stored padded to the AES block size; the serialized region pads
// each content to 64 bytes instead. Both roundings are load-bearing.
type ContentRegion struct {
	Records      []ContentRecord
	RegionSize   uint32
	startOffsets []uint64
	contents     [][]byte
}

// NewContentRegion creates an empty ContentRegion for the given records, to be
// filled by LoadContent/LoadEncContent (for example with data downloaded from
// NUS or read from unpacked files).
func NewContentRegion(records []ContentRecord) *ContentRegion {
	var size uint64
	for _, record := range records {
		size += alignUp(record.Size, 64)
	}
	return &ContentRegion{
		Records:      records,
		RegionSize:   uint32(size),
		startOffsets: make([]uint64, len(records)),
		contents:     make([][]byte, len(records)),
	}
}

// ParseContentRegion slices a WAD's content blob into individual encrypted
// contents using the TMD's records: contents are laid out at 64-byte strides,
// and each is read rounded up to the AES block size. Declared sizes that
// overrun the blob fail the parse; a blob longer than the records describe is
// tolerated (lenient mode, matching observed real-world WADs).
func ParseContentRegion(data []byte, records []ContentRecord) (*ContentRegion, error) {
	return parseContentRegion(data, records, false)
}

// ParseContentRegionStrict is ParseContentRegion but additionally requires the
// blob length to equal the records' total aligned size exactly.
func ParseContentRegionStrict(data []byte, records []ContentRecord) (*ContentRegion, error) {
	return parseContentRegion(data, records, true)
}

func parseContentRegion(data []byte, records []ContentRecord, strict bool) (*ContentRegion, error) {
	c := &ContentRegion{
		Records:      records,
		RegionSize:   uint32(len(data)),
		startOffsets: make([]uint64, 0, len(records)),
		contents:     make([][]byte, 0, len(records)),
	}
	var offset uint64
	for _, record := range records {
		c.startOffsets = append(c.startOffsets, offset)
		end := offset + alignUp(record.Size, 16)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("content region is truncated: content with ID %d ends at %d but region is %d bytes",
				record.ContentID, end, len(data))
		}
		content := make([]byte, alignUp(record.Size, 16))
		copy(content, data[offset:end])
		c.contents = append(c.contents, content)
		offset += alignUp(record.Size, 64)
	}
	if strict && offset != uint64(len(data)) {
		return nil, &RegionSizeError{Declared: len(data), Computed: int(offset)}
	}
	return c, nil
}

// ContentRegionFromContents builds a ContentRegion from already-encrypted
// content blobs matched positionally against the records.
func ContentRegionFromContents(contents [][]byte, records []ContentRecord) (*ContentRegion, error) {
	if len(contents) != len(records) {
		return nil, &MissingContentsError{Required: len(records), Found: len(contents)}
	}
	c := NewContentRegion(records)
	for i, content := range contents {
		if err := c.LoadEncContent(content, i); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ToBytes concatenates every content, padding each to a 64-byte boundary.
func (c *ContentRegion) ToBytes() []byte {
	var out []byte
	for _, content := range c.contents {
		out = append(out, content...)
		if pad := int(alignUp(uint64(len(content)), 64)) - len(content); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
	}
	return out
}

// GetIndexFromCID returns the position of the record with the given Content ID.
func (c *ContentRegion) GetIndexFromCID(cid uint32) (int, error) {
	for i, record := range c.Records {
		if record.ContentID == cid {
			return i, nil
		}
	}
	return 0, &CIDNotFoundError{ContentID: cid}
}

// GetEncContentByIndex returns the stored encrypted content at a position.
func (c *ContentRegion) GetEncContentByIndex(index int) ([]byte, error) {
	if index < 0 || index >= len(c.contents) {
		return nil, &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	content := make([]byte, len(c.contents[index]))
	copy(content, c.contents[index])
	return content, nil
}

// GetContentByIndex decrypts the content at a position with the given Title
// Key, truncates it to the declared size, and verifies its SHA-1 against the
// record. The hash is checked on every read and a mismatch is never repaired.
func (c *ContentRegion) GetContentByIndex(index int, titleKey [16]byte) ([]byte, error) {
	enc, err := c.GetEncContentByIndex(index)
	if err != nil {
		return nil, err
	}
	record := c.Records[index]
	dec, err := decryptToSize(enc, titleKey, record.Index, record.Size)
	if err != nil {
		return nil, err
	}
	if digest := sha1.Sum(dec); digest != record.Hash {
		return nil, &BadHashError{Actual: digest, Expected: record.Hash}
	}
	return dec, nil
}

// GetEncContentByCID returns the stored encrypted content with a Content ID.
func (c *ContentRegion) GetEncContentByCID(cid uint32) ([]byte, error) {
	index, err := c.GetIndexFromCID(cid)
	if err != nil {
		return nil, err
	}
	return c.GetEncContentByIndex(index)
}

// GetContentByCID decrypts and verifies the content with a Content ID.
func (c *ContentRegion) GetContentByCID(cid uint32, titleKey [16]byte) ([]byte, error) {
	index, err := c.GetIndexFromCID(cid)
	if err != nil {
		return nil, err
	}
	return c.GetContentByIndex(index, titleKey)
}

// LoadEncContent stores already-encrypted content at a position without
// touching its record.
func (c *ContentRegion) LoadEncContent(content []byte, index int) error {
	if index < 0 || index >= len(c.Records) {
		return &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	c.contents[index] = buf
	return nil
}

// LoadContent encrypts and stores decrypted content at a position. The data
// must hash to the value already present in the record at that position.
func (c *ContentRegion) LoadContent(content []byte, index int, titleKey [16]byte) error {
	if index < 0 || index >= len(c.Records) {
		return &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	if digest := sha1.Sum(content); digest != c.Records[index].Hash {
		return &BadHashError{Actual: digest, Expected: c.Records[index].Hash}
	}
	enc, err := encryptRecordContent(content, titleKey, c.Records[index].Index)
	if err != nil {
		return err
	}
	c.contents[index] = enc
	return nil
}

// SetEncContent replaces the content at a position with encrypted data whose
// decrypted size and hash must be supplied for the record. A zero newCID or
// newType of 0 keeps the existing value; a duplicate Content ID is rejected
// before any state changes.
func (c *ContentRegion) SetEncContent(content []byte, index int, size uint64, hash [20]byte, newCID uint32, newType ContentType) error {
	if index < 0 || index >= len(c.Records) {
		return &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	if newCID != 0 {
		for i, record := range c.Records {
			if i != index && record.ContentID == newCID {
				return &CIDExistsError{ContentID: newCID}
			}
		}
	}
	c.Records[index].Size = size
	c.Records[index].Hash = hash
	if newCID != 0 {
		c.Records[index].ContentID = newCID
	}
	if newType != 0 {
		c.Records[index].Type = newType
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	c.contents[index] = buf
	return nil
}

// SetContent hashes and encrypts decrypted content and replaces the content at
// a position, updating the record's size and hash. The record's own index is
// the IV source, so contents keep decrypting correctly even when record
// indices are non-contiguous.
func (c *ContentRegion) SetContent(content []byte, index int, newCID uint32, newType ContentType, titleKey [16]byte) error {
	if index < 0 || index >= len(c.Records) {
		return &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	hash := sha1.Sum(content)
	enc, err := encryptRecordContent(content, titleKey, c.Records[index].Index)
	if err != nil {
		return err
	}
	return c.SetEncContent(enc, index, uint64(len(content)), hash, newCID, newType)
}

// RemoveContent deletes the content and record at a position. This may leave a
// gap in the record indices; the console tolerates gaps and they are never
// compacted.
func (c *ContentRegion) RemoveContent(index int) error {
	if index < 0 || index >= len(c.Records) || index >= len(c.contents) {
		return &IndexOutOfRangeError{Index: index, Max: len(c.Records) - 1}
	}
	c.contents = append(c.contents[:index], c.contents[index+1:]...)
	c.Records = append(c.Records[:index], c.Records[index+1:]...)
	return nil
}

// AddEncContent appends encrypted content with a fully specified record. The
// record index and Content ID must both be unused.
func (c *ContentRegion) AddEncContent(content []byte, index uint16, cid uint32, contentType ContentType, size uint64, hash [20]byte) error {
	for _, record := range c.Records {
		if record.Index == index {
			return &IndexExistsError{Index: index}
		}
	}
	for _, record := range c.Records {
		if record.ContentID == cid {
			return &CIDExistsError{ContentID: cid}
		}
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	c.contents = append(c.contents, buf)
	c.Records = append(c.Records, ContentRecord{
		ContentID: cid,
		Index:     index,
		Type:      contentType,
		Size:      size,
		Hash:      hash,
	})
	return nil
}

// AddContent encrypts and appends decrypted content, assigning it the next
// index after the highest one recorded. Gaps left by removals are never
// reused.
func (c *ContentRegion) AddContent(content []byte, cid uint32, contentType ContentType, titleKey [16]byte) error {
	var newIndex uint16
	for _, record := range c.Records {
		if record.Index >= newIndex {
			newIndex = record.Index + 1
		}
	}
	hash := sha1.Sum(content)
	enc, err := encryptRecordContent(content, titleKey, newIndex)
	if err != nil {
		return err
	}
	return c.AddEncContent(enc, newIndex, cid, contentType, uint64(len(content)), hash)
}
