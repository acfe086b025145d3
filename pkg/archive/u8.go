package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	u8Magic      = 0x55AA382D
	u8RootOffset = 0x20
	u8NodeLen    = 12
)

var imetMagic = []byte("IMET")

// U8Node is one entry of a U8 archive's node arena. Directory nodes store
// their parent's index in DataOffset and the index one past their last
// descendant in Size; file nodes store the file's absolute offset and length.
type U8Node struct {
	Type       uint8
	NameOffset uint32
	DataOffset uint32
	Size       uint32
}

// IsDir reports whether the node describes a directory.
func (n U8Node) IsDir() bool { return n.Type == 1 }

// U8Entry is one file or directory of the reconstructed archive tree.
type U8Entry struct {
	Name     string
	IsDir    bool
	Data     []byte
	Children []*U8Entry
}

// U8Archive is a parsed U8 archive: the flat node arena plus the names and
// file data the nodes point at. Serialization recomputes every offset, so an
// archive round-trips to a canonical layout rather than a byte-exact copy.
type U8Archive struct {
	Nodes []U8Node
	names []string
	data  [][]byte
}

// u8ArchiveOffset locates the U8 header within data. Channel banners wrap the
// archive in an IMET header, with the magic at 0x40, or at 0x80 when a build
// tag precedes it.
func u8ArchiveOffset(data []byte) (int, error) {
	if len(data) >= 4 && binary.BigEndian.Uint32(data) == u8Magic {
		return 0, nil
	}
	if len(data) >= 0x44 && bytes.Equal(data[0x40:0x44], imetMagic) {
		return 0x600, nil
	}
	if len(data) >= 0x84 && bytes.Equal(data[0x80:0x84], imetMagic) {
		return 0x640, nil
	}
	return 0, fmt.Errorf("data does not contain a U8 archive")
}

// ParseU8 parses a U8 archive, including archives wrapped in an IMET banner
// header.
func ParseU8(data []byte) (*U8Archive, error) {
	start, err := u8ArchiveOffset(data)
	if err != nil {
		return nil, err
	}
	if start+u8RootOffset+u8NodeLen > len(data) {
		return nil, fmt.Errorf("U8 archive is truncated at %d bytes", len(data))
	}
	data = data[start:]
	if binary.BigEndian.Uint32(data[0x00:0x04]) != u8Magic {
		return nil, fmt.Errorf("bad U8 magic 0x%08X", binary.BigEndian.Uint32(data))
	}
	rootOffset := binary.BigEndian.Uint32(data[0x04:0x08])
	if rootOffset != u8RootOffset {
		return nil, fmt.Errorf("unexpected U8 root node offset 0x%X", rootOffset)
	}

	// The root node's size field is the total node count.
	rootNode := parseU8Node(data[rootOffset:])
	count := int(rootNode.Size)
	if count == 0 {
		return nil, fmt.Errorf("U8 archive declares zero nodes")
	}
	nodesEnd := int(rootOffset) + count*u8NodeLen
	if nodesEnd > len(data) {
		return nil, fmt.Errorf("U8 node arena of %d nodes overruns %d-byte archive", count, len(data))
	}

	a := &U8Archive{
		Nodes: make([]U8Node, 0, count),
		names: make([]string, 0, count),
		data:  make([][]byte, 0, count),
	}
	stringTable := data[nodesEnd:]
	for i := 0; i < count; i++ {
		node := parseU8Node(data[int(rootOffset)+i*u8NodeLen:])
		name, err := readU8Name(stringTable, node.NameOffset)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		var fileData []byte
		if !node.IsDir() {
			end := uint64(node.DataOffset) + uint64(node.Size)
			if end > uint64(len(data)) {
				return nil, fmt.Errorf("node %d (%s) data overruns %d-byte archive", i, name, len(data))
			}
			fileData = make([]byte, node.Size)
			copy(fileData, data[node.DataOffset:end])
		}
		a.Nodes = append(a.Nodes, node)
		a.names = append(a.names, name)
		a.data = append(a.data, fileData)
	}
	return a, nil
}

func parseU8Node(data []byte) U8Node {
	return U8Node{
		Type:       data[0],
		NameOffset: uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]),
		DataOffset: binary.BigEndian.Uint32(data[4:8]),
		Size:       binary.BigEndian.Uint32(data[8:12]),
	}
}

func readU8Name(table []byte, offset uint32) (string, error) {
	if offset >= uint32(len(table)) {
		return "", fmt.Errorf("name offset 0x%X outside string table", offset)
	}
	end := bytes.IndexByte(table[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated name at offset 0x%X", offset)
	}
	return string(table[offset : offset+uint32(end)]), nil
}

// Tree reconstructs the directory tree from the node arena. Directory nodes
// record where their descendants end, so a stack of open directories is
// enough to place every node.
func (a *U8Archive) Tree() (*U8Entry, error) {
	root := &U8Entry{Name: a.names[0], IsDir: true}
	type openDir struct {
		entry *U8Entry
		end   int
	}
	stack := []openDir{{entry: root, end: int(a.Nodes[0].Size)}}
	for i := 1; i < len(a.Nodes); i++ {
		for len(stack) > 1 && i >= stack[len(stack)-1].end {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].entry
		node := a.Nodes[i]
		if node.IsDir() {
			if node.Size <= uint32(i) || int(node.Size) > len(a.Nodes) {
				return nil, fmt.Errorf("directory node %d has invalid extent %d", i, node.Size)
			}
			entry := &U8Entry{Name: a.names[i], IsDir: true}
			parent.Children = append(parent.Children, entry)
			stack = append(stack, openDir{entry: entry, end: int(node.Size)})
			continue
		}
		parent.Children = append(parent.Children, &U8Entry{Name: a.names[i], Data: a.data[i]})
	}
	return root, nil
}

// ToBytes serializes the archive into a canonical layout: the node arena,
// then the string table padded to 64 bytes, then file data with each file
// aligned to 32 bytes. Offsets are recomputed from scratch, so a reparsed
// archive serializes identically even when its source used different padding.
func (a *U8Archive) ToBytes() []byte {
	// String table with recomputed name offsets.
	nameOffsets := make([]uint32, len(a.names))
	strTable := new(bytes.Buffer)
	for i, name := range a.names {
		nameOffsets[i] = uint32(strTable.Len())
		strTable.WriteString(name)
		strTable.WriteByte(0)
	}
	headerSize := uint32(len(a.Nodes)*u8NodeLen + strTable.Len())
	dataStart := uint32(alignUp(uint64(u8RootOffset)+uint64(len(a.Nodes)*u8NodeLen)+uint64(strTable.Len()), 64))

	// File data section, every file padded to a 32-byte boundary, the last
	// one included.
	dataBuf := new(bytes.Buffer)
	dataOffsets := make([]uint32, len(a.Nodes))
	for i, node := range a.Nodes {
		if node.IsDir() {
			continue
		}
		dataOffsets[i] = dataStart + uint32(dataBuf.Len())
		dataBuf.Write(a.data[i])
		if over := dataBuf.Len() % 32; over != 0 {
			dataBuf.Write(make([]byte, 32-over))
		}
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(u8Magic))
	binary.Write(buf, binary.BigEndian, uint32(u8RootOffset))
	binary.Write(buf, binary.BigEndian, headerSize)
	binary.Write(buf, binary.BigEndian, dataStart)
	buf.Write(make([]byte, 16))
	for i, node := range a.Nodes {
		buf.WriteByte(node.Type)
		buf.WriteByte(byte(nameOffsets[i] >> 16))
		buf.WriteByte(byte(nameOffsets[i] >> 8))
		buf.WriteByte(byte(nameOffsets[i]))
		if node.IsDir() {
			binary.Write(buf, binary.BigEndian, node.DataOffset)
			binary.Write(buf, binary.BigEndian, node.Size)
		} else {
			binary.Write(buf, binary.BigEndian, dataOffsets[i])
			binary.Write(buf, binary.BigEndian, uint32(len(a.data[i])))
		}
	}
	buf.Write(strTable.Bytes())
	if int(dataStart) > buf.Len() {
		buf.Write(make([]byte, int(dataStart)-buf.Len()))
	}
	buf.Write(dataBuf.Bytes())
	return buf.Bytes()
}

// U8FromDir would build an archive from a directory tree. Unpacking is the
// only direction the tooling needs, so packing is not supported.
func U8FromDir(path string) (*U8Archive, error) {
	return nil, fmt.Errorf("U8 packing: %w", ErrNotImplemented)
}

func alignUp(n uint64, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
