package extrd

import (
	"encoding/binary"
	"fmt"

	"github.com/horazont/ext4bridge/internal/engine"
)

const extentMagic = 0xF30A

// blockAt maps a logical file block to its physical block number.
// A return of 0 means a hole: the range reads as zeros.
func (m *Engine) blockAt(ino inode, logical uint32) (uint64, error) {
	if ino.flags&inodeFlagExtents != 0 {
		return m.extentBlockAt(ino.block[:], logical)
	}
	return m.pointerBlockAt(ino, logical)
}

// extentBlockAt walks the extent tree rooted in node. Interior levels
// descend into the last index whose first logical block is not past
// the target; leaf levels scan the extents directly.
func (m *Engine) extentBlockAt(node []byte, logical uint32) (uint64, error) {
	magic := binary.LittleEndian.Uint16(node[0:2])
	entries := binary.LittleEndian.Uint16(node[2:4])
	depth := binary.LittleEndian.Uint16(node[6:8])

	if magic != extentMagic {
		return 0, fmt.Errorf("invalid extent magic %#04x: %w", magic, engine.EIO)
	}

	if depth == 0 {
		for i := uint16(0); i < entries; i++ {
			rec := node[12+int(i)*12:]
			first := binary.LittleEndian.Uint32(rec[0:4])
			length := binary.LittleEndian.Uint16(rec[4:6])
			if length > 0x8000 {
				length -= 0x8000 // uninitialized extent
			}
			startHi := binary.LittleEndian.Uint16(rec[6:8])
			startLo := binary.LittleEndian.Uint32(rec[8:12])

			if logical >= first && logical < first+uint32(length) {
				start := uint64(startLo) | uint64(startHi)<<32
				return start + uint64(logical-first), nil
			}
		}
		return 0, nil
	}

	var leaf uint64
	found := false
	for i := uint16(0); i < entries; i++ {
		rec := node[12+int(i)*12:]
		first := binary.LittleEndian.Uint32(rec[0:4])
		if first > logical {
			break
		}
		leafLo := binary.LittleEndian.Uint32(rec[4:8])
		leafHi := binary.LittleEndian.Uint16(rec[8:10])
		leaf = uint64(leafLo) | uint64(leafHi)<<32
		found = true
	}
	if !found {
		return 0, nil
	}

	child, err := m.readBlock(leaf)
	if err != nil {
		return 0, err
	}
	return m.extentBlockAt(child, logical)
}

// pointerBlockAt maps a logical block through the legacy direct,
// single, double or triple indirect block pointers.
func (m *Engine) pointerBlockAt(ino inode, logical uint32) (uint64, error) {
	perBlock := uint64(m.blockSize() / 4)
	index := uint64(logical)

	if index < 12 {
		return uint64(binary.LittleEndian.Uint32(ino.block[index*4 : index*4+4])), nil
	}
	index -= 12

	for level, root := 1, uint64(0); level <= 3; level++ {
		span := perBlock
		for i := 1; i < level; i++ {
			span *= perBlock
		}

		if index < span {
			root = uint64(binary.LittleEndian.Uint32(ino.block[(11+level)*4 : (12+level)*4]))
			return m.indirectBlockAt(root, level, index, span)
		}
		index -= span
	}

	return 0, fmt.Errorf("logical block %d beyond the block map: %w", logical, engine.EINVAL)
}

func (m *Engine) indirectBlockAt(block uint64, level int, index uint64, span uint64) (uint64, error) {
	if block == 0 {
		return 0, nil
	}

	data, err := m.readBlock(block)
	if err != nil {
		return 0, err
	}

	if level == 1 {
		return uint64(binary.LittleEndian.Uint32(data[index*4 : index*4+4])), nil
	}

	childSpan := span / (uint64(m.blockSize() / 4))
	entry := index / childSpan
	child := uint64(binary.LittleEndian.Uint32(data[entry*4 : entry*4+4]))
	return m.indirectBlockAt(child, level-1, index%childSpan, childSpan)
}

// readRange copies file content into dest starting at offset. The
// caller has already clamped dest to the file size.
func (m *Engine) readRange(ino inode, dest []byte, offset int64) (int, error) {
	bs := m.blockSize()
	n := 0
	for n < len(dest) {
		pos := offset + int64(n)
		phys, err := m.blockAt(ino, uint32(pos/bs))
		if err != nil {
			return n, err
		}

		var data []byte
		if phys == 0 {
			data = make([]byte, bs)
		} else {
			data, err = m.readBlock(phys)
			if err != nil {
				return n, err
			}
		}

		n += copy(dest[n:], data[pos%bs:])
	}
	return n, nil
}

// ReadDirEntries returns the raw records of a directory inode in
// on-disk order, including the dot entries.
func (m *Engine) ReadDirEntries(inodeNum uint32) ([]engine.RawDirEntry, error) {
	ino, err := m.readInode(inodeNum)
	if err != nil {
		return nil, err
	}
	if ino.mode&modeTypeMask != modeDir {
		return nil, engine.ENOTDIR
	}

	data := make([]byte, ino.size)
	if _, err := m.readRange(ino, data, 0); err != nil {
		return nil, err
	}

	var entries []engine.RawDirEntry
	offset := 0
	for offset+8 <= len(data) {
		child := binary.LittleEndian.Uint32(data[offset : offset+4])
		recLen := int(binary.LittleEndian.Uint16(data[offset+4 : offset+6]))
		nameLen := int(data[offset+6])
		fileType := data[offset+7]

		if recLen < 8 {
			break
		}

		if child != 0 && nameLen > 0 && offset+8+nameLen <= len(data) {
			entries = append(entries, engine.RawDirEntry{
				Inode:    child,
				Name:     string(data[offset+8 : offset+8+nameLen]),
				FileType: fileType,
			})
		}

		offset += recLen
	}

	return entries, nil
}
