// Package extrd implements a read-only ext2/3/4 engine on top of the
// block address translator. It covers superblock and group descriptor
// parsing, inode access, extent trees and legacy block maps, and
// directory walking; every mutating operation reports EROFS.
package extrd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/horazont/ext4bridge/internal/blockdev"
	"github.com/horazont/ext4bridge/internal/engine"
)

const (
	superblockOffset = 1024
	superblockSize   = 1024
	extMagic         = 0xEF53
	rootInode        = 2

	inodeFlagExtents     = 0x00080000
	featureIncompat64Bit = 0x0080

	modeTypeMask = 0xF000
	modeDir      = 0x4000
)

type superblock struct {
	inodesCount     uint32
	blocksCount     uint64
	freeBlocksCount uint64
	freeInodesCount uint32
	firstDataBlock  uint32
	logBlockSize    uint32
	blocksPerGroup  uint32
	inodesPerGroup  uint32
	revLevel        uint32
	inodeSize       uint16
	featureIncompat uint32
	descSize        uint16
}

type inode struct {
	mode       uint16
	uid        uint16
	size       uint64
	atime      uint32
	ctime      uint32
	mtime      uint32
	gid        uint16
	linksCount uint16
	blocks     uint64
	flags      uint32
	block      [60]byte
}

// Engine is one opened filesystem instance bound to a translated disk.
type Engine struct {
	disk *blockdev.Disk
	sb   superblock
}

var _ engine.Engine = (*Engine)(nil)

// Open reads and validates the superblock through the translator and
// returns the engine instance. Only filesystems whose block size
// matches the translator's logical block size are accepted.
func Open(disk *blockdev.Disk) (*Engine, error) {
	m := &Engine{disk: disk}

	data := make([]byte, superblockSize)
	if err := m.readAt(data, superblockOffset); err != nil {
		return nil, err
	}

	magic := binary.LittleEndian.Uint16(data[0x38:0x3A])
	if magic != extMagic {
		return nil, fmt.Errorf("bad superblock magic %#04x: %w", magic, engine.EINVAL)
	}

	m.parseSuperblock(data)

	if blockSize := 1024 << m.sb.logBlockSize; blockSize != disk.BlockSize() {
		return nil, fmt.Errorf("filesystem block size %d does not match the translator's %d: %w",
			blockSize, disk.BlockSize(), engine.EINVAL)
	}

	return m, nil
}

func (m *Engine) parseSuperblock(data []byte) {
	m.sb.inodesCount = binary.LittleEndian.Uint32(data[0x00:0x04])
	m.sb.blocksCount = uint64(binary.LittleEndian.Uint32(data[0x04:0x08]))
	m.sb.freeBlocksCount = uint64(binary.LittleEndian.Uint32(data[0x0C:0x10]))
	m.sb.freeInodesCount = binary.LittleEndian.Uint32(data[0x10:0x14])
	m.sb.firstDataBlock = binary.LittleEndian.Uint32(data[0x14:0x18])
	m.sb.logBlockSize = binary.LittleEndian.Uint32(data[0x18:0x1C])
	m.sb.blocksPerGroup = binary.LittleEndian.Uint32(data[0x20:0x24])
	m.sb.inodesPerGroup = binary.LittleEndian.Uint32(data[0x28:0x2C])
	m.sb.revLevel = binary.LittleEndian.Uint32(data[0x4C:0x50])
	m.sb.inodeSize = binary.LittleEndian.Uint16(data[0x58:0x5A])
	m.sb.featureIncompat = binary.LittleEndian.Uint32(data[0x60:0x64])

	// Rev 0 has a fixed inode size.
	if m.sb.revLevel == 0 {
		m.sb.inodeSize = 128
	}

	if m.sb.featureIncompat&featureIncompat64Bit != 0 {
		m.sb.descSize = binary.LittleEndian.Uint16(data[0xFE:0x100])
		if m.sb.descSize == 0 {
			m.sb.descSize = 64
		}
		high := binary.LittleEndian.Uint32(data[0x150:0x154])
		m.sb.blocksCount |= uint64(high) << 32
	} else {
		m.sb.descSize = 32
	}
}

// readAt fills buf starting at the given byte offset. The translator
// serves whole logical blocks at arbitrary offsets, so the tail of the
// last block is discarded.
func (m *Engine) readAt(buf []byte, offset int64) error {
	filled := 0
	for filled < len(buf) {
		block, err := m.disk.ReadOffset(offset + int64(filled))
		if err != nil {
			log.Printf("block read at %d: %s", offset+int64(filled), err)
			return fmt.Errorf("block read at %d: %w", offset+int64(filled), engine.EIO)
		}
		filled += copy(buf[filled:], block)
	}
	return nil
}

func (m *Engine) blockSize() int64 {
	return int64(m.disk.BlockSize())
}

// readBlock reads one filesystem block; block numbers are always
// block-aligned, so this is a single translator read.
func (m *Engine) readBlock(block uint64) ([]byte, error) {
	data, err := m.disk.ReadOffset(int64(block) * m.blockSize())
	if err != nil {
		log.Printf("block read %d: %s", block, err)
		return nil, fmt.Errorf("block read %d: %w", block, engine.EIO)
	}
	return data, nil
}

type groupDescriptor struct {
	inodeTable uint64
}

func (m *Engine) readGroupDescriptor(group uint32) (groupDescriptor, error) {
	// The descriptor table starts in the block after the superblock.
	descBlock := uint64(m.sb.firstDataBlock + 1)
	descOffset := int64(descBlock)*m.blockSize() + int64(group)*int64(m.sb.descSize)

	data := make([]byte, m.sb.descSize)
	if err := m.readAt(data, descOffset); err != nil {
		return groupDescriptor{}, err
	}

	desc := groupDescriptor{
		inodeTable: uint64(binary.LittleEndian.Uint32(data[0x08:0x0C])),
	}
	if m.sb.featureIncompat&featureIncompat64Bit != 0 && m.sb.descSize >= 64 {
		desc.inodeTable |= uint64(binary.LittleEndian.Uint32(data[0x28:0x2C])) << 32
	}

	return desc, nil
}

func (m *Engine) readInode(inodeNum uint32) (inode, error) {
	if inodeNum == 0 || inodeNum > m.sb.inodesCount {
		return inode{}, fmt.Errorf("inode %d out of range: %w", inodeNum, engine.EINVAL)
	}

	group := (inodeNum - 1) / m.sb.inodesPerGroup
	index := (inodeNum - 1) % m.sb.inodesPerGroup

	desc, err := m.readGroupDescriptor(group)
	if err != nil {
		return inode{}, err
	}

	data := make([]byte, m.sb.inodeSize)
	offset := int64(desc.inodeTable)*m.blockSize() + int64(index)*int64(m.sb.inodeSize)
	if err := m.readAt(data, offset); err != nil {
		return inode{}, err
	}

	ino := inode{
		mode:       binary.LittleEndian.Uint16(data[0x00:0x02]),
		uid:        binary.LittleEndian.Uint16(data[0x02:0x04]),
		size:       uint64(binary.LittleEndian.Uint32(data[0x04:0x08])),
		atime:      binary.LittleEndian.Uint32(data[0x08:0x0C]),
		ctime:      binary.LittleEndian.Uint32(data[0x0C:0x10]),
		mtime:      binary.LittleEndian.Uint32(data[0x10:0x14]),
		gid:        binary.LittleEndian.Uint16(data[0x18:0x1A]),
		linksCount: binary.LittleEndian.Uint16(data[0x1A:0x1C]),
		blocks:     uint64(binary.LittleEndian.Uint32(data[0x1C:0x20])),
		flags:      binary.LittleEndian.Uint32(data[0x20:0x24]),
	}
	copy(ino.block[:], data[0x28:0x64])

	// High size bits apply to regular files and directories.
	if typ := ino.mode & modeTypeMask; typ == 0x8000 || typ == modeDir {
		ino.size |= uint64(binary.LittleEndian.Uint32(data[0x6C:0x70])) << 32
	}

	return ino, nil
}

// Open resolves path from the root inode. The engine is read-only:
// any writable mode fails with EROFS, as does create for a missing
// final component.
func (m *Engine) Open(path string, mode engine.Mode, create bool) (*engine.File, error) {
	if mode.Writable() {
		return nil, engine.EROFS
	}

	current := uint32(rootInode)
	trimmed := strings.Trim(path, "/")
	if trimmed != "" {
		for _, part := range strings.Split(trimmed, "/") {
			if part == "" || part == "." {
				continue
			}
			child, err := m.Lookup(current, part)
			if err != nil {
				if create && errors.Is(err, engine.ENOENT) {
					return nil, engine.EROFS
				}
				return nil, err
			}
			current = child
		}
	}

	return &engine.File{Inode: current, Mode: mode}, nil
}

func (m *Engine) Lookup(parent uint32, name string) (uint32, error) {
	entries, err := m.ReadDirEntries(parent)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if entry.Name == name {
			return entry.Inode, nil
		}
	}
	return 0, engine.ENOENT
}

func (m *Engine) Stat(inodeNum uint32) (*engine.Attr, error) {
	ino, err := m.readInode(inodeNum)
	if err != nil {
		return nil, err
	}

	return &engine.Attr{
		Inode:  inodeNum,
		Mode:   uint32(ino.mode),
		Links:  uint32(ino.linksCount),
		UID:    uint32(ino.uid),
		GID:    uint32(ino.gid),
		Size:   ino.size,
		Blocks: ino.blocks,
		Atime:  uint64(ino.atime),
		Mtime:  uint64(ino.mtime),
		Ctime:  uint64(ino.ctime),
	}, nil
}

func (m *Engine) ReadAt(f *engine.File, dest []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, engine.EINVAL
	}

	ino, err := m.readInode(f.Inode)
	if err != nil {
		return 0, err
	}

	size := int64(ino.size)
	if offset >= size {
		return 0, nil
	}

	toRead := len(dest)
	if offset+int64(toRead) > size {
		toRead = int(size - offset)
	}

	n, err := m.readRange(ino, dest[:toRead], offset)
	if err != nil {
		return n, err
	}
	f.Pos = uint64(offset) + uint64(n)
	return n, nil
}

func (m *Engine) WriteAt(f *engine.File, src []byte, offset int64) (int, error) {
	return 0, engine.EROFS
}

func (m *Engine) Truncate(f *engine.File, size uint64) error {
	return engine.EROFS
}

func (m *Engine) MkDir(path string) error {
	return engine.EROFS
}

func (m *Engine) RemoveFile(parent uint32, name string) error {
	return engine.EROFS
}

func (m *Engine) RemoveDir(parent uint32, name string) error {
	return engine.EROFS
}

func (m *Engine) SetTimes(inode uint32, atime uint64, mtime uint64) error {
	return engine.EROFS
}

func (m *Engine) FSStat() (*engine.FSInfo, error) {
	return &engine.FSInfo{
		BlockSize:       uint32(m.blockSize()),
		BlocksCount:     m.sb.blocksCount,
		FreeBlocksCount: m.sb.freeBlocksCount,
		InodesCount:     m.sb.inodesCount,
		FreeInodesCount: m.sb.freeInodesCount,
		MaxNameLen:      255,
	}, nil
}
