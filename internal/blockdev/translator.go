package blockdev

import "fmt"

// BlockSize is the logical block size of the filesystem engine. A
// logical block always covers BlockSize/SectorSize consecutive sectors.
const BlockSize = 4096

// Disk presents a byte-offset-addressable read/write interface over a
// sector-addressed device. It is the storage backend handed to the
// engine: the engine reads whole logical blocks at arbitrary byte
// offsets and writes sector-aligned buffers of arbitrary length.
//
// Disk is immutable after construction. Device-level I/O failures are
// propagated untranslated; there is no retry layer here.
type Disk struct {
	deviceID  DeviceID
	blockSize int
}

func NewDisk(id DeviceID) *Disk {
	return newDisk(id, BlockSize)
}

func newDisk(id DeviceID, blockSize int) *Disk {
	if blockSize%SectorSize != 0 {
		panic(fmt.Sprintf("blockdev: logical block size %d is not a multiple of the sector size", blockSize))
	}
	return &Disk{
		deviceID:  id,
		blockSize: blockSize,
	}
}

func (m *Disk) BlockSize() int {
	return m.blockSize
}

// device resolves the sector device on every call; registration is
// owned by the driver layer and may change between operations.
func (m *Disk) device() (SectorDevice, error) {
	return GetDevice(m.deviceID)
}

// ReadOffset reads one logical block starting at the given byte
// offset. The offset does not need to be sector aligned: the first
// sector is read in full and copied from the in-sector skew onward,
// every following sector is copied whole until the block buffer is
// filled. The result is always exactly one logical block,
// reconstructed byte-for-byte from the underlying sectors.
func (m *Disk) ReadOffset(offset int64) ([]byte, error) {
	dev, err := m.device()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, m.blockSize)
	startSector := offset / SectorSize
	skew := int(offset % SectorSize)

	sector := make([]byte, SectorSize)
	filled := 0
	for i := int64(0); filled < len(buf); i++ {
		if err := dev.ReadSectors(startSector+i, sector); err != nil {
			return nil, err
		}
		filled += copy(buf[filled:], sector[skew:])
		skew = 0 // only the first sector is skewed
	}

	return buf, nil
}

// WriteOffset writes buf to the device starting at the given byte
// offset. Unlike reads, writes are defined only at sector-aligned
// offsets; the engine always issues block-aligned writes, so a
// misaligned offset is a contract violation, not an I/O condition.
//
// Sectors fully covered by buf are written directly. A trailing
// partial sector is merged with the existing device content first so
// that bytes beyond the written range survive.
func (m *Disk) WriteOffset(offset int64, buf []byte) error {
	if offset%SectorSize != 0 {
		panic(fmt.Sprintf("blockdev: write offset %d is not sector aligned", offset))
	}

	dev, err := m.device()
	if err != nil {
		return err
	}

	startSector := offset / SectorSize
	sector := make([]byte, SectorSize)
	written := 0
	for i := int64(0); written < len(buf); i++ {
		remaining := len(buf) - written
		if remaining < SectorSize {
			if err := dev.ReadSectors(startSector+i, sector); err != nil {
				return err
			}
		}
		written += copy(sector, buf[written:])
		if err := dev.WriteSectors(startSector+i, sector); err != nil {
			return err
		}
	}

	return nil
}
