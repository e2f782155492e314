package blockdev

import (
	"fmt"
	"sync"
)

// MemDevice is a sector device backed by a byte slice. It exists for
// tests and tooling; there is no persistence.
type MemDevice struct {
	lock sync.Mutex
	data []byte
}

func NewMemDevice(sectors int64) *MemDevice {
	return &MemDevice{
		data: make([]byte, sectors*SectorSize),
	}
}

// NewMemDeviceFrom wraps an existing buffer, padding it to a whole
// number of sectors. The buffer is used directly, not copied.
func NewMemDeviceFrom(data []byte) *MemDevice {
	if tail := len(data) % SectorSize; tail != 0 {
		data = append(data, make([]byte, SectorSize-tail)...)
	}
	return &MemDevice{
		data: data,
	}
}

func (m *MemDevice) ReadSectors(sector int64, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	offset := sector * SectorSize
	if offset < 0 || offset+int64(len(buf)) > int64(len(m.data)) {
		return fmt.Errorf("sector range [%d, %d) out of bounds", sector, sector+int64(len(buf))/SectorSize)
	}
	copy(buf, m.data[offset:])
	return nil
}

func (m *MemDevice) WriteSectors(sector int64, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	offset := sector * SectorSize
	if offset < 0 || offset+int64(len(buf)) > int64(len(m.data)) {
		return fmt.Errorf("sector range [%d, %d) out of bounds", sector, sector+int64(len(buf))/SectorSize)
	}
	copy(m.data[offset:], buf)
	return nil
}

func (m *MemDevice) SectorCount() int64 {
	return int64(len(m.data)) / SectorSize
}

// Bytes exposes the backing buffer for inspection in tests.
func (m *MemDevice) Bytes() []byte {
	return m.data
}
