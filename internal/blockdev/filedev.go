package blockdev

import (
	"fmt"
	"os"
	"sync"
)

// FileDevice adapts a disk image file to the sector device contract.
type FileDevice struct {
	file     *os.File
	sectors  int64
	readOnly bool
	lock     sync.Mutex
}

func OpenFileDevice(path string, readOnly bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileDevice{
		file:     f,
		sectors:  info.Size() / SectorSize,
		readOnly: readOnly,
	}, nil
}

func (m *FileDevice) ReadSectors(sector int64, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, err := m.file.ReadAt(buf, sector*SectorSize)
	return err
}

func (m *FileDevice) WriteSectors(sector int64, buf []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.readOnly {
		return fmt.Errorf("device %s is read-only", m.file.Name())
	}

	_, err := m.file.WriteAt(buf, sector*SectorSize)
	return err
}

func (m *FileDevice) SectorCount() int64 {
	return m.sectors
}

func (m *FileDevice) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.file.Close()
}
