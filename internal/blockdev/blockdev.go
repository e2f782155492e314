// Package blockdev provides the sector device contract, the device
// registry, and the block address translator that lets a
// byte-addressable filesystem engine run over fixed-size sectors.
package blockdev

import (
	"fmt"
	"sync"
)

// SectorSize is the fixed addressable unit of the physical device.
const SectorSize = 512

// DeviceID identifies one registered sector device.
type DeviceID int

// SectorDevice is the boundary to the block device driver. Buffers
// passed to ReadSectors and WriteSectors must be a multiple of
// SectorSize long; the device operates on whole sectors only.
type SectorDevice interface {
	ReadSectors(sector int64, buf []byte) error
	WriteSectors(sector int64, buf []byte) error
	SectorCount() int64
}

var (
	registryLock sync.RWMutex
	registry     = make(map[DeviceID]SectorDevice)
)

func RegisterDevice(id DeviceID, dev SectorDevice) {
	registryLock.Lock()
	defer registryLock.Unlock()

	registry[id] = dev
}

func UnregisterDevice(id DeviceID) {
	registryLock.Lock()
	defer registryLock.Unlock()

	delete(registry, id)
}

func GetDevice(id DeviceID) (SectorDevice, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	dev, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("no sector device registered for id %d", id)
	}
	return dev, nil
}
