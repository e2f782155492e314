// Package ext4fs adapts a filesystem engine to the VFS node contract.
// It owns the flag, error and entry-type translation between the two
// vocabularies; all filesystem semantics stay inside the engine.
package ext4fs

import (
	"github.com/horazont/ext4bridge/internal/blockdev"
	"github.com/horazont/ext4bridge/internal/engine"
	"github.com/horazont/ext4bridge/internal/engine/extrd"
	"github.com/horazont/ext4bridge/internal/vfs"
)

// FileSystem binds one engine instance to one translated disk and
// owns the root node. The engine instance is shared by every node the
// filesystem spawns.
type FileSystem struct {
	eng  engine.Engine
	root vfs.Node
}

var _ vfs.FileSystem = (*FileSystem)(nil)

// Open constructs the block address translator over the given device
// and brings up the bundled engine on it.
func Open(deviceID blockdev.DeviceID) (*FileSystem, vfs.Error) {
	eng, err := extrd.Open(blockdev.NewDisk(deviceID))
	if err != nil {
		return nil, mapEngineError(err)
	}
	return New(eng)
}

// New wraps an already-opened engine instance and materializes the
// root directory node.
func New(eng engine.Engine) (*FileSystem, vfs.Error) {
	root, err := eng.Open("/", engine.ModeRead, false)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return &FileSystem{
		eng:  eng,
		root: newNode(eng, root),
	}, nil
}

func (m *FileSystem) RootDir() vfs.Node {
	return m.root
}

func (m *FileSystem) Name() string {
	return "ext4"
}
