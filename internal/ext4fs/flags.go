package ext4fs

import (
	"github.com/horazont/ext4bridge/internal/engine"
	"github.com/horazont/ext4bridge/internal/vfs"
)

// translateFlags maps the VFS open-flags bitset onto the engine's
// closed mode vocabulary. Only six flag combinations are defined;
// every other combination is rejected rather than defaulted. The
// create flag is derived independently from the create bit.
func translateFlags(flags vfs.OpenFlags) (engine.Mode, bool, vfs.Error) {
	create := flags&vfs.O_CREAT != 0

	var mode engine.Mode
	switch flags {
	case vfs.O_RDONLY:
		mode = engine.ModeRead
	case vfs.O_WRONLY | vfs.O_CREAT | vfs.O_TRUNC:
		mode = engine.ModeWrite
	case vfs.O_WRONLY | vfs.O_CREAT | vfs.O_APPEND:
		mode = engine.ModeAppend
	case vfs.O_RDWR:
		mode = engine.ModeReadWrite
	case vfs.O_RDWR | vfs.O_CREAT | vfs.O_TRUNC:
		mode = engine.ModeReadWriteTruncate
	case vfs.O_RDWR | vfs.O_CREAT | vfs.O_APPEND:
		mode = engine.ModeReadWriteAppend
	default:
		return 0, false, vfs.ErrInvalidArgument
	}

	return mode, create, nil
}
