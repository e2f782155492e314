package ext4fs

import (
	"github.com/horazont/ext4bridge/internal/engine"
	"github.com/horazont/ext4bridge/internal/vfs"
)

// mapEngineError translates an engine error into the VFS taxonomy via
// an explicit code table. Codes missing from the table surface as the
// distinct unmapped-engine-error kind so that a mapping gap is never
// mistaken for ordinary I/O trouble. Errors that carry no engine code
// at all are treated as I/O failures with the cause attached.
func mapEngineError(err error) vfs.Error {
	if err == nil {
		return nil
	}

	code, ok := engine.ErrnoOf(err)
	if !ok {
		return vfs.Wrap(vfs.ErrIO, err)
	}

	switch code {
	case engine.ENOENT:
		return vfs.ErrNotFound
	case engine.ENOSPC:
		return vfs.ErrNoSpace
	case engine.ELINKFAIL:
		return vfs.ErrLinkFailed
	case engine.ENOTDIR:
		return vfs.ErrNotDirectory
	case engine.EISDIR:
		return vfs.ErrIsDirectory
	case engine.EEXIST:
		return vfs.ErrExists
	case engine.EPERM:
		return vfs.ErrPermission
	case engine.EROFS:
		return vfs.ErrReadOnly
	case engine.ENOTSUP:
		return vfs.ErrNotImplemented
	case engine.EINVAL:
		return vfs.ErrInvalidArgument
	case engine.EIO:
		return vfs.Wrap(vfs.ErrIO, err)
	default:
		return vfs.Wrap(vfs.ErrUnmappedEngine, err)
	}
}

// mapDirEntryType maps the on-disk directory entry type byte to the
// VFS file-type enumeration. Special files collapse to plain files;
// only directories and symlinks are distinguished.
func mapDirEntryType(typ uint8) vfs.FileType {
	switch typ {
	case engine.DirEntryDir:
		return vfs.TypeDirectory
	case engine.DirEntrySymlink:
		return vfs.TypeLink
	default:
		return vfs.TypeFile
	}
}

// fileTypeFromMode derives the VFS file type from an inode mode word.
func fileTypeFromMode(mode uint32) vfs.FileType {
	switch mode & 0xF000 {
	case 0x4000:
		return vfs.TypeDirectory
	case 0xA000:
		return vfs.TypeLink
	default:
		return vfs.TypeFile
	}
}
