// Package engine defines the contract of the underlying filesystem
// engine: the collaborator providing on-disk layout, allocation and
// directory semantics. The adapter layer above is written against this
// contract only; a concrete engine is injected at construction time.
package engine

import "errors"

// Errno is the engine's error code vocabulary. Engine implementations
// report every failure as one of these values (possibly wrapped).
type Errno int

const (
	ENOENT Errno = iota + 1
	EIO
	ENOSPC
	ELINKFAIL
	ENOTDIR
	EISDIR
	EEXIST
	EPERM
	EROFS
	ENOTSUP
	EINVAL
)

func (e Errno) Error() string {
	switch e {
	case ENOENT:
		return "no such file or directory"
	case EIO:
		return "input/output error"
	case ENOSPC:
		return "allocation failed"
	case ELINKFAIL:
		return "could not link directory entry"
	case ENOTDIR:
		return "not a directory"
	case EISDIR:
		return "is a directory"
	case EEXIST:
		return "file exists"
	case EPERM:
		return "operation not permitted"
	case EROFS:
		return "read-only filesystem"
	case ENOTSUP:
		return "operation not supported by engine"
	case EINVAL:
		return "invalid argument"
	default:
		return "unknown engine error"
	}
}

// ErrnoOf extracts the engine error code from err, unwrapping as
// needed.
func ErrnoOf(err error) (Errno, bool) {
	var code Errno
	if errors.As(err, &code) {
		return code, true
	}
	return 0, false
}

// Mode is the engine's open-mode descriptor: a closed set of six
// access modes. The zero value is ModeRead.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeAppend
	ModeReadWrite
	ModeReadWriteTruncate
	ModeReadWriteAppend
)

// String returns the engine's short mode notation.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "r"
	case ModeWrite:
		return "w"
	case ModeAppend:
		return "a"
	case ModeReadWrite:
		return "r+"
	case ModeReadWriteTruncate:
		return "w+"
	case ModeReadWriteAppend:
		return "a+"
	default:
		return "?"
	}
}

// Writable reports whether the mode permits any mutation.
func (m Mode) Writable() bool {
	return m != ModeRead
}

// File is one open file session inside the engine. Callers own the
// serialization of concurrent access to a session.
type File struct {
	Inode uint32
	Pos   uint64
	Mode  Mode
}

// On-disk directory entry type codes, as stored in the file_type byte
// of a directory record.
const (
	DirEntryUnknown uint8 = 0
	DirEntryRegFile uint8 = 1
	DirEntryDir     uint8 = 2
	DirEntryChrdev  uint8 = 3
	DirEntryBlkdev  uint8 = 4
	DirEntryFifo    uint8 = 5
	DirEntrySock    uint8 = 6
	DirEntrySymlink uint8 = 7
)

// RawDirEntry is one on-disk directory record as the engine yields it,
// in the engine's native order.
type RawDirEntry struct {
	Inode    uint32
	Name     string
	FileType uint8
}

// Attr is the engine-level attribute block of one inode.
type Attr struct {
	Inode  uint32
	Mode   uint32
	Links  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Blocks uint64
	Atime  uint64
	Mtime  uint64
	Ctime  uint64
}

// FSInfo describes the filesystem instance as a whole.
type FSInfo struct {
	BlockSize       uint32
	BlocksCount     uint64
	FreeBlocksCount uint64
	InodesCount     uint32
	FreeInodesCount uint32
	MaxNameLen      uint32
}

// Engine is the filesystem engine surface the adapter builds on.
// Implementations are assumed safe for concurrent use across sessions;
// per-session serialization is the caller's job.
type Engine interface {
	// Open resolves path (absolute, engine-rooted) and returns a new
	// file session. With create set, a missing final component is
	// created when the mode allows it.
	Open(path string, mode Mode, create bool) (*File, error)

	// MkDir creates a directory at path.
	MkDir(path string) error

	// ReadDirEntries returns the raw directory records of the
	// directory inode, in on-disk order.
	ReadDirEntries(inode uint32) ([]RawDirEntry, error)

	// Lookup resolves one child name inside the parent directory.
	Lookup(parent uint32, name string) (uint32, error)

	Stat(inode uint32) (*Attr, error)
	ReadAt(f *File, dest []byte, offset int64) (int, error)
	WriteAt(f *File, src []byte, offset int64) (int, error)
	Truncate(f *File, size uint64) error
	RemoveFile(parent uint32, name string) error
	RemoveDir(parent uint32, name string) error
	SetTimes(inode uint32, atime uint64, mtime uint64) error
	FSStat() (*FSInfo, error)
}
