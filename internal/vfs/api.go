// Package vfs defines the node and filesystem contract consumed by the
// kernel-facing frontend, independent of any concrete filesystem
// implementation.
package vfs

// FileType is the file-type enumeration surfaced in directory entries
// and metadata.
type FileType uint8

const (
	TypeFile FileType = iota
	TypeDirectory
	TypeLink
)

// OpenFlags is the open-flags bitset. The encoding follows open(2) so
// that kernel/FUSE flags pass through unchanged.
type OpenFlags uint32

const (
	O_RDONLY  OpenFlags = 0x0
	O_WRONLY  OpenFlags = 0x1
	O_RDWR    OpenFlags = 0x2
	O_ACCMODE OpenFlags = 0x3
	O_CREAT   OpenFlags = 0x40
	O_TRUNC   OpenFlags = 0x200
	O_APPEND  OpenFlags = 0x400
)

type DirEntry struct {
	Name  string
	Inode uint32
	Type  FileType
}

type Metadata struct {
	Inode uint32
	Type  FileType
	Mode  uint32
	Links uint32
	Size  uint64
	UID   uint32
	GID   uint32
	Atime uint64
	Mtime uint64
	Ctime uint64
}

type TimeSpec struct {
	Sec  int64
	Nsec int64
}

type Stat struct {
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

type StatFS struct {
	BlockSize  uint32
	Blocks     uint64
	BlocksFree uint64
	Files      uint32
	FilesFree  uint32
	NameLen    uint32
}

// Node is one open file or directory handle. Implementations must be
// safe for concurrent use from multiple execution contexts.
type Node interface {
	Open(path string, flags OpenFlags) (Node, Error)
	Mkdir(path string) (Node, Error)
	Touch(path string) (Node, Error)
	ReadDir() ([]DirEntry, Error)
	Metadata() (*Metadata, Error)
	ReadAt(dest []byte, offset int64) (int, Error)
	WriteAt(src []byte, offset int64) (int, Error)
	Rmdir(name string) Error
	Remove(name string) Error
	Lookup(name string) (Node, Error)
	Truncate(size uint64) Error
	ResolveLink() (string, Error)
	Link(name string, src Node) Error
	SymLink(name string, target string) Error
	Unlink(name string) Error
	Stat(out *Stat) Error
	StatFS(out *StatFS) Error
	Utimes(times []TimeSpec) Error
}

type FileSystem interface {
	RootDir() Node
	Name() string
}
