package ext4fs

import (
	"sync"

	"github.com/horazont/ext4bridge/internal/engine"
	"github.com/horazont/ext4bridge/internal/vfs"
)

// Node wraps one open engine file session. The session is guarded by
// a mutex because the VFS may drive the same node from multiple
// execution contexts; the engine instance itself is shared across all
// nodes of one filesystem.
type Node struct {
	eng  engine.Engine
	lock sync.Mutex
	file *engine.File
}

var _ vfs.Node = (*Node)(nil)

func newNode(eng engine.Engine, file *engine.File) *Node {
	return &Node{
		eng:  eng,
		file: file,
	}
}

func (m *Node) Open(path string, flags vfs.OpenFlags) (vfs.Node, vfs.Error) {
	mode, create, verr := translateFlags(flags)
	if verr != nil {
		return nil, verr
	}

	file, err := m.eng.Open(path, mode, create)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return newNode(m.eng, file), nil
}

// Mkdir creates a directory and opens it. Creation and open are two
// separate engine calls; when the open fails after a successful
// creation, the error says so instead of hiding the creation result.
func (m *Node) Mkdir(path string) (vfs.Node, vfs.Error) {
	if err := m.eng.MkDir(path); err != nil {
		return nil, mapEngineError(err)
	}

	file, err := m.eng.Open(path, engine.ModeRead, false)
	if err != nil {
		return nil, vfs.Wrap(vfs.ErrCreatedNotOpened, mapEngineError(err))
	}
	return newNode(m.eng, file), nil
}

// Touch opens path in read-write-truncate mode, creating the file if
// it is absent.
func (m *Node) Touch(path string) (vfs.Node, vfs.Error) {
	file, err := m.eng.Open(path, engine.ModeReadWriteTruncate, true)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return newNode(m.eng, file), nil
}

// ReadDir returns the directory entries of this node in the order the
// engine yields them.
func (m *Node) ReadDir() ([]vfs.DirEntry, vfs.Error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	raw, err := m.eng.ReadDirEntries(m.file.Inode)
	if err != nil {
		return nil, mapEngineError(err)
	}

	entries := make([]vfs.DirEntry, 0, len(raw))
	for _, entry := range raw {
		entries = append(entries, vfs.DirEntry{
			Name:  entry.Name,
			Inode: entry.Inode,
			Type:  mapDirEntryType(entry.FileType),
		})
	}
	return entries, nil
}

func (m *Node) Metadata() (*vfs.Metadata, vfs.Error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	attr, err := m.eng.Stat(m.file.Inode)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return &vfs.Metadata{
		Inode: attr.Inode,
		Type:  fileTypeFromMode(attr.Mode),
		Mode:  attr.Mode,
		Links: attr.Links,
		Size:  attr.Size,
		UID:   attr.UID,
		GID:   attr.GID,
		Atime: attr.Atime,
		Mtime: attr.Mtime,
		Ctime: attr.Ctime,
	}, nil
}

func (m *Node) ReadAt(dest []byte, offset int64) (int, vfs.Error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	n, err := m.eng.ReadAt(m.file, dest, offset)
	if err != nil {
		return n, mapEngineError(err)
	}
	return n, nil
}

func (m *Node) WriteAt(src []byte, offset int64) (int, vfs.Error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	n, err := m.eng.WriteAt(m.file, src, offset)
	if err != nil {
		return n, mapEngineError(err)
	}
	return n, nil
}

func (m *Node) Rmdir(name string) vfs.Error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return mapEngineError(m.eng.RemoveDir(m.file.Inode, name))
}

func (m *Node) Remove(name string) vfs.Error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return mapEngineError(m.eng.RemoveFile(m.file.Inode, name))
}

// Lookup resolves a child of this directory node by name. The
// resulting node is opened in read mode.
func (m *Node) Lookup(name string) (vfs.Node, vfs.Error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	inode, err := m.eng.Lookup(m.file.Inode, name)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return newNode(m.eng, &engine.File{
		Inode: inode,
		Mode:  engine.ModeRead,
	}), nil
}

func (m *Node) Truncate(size uint64) vfs.Error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return mapEngineError(m.eng.Truncate(m.file, size))
}

func (m *Node) ResolveLink() (string, vfs.Error) {
	return "", vfs.ErrNotSupported
}

func (m *Node) Link(name string, src vfs.Node) vfs.Error {
	return vfs.ErrNotSupported
}

func (m *Node) SymLink(name string, target string) vfs.Error {
	return vfs.ErrNotSupported
}

func (m *Node) Unlink(name string) vfs.Error {
	m.lock.Lock()
	defer m.lock.Unlock()

	return mapEngineError(m.eng.RemoveFile(m.file.Inode, name))
}

func (m *Node) Stat(out *vfs.Stat) vfs.Error {
	m.lock.Lock()
	defer m.lock.Unlock()

	attr, err := m.eng.Stat(m.file.Inode)
	if err != nil {
		return mapEngineError(err)
	}

	out.Inode = attr.Inode
	out.Mode = attr.Mode
	out.Links = attr.Links
	out.UID = attr.UID
	out.GID = attr.GID
	out.Size = attr.Size
	out.Blocks = attr.Blocks
	out.Atime = attr.Atime
	out.Mtime = attr.Mtime
	out.Ctime = attr.Ctime
	return nil
}

func (m *Node) StatFS(out *vfs.StatFS) vfs.Error {
	info, err := m.eng.FSStat()
	if err != nil {
		return mapEngineError(err)
	}

	out.BlockSize = info.BlockSize
	out.Blocks = info.BlocksCount
	out.BlocksFree = info.FreeBlocksCount
	out.Files = info.InodesCount
	out.FilesFree = info.FreeInodesCount
	out.NameLen = info.MaxNameLen
	return nil
}

// Utimes sets access and modification time from the conventional
// two-element times slice.
func (m *Node) Utimes(times []vfs.TimeSpec) vfs.Error {
	if len(times) < 2 {
		return vfs.ErrInvalidArgument
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	return mapEngineError(m.eng.SetTimes(m.file.Inode, uint64(times[0].Sec), uint64(times[1].Sec)))
}
