// Package frontend adapts the VFS node contract to go-fuse's pathfs
// interface so a filesystem can be mounted through the kernel.
package frontend

import (
	"path"
	"time"

	"github.com/hanwen/go-fuse/fuse"
	"github.com/hanwen/go-fuse/fuse/nodefs"
	"github.com/hanwen/go-fuse/fuse/pathfs"
	"github.com/horazont/ext4bridge/internal/vfs"
)

const modeTypeDir = 0x4000
const modeTypeReg = 0x8000
const modeTypeLnk = 0xA000

// passedFlags is the subset of kernel open flags the node contract
// understands; everything else is advisory and stripped.
const passedFlags = vfs.O_ACCMODE | vfs.O_CREAT | vfs.O_TRUNC | vfs.O_APPEND

type Ext4BridgeFS struct {
	pathfs.FileSystem
	fs vfs.FileSystem
}

func NewExt4BridgeFS(fs vfs.FileSystem) *Ext4BridgeFS {
	return &Ext4BridgeFS{
		FileSystem: pathfs.NewDefaultFileSystem(),
		fs:         fs,
	}
}

// resolve opens the node behind a FUSE path. FUSE hands paths relative
// to the mountpoint without a leading slash; the node contract wants
// them rooted.
func (m *Ext4BridgeFS) resolve(fusePath string) (vfs.Node, vfs.Error) {
	if fusePath == "" {
		return m.fs.RootDir(), nil
	}
	return m.fs.RootDir().Open("/"+fusePath, vfs.O_RDONLY)
}

func errStatus(err vfs.Error) fuse.Status {
	return fuse.Status(err.Errno())
}

func (m *Ext4BridgeFS) GetAttr(fusePath string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	node, err := m.resolve(fusePath)
	if err != nil {
		return nil, errStatus(err)
	}

	var stat vfs.Stat
	if err := node.Stat(&stat); err != nil {
		return nil, errStatus(err)
	}

	return &fuse.Attr{
		Ino:    uint64(stat.Inode),
		Mode:   stat.Mode,
		Nlink:  stat.Links,
		Size:   stat.Size,
		Blocks: stat.Blocks,
		Atime:  stat.Atime,
		Mtime:  stat.Mtime,
		Ctime:  stat.Ctime,
		Owner:  fuse.Owner{Uid: stat.UID, Gid: stat.GID},
	}, fuse.OK
}

func (m *Ext4BridgeFS) OpenDir(fusePath string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	node, err := m.resolve(fusePath)
	if err != nil {
		return nil, errStatus(err)
	}

	entries, err := node.ReadDir()
	if err != nil {
		return nil, errStatus(err)
	}

	stream := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		stream = append(stream, fuse.DirEntry{
			Name: entry.Name,
			Mode: entryMode(entry.Type),
		})
	}
	return stream, fuse.OK
}

func entryMode(typ vfs.FileType) uint32 {
	switch typ {
	case vfs.TypeDirectory:
		return modeTypeDir
	case vfs.TypeLink:
		return modeTypeLnk
	default:
		return modeTypeReg
	}
}

func (m *Ext4BridgeFS) Open(fusePath string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	node, err := m.fs.RootDir().Open("/"+fusePath, vfs.OpenFlags(flags)&passedFlags)
	if err != nil {
		return nil, errStatus(err)
	}
	return wrapNode(node), fuse.OK
}

func (m *Ext4BridgeFS) Create(fusePath string, flags uint32, mode uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	node, err := m.fs.RootDir().Touch("/" + fusePath)
	if err != nil {
		return nil, errStatus(err)
	}
	return wrapNode(node), fuse.OK
}

func (m *Ext4BridgeFS) Mkdir(fusePath string, mode uint32, context *fuse.Context) fuse.Status {
	if _, err := m.fs.RootDir().Mkdir("/" + fusePath); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFS) Rmdir(fusePath string, context *fuse.Context) fuse.Status {
	parent, name, status := m.resolveParent(fusePath)
	if status != fuse.OK {
		return status
	}
	if err := parent.Rmdir(name); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFS) Unlink(fusePath string, context *fuse.Context) fuse.Status {
	parent, name, status := m.resolveParent(fusePath)
	if status != fuse.OK {
		return status
	}
	if err := parent.Unlink(name); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFS) resolveParent(fusePath string) (vfs.Node, string, fuse.Status) {
	dir, name := path.Split(fusePath)
	parent, err := m.resolve(path.Clean("/" + dir)[1:])
	if err != nil {
		return nil, "", errStatus(err)
	}
	return parent, name, fuse.OK
}

func (m *Ext4BridgeFS) Truncate(fusePath string, size uint64, context *fuse.Context) fuse.Status {
	node, err := m.resolve(fusePath)
	if err != nil {
		return errStatus(err)
	}
	if err := node.Truncate(size); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFS) Readlink(fusePath string, context *fuse.Context) (string, fuse.Status) {
	node, err := m.resolve(fusePath)
	if err != nil {
		return "", errStatus(err)
	}

	target, err := node.ResolveLink()
	if err != nil {
		return "", errStatus(err)
	}
	return target, fuse.OK
}

func (m *Ext4BridgeFS) Utimens(fusePath string, atime *time.Time, mtime *time.Time, context *fuse.Context) fuse.Status {
	node, err := m.resolve(fusePath)
	if err != nil {
		return errStatus(err)
	}

	times := make([]vfs.TimeSpec, 2)
	if atime != nil {
		times[0] = vfs.TimeSpec{Sec: atime.Unix(), Nsec: int64(atime.Nanosecond())}
	}
	if mtime != nil {
		times[1] = vfs.TimeSpec{Sec: mtime.Unix(), Nsec: int64(mtime.Nanosecond())}
	}
	if err := node.Utimes(times); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFS) StatFs(fusePath string) *fuse.StatfsOut {
	var stat vfs.StatFS
	if err := m.fs.RootDir().StatFS(&stat); err != nil {
		return nil
	}

	return &fuse.StatfsOut{
		Blocks:  stat.Blocks,
		Bfree:   stat.BlocksFree,
		Bavail:  stat.BlocksFree,
		Files:   uint64(stat.Files),
		Ffree:   uint64(stat.FilesFree),
		Bsize:   stat.BlockSize,
		NameLen: stat.NameLen,
	}
}

type Ext4BridgeFile struct {
	nodefs.File
	node vfs.Node
}

func wrapNode(node vfs.Node) *Ext4BridgeFile {
	return &Ext4BridgeFile{
		File: nodefs.NewDefaultFile(),
		node: node,
	}
}

func (m *Ext4BridgeFile) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := m.node.ReadAt(dest, off)
	if err != nil {
		return fuse.ReadResultData(dest[:n]), errStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (m *Ext4BridgeFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := m.node.WriteAt(data, off)
	if err != nil {
		return uint32(n), errStatus(err)
	}
	return uint32(n), fuse.OK
}

func (m *Ext4BridgeFile) Truncate(size uint64) fuse.Status {
	if err := m.node.Truncate(size); err != nil {
		return errStatus(err)
	}
	return fuse.OK
}

func (m *Ext4BridgeFile) GetAttr(out *fuse.Attr) fuse.Status {
	var stat vfs.Stat
	if err := m.node.Stat(&stat); err != nil {
		return errStatus(err)
	}

	out.Ino = uint64(stat.Inode)
	out.Mode = stat.Mode
	out.Nlink = stat.Links
	out.Size = stat.Size
	out.Blocks = stat.Blocks
	out.Atime = stat.Atime
	out.Mtime = stat.Mtime
	out.Ctime = stat.Ctime
	out.Owner = fuse.Owner{Uid: stat.UID, Gid: stat.GID}
	return fuse.OK
}
