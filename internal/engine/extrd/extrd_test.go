package extrd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/horazont/ext4bridge/internal/blockdev"
	"github.com/horazont/ext4bridge/internal/engine"
)

// The test image is a minimal single-group 4096-byte-block filesystem
// built by hand:
//
//	block 0  superblock (at byte offset 1024)
//	block 1  group descriptor table
//	block 2  inode table (32 inodes of 128 bytes)
//	block 3  root directory data (legacy direct pointer)
//	block 4  "sub" directory data (extent)
//	block 5+6  "hello.txt" content, 5000 bytes (extent, len 2)
//	block 7  "sub/inner.txt" content (extent)
//	block 8  indirect pointer block of "big.bin"
//	blocks 16..27  direct blocks of "big.bin"
//	block 28 13th block of "big.bin", reached via the indirect block
const (
	imageBlocks = 64
	testBS      = 4096

	inoHello = 11
	inoSub   = 12
	inoLink  = 13
	inoDev   = 14
	inoInner = 15
	inoBig   = 16

	helloSize = 5000
	bigSize   = 13 * testBS
)

var le = binary.LittleEndian

func fillPattern(buf []byte, seed byte) {
	for i := range buf {
		buf[i] = seed + byte(i%97)
	}
}

func putDirent(buf []byte, offset int, ino uint32, recLen int, typ uint8, name string) int {
	le.PutUint32(buf[offset:], ino)
	le.PutUint16(buf[offset+4:], uint16(recLen))
	buf[offset+6] = uint8(len(name))
	buf[offset+7] = typ
	copy(buf[offset+8:], name)
	return offset + recLen
}

type inodeSpec struct {
	mode  uint16
	size  uint64
	flags uint32
	block [60]byte
}

func putInode(img []byte, num uint32, spec inodeSpec) {
	base := 2*testBS + int(num-1)*128
	le.PutUint16(img[base+0x00:], spec.mode)
	le.PutUint32(img[base+0x04:], uint32(spec.size))
	le.PutUint32(img[base+0x08:], 1000) // atime
	le.PutUint32(img[base+0x0C:], 1001) // ctime
	le.PutUint32(img[base+0x10:], 1002) // mtime
	le.PutUint16(img[base+0x1A:], 1)    // links
	le.PutUint32(img[base+0x20:], spec.flags)
	copy(img[base+0x28:base+0x64], spec.block[:])
}

// singleExtent builds an inline extent tree mapping logical block 0
// onward to physical blocks starting at start.
func singleExtent(start uint32, count uint16) [60]byte {
	var b [60]byte
	le.PutUint16(b[0:], extentMagic)
	le.PutUint16(b[2:], 1) // entries
	le.PutUint16(b[4:], 4) // max
	le.PutUint16(b[6:], 0) // depth
	le.PutUint32(b[12:], 0)
	le.PutUint16(b[16:], count)
	le.PutUint16(b[18:], 0) // start high
	le.PutUint32(b[20:], start)
	return b
}

func buildTestImage() []byte {
	img := make([]byte, imageBlocks*testBS)

	// Superblock.
	sb := img[1024:]
	le.PutUint32(sb[0x00:], 32)          // inodes count
	le.PutUint32(sb[0x04:], imageBlocks) // blocks count
	le.PutUint32(sb[0x0C:], 30)          // free blocks
	le.PutUint32(sb[0x10:], 20)          // free inodes
	le.PutUint32(sb[0x14:], 0)           // first data block
	le.PutUint32(sb[0x18:], 2)           // log block size: 4096
	le.PutUint32(sb[0x20:], 32768)       // blocks per group
	le.PutUint32(sb[0x28:], 32)          // inodes per group
	le.PutUint16(sb[0x38:], extMagic)
	le.PutUint32(sb[0x4C:], 1)   // rev level
	le.PutUint16(sb[0x58:], 128) // inode size

	// Group descriptor 0: inode table at block 2.
	le.PutUint32(img[testBS+0x08:], 2)

	// Root directory: legacy direct pointer to block 3.
	var rootBlock [60]byte
	le.PutUint32(rootBlock[0:], 3)
	putInode(img, rootInode, inodeSpec{mode: 0x41ED, size: testBS, block: rootBlock})

	dir := img[3*testBS:]
	off := putDirent(dir, 0, rootInode, 12, engine.DirEntryDir, ".")
	off = putDirent(dir, off, rootInode, 12, engine.DirEntryDir, "..")
	off = putDirent(dir, off, inoHello, 20, engine.DirEntryRegFile, "hello.txt")
	off = putDirent(dir, off, inoSub, 12, engine.DirEntryDir, "sub")
	off = putDirent(dir, off, inoLink, 16, engine.DirEntrySymlink, "link")
	off = putDirent(dir, off, inoDev, 12, engine.DirEntryChrdev, "dev")
	putDirent(dir, off, inoBig, testBS-off, engine.DirEntryRegFile, "big.bin")

	// hello.txt: 5000 bytes across blocks 5 and 6 via one extent.
	putInode(img, inoHello, inodeSpec{mode: 0x81A4, size: helloSize, flags: inodeFlagExtents, block: singleExtent(5, 2)})
	fillPattern(img[5*testBS:5*testBS+helloSize], 3)

	// sub/: extent to block 4.
	putInode(img, inoSub, inodeSpec{mode: 0x41ED, size: testBS, flags: inodeFlagExtents, block: singleExtent(4, 1)})
	sub := img[4*testBS:]
	off = putDirent(sub, 0, inoSub, 12, engine.DirEntryDir, ".")
	off = putDirent(sub, off, rootInode, 12, engine.DirEntryDir, "..")
	putDirent(sub, off, inoInner, testBS-off, engine.DirEntryRegFile, "inner.txt")

	putInode(img, inoLink, inodeSpec{mode: 0xA1FF, size: 6})
	putInode(img, inoDev, inodeSpec{mode: 0x21A4})

	// sub/inner.txt: extent to block 7.
	putInode(img, inoInner, inodeSpec{mode: 0x81A4, size: 10, flags: inodeFlagExtents, block: singleExtent(7, 1)})
	copy(img[7*testBS:], "inner data")

	// big.bin: 12 direct blocks (16..27) plus one indirect block.
	var bigBlock [60]byte
	for i := 0; i < 12; i++ {
		le.PutUint32(bigBlock[i*4:], uint32(16+i))
	}
	le.PutUint32(bigBlock[48:], 8) // single indirect
	putInode(img, inoBig, inodeSpec{mode: 0x81A4, size: bigSize, block: bigBlock})
	le.PutUint32(img[8*testBS:], 28)
	for i := 0; i < 12; i++ {
		fillPattern(img[(16+i)*testBS:(17+i)*testBS], byte(7*i))
	}
	fillPattern(img[28*testBS:29*testBS], 200)

	return img
}

func openTestEngine(t *testing.T, id blockdev.DeviceID) (*Engine, []byte) {
	t.Helper()

	img := buildTestImage()
	blockdev.RegisterDevice(id, blockdev.NewMemDeviceFrom(img))
	t.Cleanup(func() { blockdev.UnregisterDevice(id) })

	eng, err := Open(blockdev.NewDisk(id))
	if err != nil {
		t.Fatalf("opening test engine: %s", err)
	}
	return eng, img
}

func assertErrno(t *testing.T, err error, want engine.Errno) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("expected %q, got %v", want, err)
	}
}

func TestOpenSuperblock(t *testing.T) {
	t.Run("valid image", func(t *testing.T) {
		eng, _ := openTestEngine(t, 200)
		info, err := eng.FSStat()
		if err != nil {
			t.Fatalf("FSStat: %s", err)
		}
		if info.BlockSize != testBS {
			t.Errorf("block size: got %d", info.BlockSize)
		}
		if info.BlocksCount != imageBlocks {
			t.Errorf("blocks count: got %d", info.BlocksCount)
		}
		if info.InodesCount != 32 {
			t.Errorf("inodes count: got %d", info.InodesCount)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		img := buildTestImage()
		img[1024+0x38] = 0
		blockdev.RegisterDevice(201, blockdev.NewMemDeviceFrom(img))
		defer blockdev.UnregisterDevice(201)

		_, err := Open(blockdev.NewDisk(201))
		assertErrno(t, err, engine.EINVAL)
	})

	t.Run("mismatched block size", func(t *testing.T) {
		img := buildTestImage()
		le.PutUint32(img[1024+0x18:], 0) // 1024-byte blocks
		blockdev.RegisterDevice(202, blockdev.NewMemDeviceFrom(img))
		defer blockdev.UnregisterDevice(202)

		_, err := Open(blockdev.NewDisk(202))
		assertErrno(t, err, engine.EINVAL)
	})
}

func TestOpenPaths(t *testing.T) {
	eng, _ := openTestEngine(t, 203)

	t.Run("root", func(t *testing.T) {
		f, err := eng.Open("/", engine.ModeRead, false)
		if err != nil {
			t.Fatalf("open root: %s", err)
		}
		if f.Inode != rootInode {
			t.Errorf("root inode: got %d", f.Inode)
		}
	})

	t.Run("file", func(t *testing.T) {
		f, err := eng.Open("/hello.txt", engine.ModeRead, false)
		if err != nil {
			t.Fatalf("open: %s", err)
		}
		if f.Inode != inoHello {
			t.Errorf("inode: got %d", f.Inode)
		}
	})

	t.Run("nested", func(t *testing.T) {
		f, err := eng.Open("/sub/inner.txt", engine.ModeRead, false)
		if err != nil {
			t.Fatalf("open: %s", err)
		}
		if f.Inode != inoInner {
			t.Errorf("inode: got %d", f.Inode)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := eng.Open("/nope", engine.ModeRead, false)
		assertErrno(t, err, engine.ENOENT)
	})

	t.Run("write mode is rejected", func(t *testing.T) {
		_, err := eng.Open("/hello.txt", engine.ModeReadWrite, false)
		assertErrno(t, err, engine.EROFS)
	})

	t.Run("create of missing path is rejected", func(t *testing.T) {
		_, err := eng.Open("/new.txt", engine.ModeRead, true)
		assertErrno(t, err, engine.EROFS)
	})
}

func TestReadAt(t *testing.T) {
	eng, img := openTestEngine(t, 204)

	open := func(t *testing.T, path string) *engine.File {
		t.Helper()
		f, err := eng.Open(path, engine.ModeRead, false)
		if err != nil {
			t.Fatalf("open %s: %s", path, err)
		}
		return f
	}

	t.Run("full file", func(t *testing.T) {
		f := open(t, "/hello.txt")
		dest := make([]byte, helloSize)
		n, err := eng.ReadAt(f, dest, 0)
		if err != nil {
			t.Fatalf("ReadAt: %s", err)
		}
		if n != helloSize {
			t.Fatalf("read %d of %d bytes", n, helloSize)
		}
		if !bytes.Equal(dest, img[5*testBS:5*testBS+helloSize]) {
			t.Errorf("content mismatch")
		}
	})

	t.Run("read across a block boundary", func(t *testing.T) {
		f := open(t, "/hello.txt")
		dest := make([]byte, 20)
		n, err := eng.ReadAt(f, dest, testBS-10)
		if err != nil {
			t.Fatalf("ReadAt: %s", err)
		}
		if n != 20 {
			t.Fatalf("read %d bytes", n)
		}
		if !bytes.Equal(dest, img[5*testBS+testBS-10:5*testBS+testBS+10]) {
			t.Errorf("content mismatch at the block boundary")
		}
	})

	t.Run("read clamps at the file size", func(t *testing.T) {
		f := open(t, "/hello.txt")
		dest := make([]byte, 100)
		n, err := eng.ReadAt(f, dest, helloSize-30)
		if err != nil {
			t.Fatalf("ReadAt: %s", err)
		}
		if n != 30 {
			t.Errorf("read %d bytes, expected 30", n)
		}
	})

	t.Run("read past the end", func(t *testing.T) {
		f := open(t, "/hello.txt")
		n, err := eng.ReadAt(f, make([]byte, 8), helloSize+1)
		if err != nil || n != 0 {
			t.Errorf("expected a zero-length read, got n=%d err=%v", n, err)
		}
	})

	t.Run("indirect block map", func(t *testing.T) {
		f := open(t, "/big.bin")
		dest := make([]byte, 32)

		// 13th block lives behind the single indirect pointer.
		n, err := eng.ReadAt(f, dest, 12*testBS)
		if err != nil {
			t.Fatalf("ReadAt: %s", err)
		}
		if n != 32 {
			t.Fatalf("read %d bytes", n)
		}
		if !bytes.Equal(dest, img[28*testBS:28*testBS+32]) {
			t.Errorf("indirect block content mismatch")
		}
	})

	t.Run("direct block map", func(t *testing.T) {
		f := open(t, "/big.bin")
		dest := make([]byte, 64)
		n, err := eng.ReadAt(f, dest, 5*testBS+100)
		if err != nil || n != 64 {
			t.Fatalf("ReadAt: n=%d err=%v", n, err)
		}
		if !bytes.Equal(dest, img[(16+5)*testBS+100:(16+5)*testBS+164]) {
			t.Errorf("direct block content mismatch")
		}
	})
}

func TestReadDirEntries(t *testing.T) {
	eng, _ := openTestEngine(t, 205)

	t.Run("root listing in on-disk order", func(t *testing.T) {
		entries, err := eng.ReadDirEntries(rootInode)
		if err != nil {
			t.Fatalf("ReadDirEntries: %s", err)
		}

		want := []engine.RawDirEntry{
			{Inode: rootInode, Name: ".", FileType: engine.DirEntryDir},
			{Inode: rootInode, Name: "..", FileType: engine.DirEntryDir},
			{Inode: inoHello, Name: "hello.txt", FileType: engine.DirEntryRegFile},
			{Inode: inoSub, Name: "sub", FileType: engine.DirEntryDir},
			{Inode: inoLink, Name: "link", FileType: engine.DirEntrySymlink},
			{Inode: inoDev, Name: "dev", FileType: engine.DirEntryChrdev},
			{Inode: inoBig, Name: "big.bin", FileType: engine.DirEntryRegFile},
		}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, expected %d", len(entries), len(want))
		}
		for i := range want {
			if entries[i] != want[i] {
				t.Errorf("entry %d: got %+v, expected %+v", i, entries[i], want[i])
			}
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		_, err := eng.ReadDirEntries(inoHello)
		assertErrno(t, err, engine.ENOTDIR)
	})
}

func TestLookupAndStat(t *testing.T) {
	eng, _ := openTestEngine(t, 206)

	t.Run("lookup hit", func(t *testing.T) {
		ino, err := eng.Lookup(rootInode, "sub")
		if err != nil {
			t.Fatalf("Lookup: %s", err)
		}
		if ino != inoSub {
			t.Errorf("inode: got %d", ino)
		}
	})

	t.Run("lookup miss", func(t *testing.T) {
		_, err := eng.Lookup(rootInode, "ghost")
		assertErrno(t, err, engine.ENOENT)
	})

	t.Run("stat", func(t *testing.T) {
		attr, err := eng.Stat(inoHello)
		if err != nil {
			t.Fatalf("Stat: %s", err)
		}
		if attr.Size != helloSize {
			t.Errorf("size: got %d", attr.Size)
		}
		if attr.Mode != 0x81A4 {
			t.Errorf("mode: got %#x", attr.Mode)
		}
		if attr.Mtime != 1002 {
			t.Errorf("mtime: got %d", attr.Mtime)
		}
	})

	t.Run("stat of invalid inode", func(t *testing.T) {
		_, err := eng.Stat(0)
		assertErrno(t, err, engine.EINVAL)
	})
}

func TestMutationsAreRejected(t *testing.T) {
	eng, _ := openTestEngine(t, 207)

	f, err := eng.Open("/hello.txt", engine.ModeRead, false)
	if err != nil {
		t.Fatalf("open: %s", err)
	}

	if _, err := eng.WriteAt(f, []byte("x"), 0); !errors.Is(err, engine.EROFS) {
		t.Errorf("WriteAt: expected EROFS, got %v", err)
	}
	assertErrno(t, eng.Truncate(f, 0), engine.EROFS)
	assertErrno(t, eng.MkDir("/d"), engine.EROFS)
	assertErrno(t, eng.RemoveFile(rootInode, "hello.txt"), engine.EROFS)
	assertErrno(t, eng.RemoveDir(rootInode, "sub"), engine.EROFS)
	assertErrno(t, eng.SetTimes(inoHello, 1, 2), engine.EROFS)
}
