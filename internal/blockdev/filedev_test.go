package blockdev

import (
	"os"
	"path/filepath"
	"testing"
)

func makeImage(t *testing.T, sectors int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.img")
	data := make([]byte, sectors*SectorSize)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("writing image: %s", err)
	}
	return path
}

func TestFileDevice(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		dev, err := OpenFileDevice(makeImage(t, 4), false)
		assertNoError(t, err)
		defer dev.Close()

		if dev.SectorCount() != 4 {
			t.Errorf("sector count: %d", dev.SectorCount())
		}

		buf := make([]byte, SectorSize)
		assertNoError(t, dev.ReadSectors(2, buf))
		for i := range buf {
			expected := byte((2*SectorSize + i) % 251)
			if buf[i] != expected {
				t.Fatalf("byte %d: got %d, expected %d", i, buf[i], expected)
			}
		}
	})

	t.Run("write round-trip", func(t *testing.T) {
		dev, err := OpenFileDevice(makeImage(t, 4), false)
		assertNoError(t, err)
		defer dev.Close()

		out := make([]byte, SectorSize)
		for i := range out {
			out[i] = 0xAB
		}
		assertNoError(t, dev.WriteSectors(1, out))

		in := make([]byte, SectorSize)
		assertNoError(t, dev.ReadSectors(1, in))
		assertEqualBytes(t, in, out)
	})

	t.Run("read-only rejects writes", func(t *testing.T) {
		dev, err := OpenFileDevice(makeImage(t, 4), true)
		assertNoError(t, err)
		defer dev.Close()

		buf := make([]byte, SectorSize)
		if err := dev.WriteSectors(0, buf); err == nil {
			t.Errorf("expected an error")
		}
		assertNoError(t, dev.ReadSectors(0, buf))
	})

	t.Run("missing image", func(t *testing.T) {
		if _, err := OpenFileDevice(filepath.Join(t.TempDir(), "absent.img"), false); err == nil {
			t.Errorf("expected an error")
		}
	})
}
