package ext4fs

import (
	"testing"

	"github.com/horazont/ext4bridge/internal/engine"
	"github.com/horazont/ext4bridge/internal/vfs"
)

func TestTranslateFlags(t *testing.T) {
	accepted := []struct {
		name   string
		flags  vfs.OpenFlags
		mode   engine.Mode
		create bool
	}{
		{"read-only", vfs.O_RDONLY, engine.ModeRead, false},
		{"write-create-truncate", vfs.O_WRONLY | vfs.O_CREAT | vfs.O_TRUNC, engine.ModeWrite, true},
		{"write-create-append", vfs.O_WRONLY | vfs.O_CREAT | vfs.O_APPEND, engine.ModeAppend, true},
		{"read-write", vfs.O_RDWR, engine.ModeReadWrite, false},
		{"read-write-create-truncate", vfs.O_RDWR | vfs.O_CREAT | vfs.O_TRUNC, engine.ModeReadWriteTruncate, true},
		{"read-write-create-append", vfs.O_RDWR | vfs.O_CREAT | vfs.O_APPEND, engine.ModeReadWriteAppend, true},
	}

	for _, c := range accepted {
		t.Run(c.name, func(t *testing.T) {
			mode, create, err := translateFlags(c.flags)
			if err != nil {
				t.Fatalf("unexpected rejection: %s", err)
			}
			if mode != c.mode {
				t.Errorf("mode: got %q, expected %q", mode, c.mode)
			}
			if create != c.create {
				t.Errorf("create: got %v, expected %v", create, c.create)
			}
		})
	}

	rejected := []struct {
		name  string
		flags vfs.OpenFlags
	}{
		{"write-only alone", vfs.O_WRONLY},
		{"write-truncate without create", vfs.O_WRONLY | vfs.O_TRUNC},
		{"read-write-create without disposition", vfs.O_RDWR | vfs.O_CREAT},
		{"read-only with truncate", vfs.O_RDONLY | vfs.O_TRUNC},
		{"truncate and append together", vfs.O_RDWR | vfs.O_CREAT | vfs.O_TRUNC | vfs.O_APPEND},
		{"accmode", vfs.O_ACCMODE},
	}

	for _, c := range rejected {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := translateFlags(c.flags)
			if err != vfs.ErrInvalidArgument {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
