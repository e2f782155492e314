package vfs

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		kind  Error
		errno syscall.Errno
	}{
		{ErrNotFound, syscall.ENOENT},
		{ErrNoSpace, syscall.ENOSPC},
		{ErrLinkFailed, syscall.EMLINK},
		{ErrNotSupported, syscall.ENOTSUP},
		{ErrNotImplemented, syscall.ENOSYS},
		{ErrReadOnly, syscall.EROFS},
		{ErrInvalidArgument, syscall.EINVAL},
		{ErrIO, syscall.EIO},
		{ErrUnmappedEngine, syscall.EIO},
		{ErrCreatedNotOpened, syscall.EIO},
	}

	for _, c := range cases {
		t.Run(c.kind.Error(), func(t *testing.T) {
			if c.kind.Errno() != uintptr(c.errno) {
				t.Errorf("errno: got %d, expected %d", c.kind.Errno(), uintptr(c.errno))
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("sector 12 unreadable")
	err := Wrap(ErrIO, cause)

	if !errors.Is(err, ErrIO) {
		t.Errorf("wrapped error does not match its kind")
	}
	if !errors.Is(err, cause) {
		t.Errorf("wrapped error does not match its cause")
	}
	if err.Errno() != ErrIO.Errno() {
		t.Errorf("wrapped errno: got %d", err.Errno())
	}

	// Distinct kinds must stay distinct even when they share an errno.
	if errors.Is(Wrap(ErrUnmappedEngine, cause), ErrIO) {
		t.Errorf("unmapped-engine kind collapsed into plain I/O")
	}
}
