package vfs

import "syscall"

// Error is the error type crossing the node contract. Every error
// carries an errno so the frontend can hand it to the kernel verbatim.
type Error interface {
	error
	Errno() uintptr
}

type vfsError struct {
	msg   string
	errno syscall.Errno
}

func NewError(msg string, errno syscall.Errno) Error {
	return &vfsError{
		msg:   msg,
		errno: errno,
	}
}

func (m *vfsError) Error() string {
	return m.msg
}

func (m *vfsError) Errno() uintptr {
	return uintptr(m.errno)
}

var (
	ErrNotFound        = NewError("file not found", syscall.ENOENT)
	ErrNoSpace         = NewError("no space left on device", syscall.ENOSPC)
	ErrLinkFailed      = NewError("could not create directory link", syscall.EMLINK)
	ErrNotSupported    = NewError("operation not supported", syscall.ENOTSUP)
	ErrNotImplemented  = NewError("operation not implemented by the engine", syscall.ENOSYS)
	ErrPermission      = NewError("permission denied", syscall.EACCES)
	ErrReadOnly        = NewError("read-only filesystem", syscall.EROFS)
	ErrExists          = NewError("file exists", syscall.EEXIST)
	ErrNotDirectory    = NewError("not a directory", syscall.ENOTDIR)
	ErrIsDirectory     = NewError("is a directory", syscall.EISDIR)
	ErrInvalidArgument = NewError("invalid argument", syscall.EINVAL)
	ErrUnexpectedEOF   = NewError("unexpected end of data", syscall.EIO)
	ErrIO              = NewError("input/output error", syscall.EIO)

	// ErrUnmappedEngine marks an engine error code that has no entry
	// in the mapping table. It is deliberately distinct from ErrIO so
	// a mapping gap is recognizable as such.
	ErrUnmappedEngine = NewError("unmapped engine error", syscall.EIO)

	// ErrCreatedNotOpened reports that a creation step succeeded but
	// the subsequent open of the created object failed.
	ErrCreatedNotOpened = NewError("created but could not be opened", syscall.EIO)
)

type wrappedError struct {
	kind  Error
	cause error
}

// Wrap attaches a cause to one of the taxonomy kinds. The result
// compares equal to the kind under errors.Is and unwraps to the cause.
func Wrap(kind Error, cause error) Error {
	if cause == nil {
		return kind
	}
	return &wrappedError{
		kind:  kind,
		cause: cause,
	}
}

func (m *wrappedError) Error() string {
	return m.kind.Error() + ": " + m.cause.Error()
}

func (m *wrappedError) Errno() uintptr {
	return m.kind.Errno()
}

func (m *wrappedError) Unwrap() error {
	return m.cause
}

func (m *wrappedError) Is(target error) bool {
	return target == m.kind
}
