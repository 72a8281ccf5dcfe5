package storage

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/cloudfiles/cloudfiles/internal/errors"
	"github.com/cloudfiles/cloudfiles/internal/objectpath"
)

// Kind classifies a storage error. It is the only field callers should match
// on.
type Kind uint8

const (
	// KindInvalidPath marks an attempt to access an invalid path.
	KindInvalidPath Kind = iota
	// KindNotFound means the requested object was not found.
	KindNotFound
	// KindCancelled means the operation was cancelled.
	KindCancelled
	// KindConnectionFailed means the connection to storage failed.
	KindConnectionFailed
	// KindConnectionClosed means the connection to storage was closed.
	KindConnectionClosed
	// KindInvalidData means the service returned some invalid data.
	KindInvalidData
	// KindAccessDenied means the supplied credentials were denied access.
	KindAccessDenied
	// KindAccessExpired means a previously valid authorization has expired.
	KindAccessExpired
	// KindInvalidSettings means the configuration for a backend was invalid.
	KindInvalidSettings
	// KindInternalError is an internal failure, please report a bug.
	KindInternalError
	// KindOther is any other type of error, normally with an inner error.
	KindOther
)

// Error is the error type shared by all storage backends.
type Error struct {
	Kind   Kind
	Path   objectpath.Path
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidPath:
		if e.Detail != "" {
			return fmt.Sprintf("the path %q was invalid: %s", e.Path, e.Detail)
		}
		return fmt.Sprintf("the path %q was invalid", e.Path)
	case KindNotFound:
		return fmt.Sprintf("the path %q was not found", e.Path)
	case KindCancelled:
		return fmt.Sprintf("the operation was cancelled: %s", e.Detail)
	case KindConnectionFailed:
		return fmt.Sprintf("the storage connection failed: %s", e.Detail)
	case KindConnectionClosed:
		return fmt.Sprintf("the storage connection was closed: %s", e.Detail)
	case KindInvalidData:
		return fmt.Sprintf("invalid data: %s", e.Detail)
	case KindAccessDenied:
		return fmt.Sprintf("access was denied: %s", e.Detail)
	case KindAccessExpired:
		return fmt.Sprintf("access has expired: %s", e.Detail)
	case KindInvalidSettings:
		return fmt.Sprintf("some of the settings passed were invalid: %s", e.Detail)
	case KindInternalError:
		return fmt.Sprintf("an internal error occurred: %s", e.Detail)
	default:
		return fmt.Sprintf("an unknown error occurred: %s", e.Detail)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidPath creates a KindInvalidPath error.
func InvalidPath(path objectpath.Path, detail string) error {
	return &Error{Kind: KindInvalidPath, Path: path, Detail: detail}
}

// NotFound creates a KindNotFound error.
func NotFound(path objectpath.Path, err error) error {
	return &Error{Kind: KindNotFound, Path: path, Err: err}
}

// Cancelled creates a KindCancelled error.
func Cancelled(detail string, err error) error {
	return &Error{Kind: KindCancelled, Detail: detail, Err: err}
}

// ConnectionFailed creates a KindConnectionFailed error.
func ConnectionFailed(detail string, err error) error {
	return &Error{Kind: KindConnectionFailed, Detail: detail, Err: err}
}

// ConnectionClosed creates a KindConnectionClosed error.
func ConnectionClosed(detail string, err error) error {
	return &Error{Kind: KindConnectionClosed, Detail: detail, Err: err}
}

// InvalidData creates a KindInvalidData error.
func InvalidData(detail string, err error) error {
	return &Error{Kind: KindInvalidData, Detail: detail, Err: err}
}

// AccessDenied creates a KindAccessDenied error.
func AccessDenied(detail string, err error) error {
	return &Error{Kind: KindAccessDenied, Detail: detail, Err: err}
}

// AccessExpired creates a KindAccessExpired error.
func AccessExpired(detail string, err error) error {
	return &Error{Kind: KindAccessExpired, Detail: detail, Err: err}
}

// InvalidSettings creates a KindInvalidSettings error.
func InvalidSettings(detail string, err error) error {
	return &Error{Kind: KindInvalidSettings, Detail: detail, Err: err}
}

// InternalError creates a KindInternalError error.
func InternalError(detail string, err error) error {
	return &Error{Kind: KindInternalError, Detail: detail, Err: err}
}

// OtherError creates a KindOther error.
func OtherError(detail string, err error) error {
	return &Error{Kind: KindOther, Detail: detail, Err: err}
}

// KindOf returns the Kind of err, or KindOther when err carries no storage
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// IsKind reports whether err carries a storage error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ioError wraps a storage error together with the host sentinel that
// errors.Is should match it against.
type ioError struct {
	sentinel error
	err      error
}

func (e *ioError) Error() string { return e.err.Error() }

func (e *ioError) Unwrap() error { return e.err }

func (e *ioError) Is(tgt error) bool { return tgt == e.sentinel }

// IOError converts a storage error into an error matching the host I/O
// sentinels, so that callers using errors.Is(err, fs.ErrNotExist) and friends
// behave as they would with host file errors.
func IOError(err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch KindOf(err) {
	case KindInvalidPath, KindInvalidData:
		sentinel = os.ErrInvalid
	case KindNotFound:
		sentinel = fs.ErrNotExist
	case KindCancelled:
		sentinel = syscall.ECONNABORTED
	case KindConnectionFailed:
		sentinel = syscall.ECONNREFUSED
	case KindConnectionClosed:
		sentinel = syscall.ENOTCONN
	case KindAccessDenied:
		sentinel = fs.ErrPermission
	case KindInvalidSettings:
		sentinel = os.ErrInvalid
	default:
		return err
	}

	return &ioError{sentinel: sentinel, err: err}
}

// TransferSide marks which side of a transfer failed.
type TransferSide uint8

const (
	// SourceSide means the stream feeding the transfer failed.
	SourceSide TransferSide = iota
	// TargetSide means the destination failed.
	TargetSide
)

func (s TransferSide) String() string {
	if s == SourceSide {
		return "source"
	}
	return "target"
}

// TransferError tags an error from a copy, move or write-from-stream
// operation with the side of the transfer that failed. It is never converted
// blindly; callers must choose a direction.
type TransferError struct {
	Side TransferSide
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%v error: %v", e.Side, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// SourceError tags err as coming from the source of a transfer.
func SourceError(err error) error {
	if err == nil {
		return nil
	}
	return &TransferError{Side: SourceSide, Err: err}
}

// TargetError tags err as coming from the target of a transfer.
func TargetError(err error) error {
	if err == nil {
		return nil
	}
	return &TransferError{Side: TargetSide, Err: err}
}

// TransferSideOf returns the transfer side recorded in err. ok is false when
// err carries no transfer tag.
func TransferSideOf(err error) (side TransferSide, ok bool) {
	var e *TransferError
	if errors.As(err, &e) {
		return e.Side, true
	}
	return 0, false
}
