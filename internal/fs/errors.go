package fs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"syscall"
)

// Error taxonomy shared by the store, the preview engine and file operations.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotADirectory    = errors.New("not a directory")
	ErrNotAFile         = errors.New("not a file")
	ErrConflict         = errors.New("destination exists")
	ErrCrossDevice      = errors.New("cross-device move")
	ErrGenerationFailed = errors.New("preview generation failed")
	ErrCancelled        = errors.New("cancelled")
)

// OpError ties a taxonomy kind to the operation and path that produced it.
type OpError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the taxonomy kind and the underlying error.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil && e.Err != e.Kind {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewOpError builds an OpError with an explicit kind.
func NewOpError(op, path string, kind error) *OpError {
	return &OpError{Op: op, Path: path, Kind: kind, Err: kind}
}

// Classify wraps an OS error into an *OpError carrying its taxonomy kind.
// Errors that fit no kind are wrapped with context only.
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	kind := KindOfError(err)
	if kind == nil {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
	return &OpError{Op: op, Path: path, Kind: kind, Err: err}
}

// KindOfError maps an error onto the taxonomy, or nil when it fits no kind.
func KindOfError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled):
		return ErrCancelled
	case errors.Is(err, ErrConflict), errors.Is(err, iofs.ErrExist):
		return ErrConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, iofs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, iofs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, ErrNotADirectory), errors.Is(err, syscall.ENOTDIR):
		return ErrNotADirectory
	case errors.Is(err, ErrNotAFile), errors.Is(err, syscall.EISDIR):
		return ErrNotAFile
	case errors.Is(err, ErrCrossDevice), errors.Is(err, syscall.EXDEV):
		return ErrCrossDevice
	case errors.Is(err, ErrGenerationFailed):
		return ErrGenerationFailed
	}
	return nil
}

// IsCrossDevice reports whether err signals a rename across filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, ErrCrossDevice) || errors.Is(err, syscall.EXDEV)
}
