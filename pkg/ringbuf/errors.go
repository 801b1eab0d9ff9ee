package ringbuf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ringbuf operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, ringbuf.ErrEmpty) {
//	    // nothing to dequeue
//	}
var (
	// ErrFileAccess indicates the backing file could not be opened, created,
	// read, written or synced. The underlying OS error is wrapped as well.
	//
	// Recovery: fix permissions/disk space and reopen. After a failed write
	// or sync the Buffer returns ErrFileAccess from every call but Close; the
	// file may be inconsistent and the next [Open] detects and rebuilds it.
	ErrFileAccess = errors.New("ringbuf: file access")

	// ErrEmpty indicates a read or removal on an empty buffer.
	ErrEmpty = errors.New("ringbuf: empty")

	// ErrClosed indicates the [Buffer] has already been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("ringbuf: closed")

	// ErrInvalidInput indicates invalid [Options].
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("ringbuf: invalid input")

	// ErrBusy indicates another process holds the buffer file lock.
	//
	// Recovery: retry after a short delay, or make sure only one process
	// owns the file.
	ErrBusy = errors.New("ringbuf: busy")
)

// RejectError describes why an existing file failed validation.
//
// It is never returned by [Open]; a rejected file is rebuilt. It shows up in
// [Recovery.Reason], [Report.Reason] and in the warning logged on rebuild.
type RejectError struct {
	// Reached is the last validation state the file passed before rejection:
	// [StateAbsent] for header problems, [StateHeaderChecked] for slot problems.
	Reached ValidationState

	// Reason is a human readable description of the mismatch.
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("ringbuf: validation rejected after %s: %s", e.Reached, e.Reason)
}

func rejectf(reached ValidationState, format string, args ...any) *RejectError {
	return &RejectError{Reached: reached, Reason: fmt.Sprintf(format, args...)}
}

// fileAccess wraps an OS error with [ErrFileAccess].
func fileAccess(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrFileAccess, err)
}
