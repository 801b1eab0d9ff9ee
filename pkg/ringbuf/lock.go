package ringbuf

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/ringfile/pkg/fs"
)

// Locking
//
// The data file itself carries an advisory flock(LOCK_EX|LOCK_NB) for as long
// as a Buffer is open. flock applies to an inode, not a pathname, and Open may
// replace the file (temp + rename) while another process waits to open it.
// After locking, the handle's inode is compared to the one at path; on
// mismatch the caller reopens.

// errInodeMismatch means the file at path was replaced between open and flock.
var errInodeMismatch = errors.New("inode mismatch")

// flock is swapped in tests.
var flock = unix.Flock

// lockFile takes an exclusive non-blocking flock on f and verifies f is still
// the file at path. On error the lock is released; f is never closed.
//
// Returns ErrBusy if another process holds the lock.
func lockFile(fsys fs.FS, f fs.File, path string) error {
	fd := int(f.Fd())

	err := flockRetryEINTR(fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return fmt.Errorf("%s is locked by another process: %w", path, ErrBusy)
		}

		return fileAccess("flock", path, err)
	}

	same, err := sameFile(fsys, f, path)
	if err != nil || !same {
		_ = flockRetryEINTR(fd, unix.LOCK_UN)

		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fileAccess("stat", path, err)
		}

		return errInodeMismatch
	}

	return nil
}

func unlockFile(f fs.File) error {
	err := flockRetryEINTR(int(f.Fd()), unix.LOCK_UN)
	if err != nil {
		return fmt.Errorf("unlocking: %w", err)
	}

	return nil
}

// sameFile reports whether the open handle f refers to the file currently at path.
func sameFile(fsys fs.FS, f fs.File, path string) (bool, error) {
	openInfo, err := f.Stat()
	if err != nil {
		return false, err
	}

	pathInfo, err := fsys.Stat(path)
	if err != nil {
		return false, err
	}

	return os.SameFile(openInfo, pathInfo), nil
}

func flockRetryEINTR(fd, how int) error {
	for {
		err := flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
