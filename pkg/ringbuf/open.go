package ringbuf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/ringfile/pkg/fs"
)

// WritebackMode controls durability of mutations.
type WritebackMode int

const (
	// WritebackSync fsyncs the file after every Add, Remove and Clear.
	// This is the default.
	WritebackSync WritebackMode = iota

	// WritebackNone leaves flushing to the OS. A crash may lose recent
	// mutations or leave a file that fails validation on the next Open.
	WritebackNone
)

func (m WritebackMode) String() string {
	switch m {
	case WritebackSync:
		return "sync"
	case WritebackNone:
		return "none"
	default:
		return fmt.Sprintf("WritebackMode(%d)", int(m))
	}
}

// ParseWritebackMode parses "sync" or "none".
func ParseWritebackMode(s string) (WritebackMode, error) {
	switch s {
	case "sync", "":
		return WritebackSync, nil
	case "none":
		return WritebackNone, nil
	default:
		return 0, fmt.Errorf("unknown writeback mode %q: %w", s, ErrInvalidInput)
	}
}

// Options configures opening or creating a buffer file.
type Options struct {
	// Path is the filesystem path to the buffer file. Required.
	// Missing parent directories are created.
	Path string

	// Capacity is the number of elements the buffer holds.
	// Zero means [DefaultCapacity]. Fixed at creation time.
	Capacity int

	// PayloadSize is the maximum stored text length in bytes.
	// Zero means [DefaultPayloadSize]. Fixed at creation time.
	PayloadSize int

	// Writeback controls durability. Default is [WritebackSync].
	Writeback WritebackMode

	// DisableLocking skips the interprocess flock. The caller MUST make sure
	// no other process opens the same file.
	DisableLocking bool

	// FS is the filesystem to use. Nil means [fs.NewReal].
	FS fs.FS

	// Logger receives create/restore/rebuild events. Nil discards them.
	Logger logrus.FieldLogger
}

// Outcome reports how [Open] obtained a usable file.
type Outcome uint8

const (
	// OutcomeRecovered: an existing file passed validation.
	OutcomeRecovered Outcome = iota

	// OutcomeCreated: no file existed; a new empty one was written.
	OutcomeCreated

	// OutcomeRebuilt: an existing file failed validation and was replaced
	// with an empty one. Its previous contents are gone.
	OutcomeRebuilt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecovered:
		return "recovered"
	case OutcomeCreated:
		return "created"
	case OutcomeRebuilt:
		return "rebuilt"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// Recovery describes what [Open] did with the file at Path.
type Recovery struct {
	Outcome Outcome

	// Reason is the *RejectError that caused a rebuild, nil otherwise.
	Reason error
}

// File and directory permissions for created files.
const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// maxOpenAttempts bounds the stat/open/lock/validate loop. Each retry means
// the file was created, rebuilt, or replaced by someone else in between.
const maxOpenAttempts = 4

// Open opens the buffer file at opts.Path, creating or rebuilding it as
// needed. The returned Buffer must be closed with [Buffer.Close].
//
// Possible errors:
//   - [ErrInvalidInput]: invalid options
//   - [ErrBusy]: another process has the file open
//   - [ErrFileAccess]: the file could not be opened, read, created or locked
//
// A file that fails validation is not an error: it is deleted and recreated
// empty, and [Buffer.Recovery] reports [OutcomeRebuilt].
func Open(opts Options) (*Buffer, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	o := &opener{
		opts:   opts,
		fs:     opts.FS,
		log:    opts.Logger.WithField("path", opts.Path),
		layout: newLayout(opts.Capacity, opts.PayloadSize),
	}

	return o.open()
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.Path == "" {
		return Options{}, fmt.Errorf("path is required: %w", ErrInvalidInput)
	}

	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}

	if opts.PayloadSize == 0 {
		opts.PayloadSize = DefaultPayloadSize
	}

	if opts.Capacity < 1 || opts.Capacity > maxCapacity {
		return Options{}, fmt.Errorf("capacity must be in [1, %d], got %d: %w", maxCapacity, opts.Capacity, ErrInvalidInput)
	}

	if opts.PayloadSize < 1 || opts.PayloadSize > maxPayloadSize {
		return Options{}, fmt.Errorf("payload size must be in [1, %d], got %d: %w", maxPayloadSize, opts.PayloadSize, ErrInvalidInput)
	}

	if size := newLayout(opts.Capacity, opts.PayloadSize).fileSize(); size > maxFileSizeBytes {
		return Options{}, fmt.Errorf("file size %d exceeds max %d: %w", size, maxFileSizeBytes, ErrInvalidInput)
	}

	switch opts.Writeback {
	case WritebackSync, WritebackNone:
	default:
		return Options{}, fmt.Errorf("unknown writeback mode %d: %w", opts.Writeback, ErrInvalidInput)
	}

	if opts.FS == nil {
		opts.FS = fs.NewReal()
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	return opts, nil
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}

// opener carries the state of one Open call.
type opener struct {
	opts   Options
	fs     fs.FS
	log    logrus.FieldLogger
	layout layout
}

func (o *opener) open() (*Buffer, error) {
	path := o.opts.Path
	recovery := Recovery{Outcome: OutcomeRecovered}

	for range maxOpenAttempts {
		info, err := o.fs.Stat(path)

		switch {
		case errors.Is(err, os.ErrNotExist):
			o.log.Info("creating new buffer")

			err = o.writeFresh()
			if err != nil {
				return nil, err
			}

			if recovery.Outcome == OutcomeRecovered {
				recovery.Outcome = OutcomeCreated
			}

			continue

		case err != nil:
			return nil, fileAccess("stat", path, err)

		case !info.Mode().IsRegular():
			o.log.WithField("mode", info.Mode().String()).Warn("path is not a regular file, replacing it")

			err = o.rebuild()
			if err != nil {
				return nil, err
			}

			recovery.Outcome = OutcomeCreated

			continue
		}

		f, err := o.fs.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, fileAccess("open", path, err)
		}

		b, retry, err := o.openLocked(f, &recovery)
		if err != nil || retry {
			closeErr := f.Close()
			if err != nil {
				return nil, errors.Join(err, closeErr)
			}

			continue
		}

		return b, nil
	}

	return nil, fmt.Errorf("%s kept changing during open after %d attempts: %w", path, maxOpenAttempts, ErrBusy)
}

// openLocked locks and validates f. On success it returns a Buffer owning f.
// retry=true means f must be closed and the open loop restarted (the file
// was replaced or rebuilt). On error or retry the caller closes f.
func (o *opener) openLocked(f fs.File, recovery *Recovery) (*Buffer, bool, error) {
	path := o.opts.Path

	if !o.opts.DisableLocking {
		err := lockFile(o.fs, f, path)
		if errors.Is(err, errInodeMismatch) {
			return nil, true, nil
		}

		if err != nil {
			return nil, false, err
		}
	}

	info, err := f.Stat()
	if err != nil {
		return nil, false, o.unlockOnError(f, fileAccess("stat", path, err))
	}

	scan, err := validateFile(f, info.Size(), o.layout)

	var rejected *RejectError
	if errors.As(err, &rejected) {
		o.log.WithFields(logrus.Fields{
			"state":  rejected.Reached.String(),
			"reason": rejected.Reason,
		}).Warn("buffer validation failed, rebuilding")

		recovery.Outcome = OutcomeRebuilt
		recovery.Reason = rejected

		// Rebuild while still holding the lock on the old inode, so a
		// concurrent opener waits on us instead of validating a half-replaced path.
		err = o.rebuild()
		if err != nil {
			return nil, false, o.unlockOnError(f, err)
		}

		return nil, true, o.unlockOnError(f, nil)
	}

	if err != nil {
		return nil, false, o.unlockOnError(f, fileAccess("read", path, err))
	}

	if recovery.Outcome == OutcomeRecovered {
		o.log.WithFields(logrus.Fields{
			"first": int(scan.first),
			"len":   scan.size,
		}).Info("restoring buffer")
	}

	return newBuffer(f, o.opts, o.layout, scan, *recovery), false, nil
}

func (o *opener) unlockOnError(f fs.File, err error) error {
	if o.opts.DisableLocking {
		return err
	}

	return errors.Join(err, unlockFile(f))
}

// rebuild discards whatever is at Path and writes a fresh empty file.
func (o *opener) rebuild() error {
	err := o.fs.Remove(o.opts.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fileAccess("remove", o.opts.Path, err)
	}

	return o.writeFresh()
}

// writeFresh writes a complete empty buffer file via temp file + rename.
func (o *opener) writeFresh() error {
	path := o.opts.Path

	err := o.fs.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fileAccess("create directory for", path, err)
	}

	err = o.fs.WriteFileAtomic(path, freshImage(o.layout), filePerm)
	if err != nil {
		return fileAccess("create", path, err)
	}

	return nil
}
