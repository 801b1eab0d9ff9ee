package fs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail.
	// Read-only opens: EACCES, EIO, EMFILE, ENFILE, ENOTDIR.
	// Write opens add ENOSPC, EDQUOT, EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read and File.ReadAt fail entirely,
	// returning zero bytes and EIO.
	ReadFailRate float64

	// WriteFailRate controls how often File.Write and File.WriteAt fail
	// entirely, writing zero bytes (EIO, ENOSPC, EDQUOT, or EROFS).
	WriteFailRate float64

	// PartialWriteRate controls how often File.WriteAt writes only a prefix
	// before failing. Returns n > 0 along with an errno-style error.
	PartialWriteRate float64

	// SyncFailRate controls how often File.Sync fails (EIO, ENOSPC, EDQUOT,
	// or EROFS).
	SyncFailRate float64

	// StatFailRate controls how often FS.Stat fails (EACCES or EIO).
	StatFailRate float64

	// RemoveFailRate controls how often FS.Remove fails
	// (EACCES, EPERM, EBUSY, EIO, or EROFS).
	RemoveFailRate float64

	// AtomicWriteFailRate controls how often FS.WriteFileAtomic fails before
	// touching the destination (EACCES, EIO, ENOSPC, EDQUOT, or EROFS).
	AtomicWriteFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails        int64
	ReadFails        int64
	WriteFails       int64
	PartialWrites    int64
	SyncFails        int64
	StatFails        int64
	RemoveFails      int64
	AtomicWriteFails int64
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Injected errors are [*fs.PathError] values carrying a real [syscall.Errno],
// so [errors.Is] and helpers like [os.IsPermission] behave like real OS
// errors. Chaos never injects ENOENT; any os.IsNotExist result originates
// from the wrapped [FS].
//
// Each call independently decides whether to inject; there is no sticky
// per-path fault state.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	openFails        atomic.Int64
	readFails        atomic.Int64
	writeFails       atomic.Int64
	partialWrites    atomic.Int64
	syncFails        atomic.Int64
	statFails        atomic.Int64
	removeFails      atomic.Int64
	atomicWriteFails atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: *config,
	}
}

// SetMode switches between [ChaosModeActive] and [ChaosModeNoOp].
// Safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:        c.openFails.Load(),
		ReadFails:        c.readFails.Load(),
		WriteFails:       c.writeFails.Load(),
		PartialWrites:    c.partialWrites.Load(),
		SyncFails:        c.syncFails.Load(),
		StatFails:        c.statFails.Load(),
		RemoveFails:      c.removeFails.Load(),
		AtomicWriteFails: c.atomicWriteFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialWrites +
		s.SyncFails + s.StatFails + s.RemoveFails + s.AtomicWriteFails
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.openWithChaos(path, os.O_RDONLY, func() (File, error) {
		return c.fs.Open(path)
	})
}

// OpenFile opens a file with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return c.openWithChaos(path, flag, func() (File, error) {
		return c.fs.OpenFile(path, flag, perm)
	})
}

// WriteFileAtomic writes a file atomically with fault injection. An injected
// failure leaves the destination untouched, like a failed temp write would.
func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if c.should(c.config.AtomicWriteFailRate) {
		c.atomicWriteFails.Add(1)

		return pathError("writeatomic", path, c.pickRandom([]syscall.Errno{
			syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS,
		}))
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

// MkdirAll is a passthrough; directory faults surface through the atomic write.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.should(c.config.StatFailRate) {
		c.statFails.Add(1)

		return nil, pathError("stat", path, c.pickRandom([]syscall.Errno{syscall.EACCES, syscall.EIO}))
	}

	return c.fs.Stat(path)
}

// Remove deletes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	if c.should(c.config.RemoveFailRate) {
		c.removeFails.Add(1)

		return pathError("remove", path, c.pickRandom([]syscall.Errno{
			syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO, syscall.EROFS,
		}))
	}

	return c.fs.Remove(path)
}

func (c *Chaos) openWithChaos(path string, flag int, openFn func() (File, error)) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		errnos := []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE, syscall.ENOTDIR}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
			errnos = append(errnos, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS)
		}

		return nil, pathError("open", path, c.pickRandom(errnos))
	}

	file, err := openFn()
	if err != nil {
		return nil, err
	}

	return &chaosFile{f: file, chaos: c, path: path}, nil
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(rate float64) bool {
	if ChaosMode(c.mode.Load()) != ChaosModeActive {
		return false
	}

	return c.randFloat() < rate
}

func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pickRandom(errs []syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

// pathError creates an injected [*fs.PathError] wrapped in [chaosError].
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

var writeErrnos = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}

// chaosFile wraps a [File] and injects faults on reads, writes and sync.
type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	if cf.chaos.should(cf.chaos.config.ReadFailRate) {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	return cf.f.Read(buf)
}

func (cf *chaosFile) ReadAt(buf []byte, off int64) (int, error) {
	if cf.chaos.should(cf.chaos.config.ReadFailRate) {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	return cf.f.ReadAt(buf, off)
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	if cf.chaos.should(cf.chaos.config.WriteFailRate) {
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, cf.chaos.pickRandom(writeErrnos))
	}

	return cf.f.Write(data)
}

// WriteAt may write a strict prefix of data before failing, leaving the
// file with a torn record the way a real short write would.
func (cf *chaosFile) WriteAt(data []byte, off int64) (int, error) {
	if cf.chaos.should(cf.chaos.config.WriteFailRate) {
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, cf.chaos.pickRandom(writeErrnos))
	}

	if len(data) > 1 && cf.chaos.should(cf.chaos.config.PartialWriteRate) {
		cf.chaos.partialWrites.Add(1)

		cutoff := cf.chaos.randIntn(len(data)-1) + 1 // [1, len(data)-1]

		n, err := cf.f.WriteAt(data[:cutoff], off)
		if err != nil {
			return n, err
		}

		if cf.chaos.randFloat() < 0.1 {
			return n, &chaosError{Err: io.ErrShortWrite}
		}

		return n, pathError("write", cf.path, cf.chaos.pickRandom(writeErrnos))
	}

	return cf.f.WriteAt(data, off)
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}

func (cf *chaosFile) Sync() error {
	if cf.chaos.should(cf.chaos.config.SyncFailRate) {
		cf.chaos.syncFails.Add(1)

		return pathError("sync", cf.path, cf.chaos.pickRandom(writeErrnos))
	}

	return cf.f.Sync()
}

func (cf *chaosFile) Close() error {
	return cf.f.Close()
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
