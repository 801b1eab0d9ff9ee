package ringbuf

import (
	"errors"
	"fmt"
	"os"
)

// Report is the result of a read-only [Inspect].
type Report struct {
	Path string

	// State is StateAbsent (no regular file), StateConsistent or StateRejected.
	State ValidationState

	// Reason is the *RejectError when State is StateRejected.
	Reason error

	// FileSize is the size on disk, 0 when absent.
	FileSize int64

	// Header holds the raw header fields when at least headerSize bytes were
	// readable, regardless of whether they match the expected layout.
	Header *HeaderFields

	// First and Len are the recovered position when State is StateConsistent.
	First int
	Len   int
}

// HeaderFields are the raw values stored in a file header.
type HeaderFields struct {
	Magic    string
	Version  uint32
	SlotSize uint32
	Capacity uint32
}

// Inspect runs the open-time validator against opts.Path without creating,
// locking, or rebuilding anything. Capacity and PayloadSize are the expected
// layout, defaulted like in [Open].
//
// A missing or rejected file is reported in [Report.State], not as an error.
// Errors are [ErrInvalidInput] or [ErrFileAccess].
func Inspect(opts Options) (Report, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return Report{}, err
	}

	path := opts.Path
	report := Report{Path: path, State: StateAbsent}

	info, err := opts.FS.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return report, nil
	}

	if err != nil {
		return Report{}, fileAccess("stat", path, err)
	}

	if !info.Mode().IsRegular() {
		return report, nil
	}

	f, err := opts.FS.Open(path)
	if err != nil {
		return Report{}, fileAccess("open", path, err)
	}
	defer f.Close()

	report.FileSize = info.Size()

	if report.FileSize >= headerSize {
		buf := make([]byte, headerSize)

		_, err = f.ReadAt(buf, 0)
		if err != nil {
			return Report{}, fileAccess("read", path, err)
		}

		h := decodeHeader(buf)
		report.Header = &HeaderFields{
			Magic:    string(h.Magic[:]),
			Version:  h.Version,
			SlotSize: h.SlotSize,
			Capacity: h.Capacity,
		}
	}

	scan, err := validateFile(f, report.FileSize, newLayout(opts.Capacity, opts.PayloadSize))

	var rejected *RejectError

	switch {
	case errors.As(err, &rejected):
		report.State = StateRejected
		report.Reason = rejected
	case err != nil:
		return Report{}, fileAccess("read", path, err)
	default:
		report.State = StateConsistent
		report.First = int(scan.first)
		report.Len = scan.size
	}

	return report, nil
}

// String formats the report for humans.
func (r Report) String() string {
	switch r.State {
	case StateConsistent:
		return fmt.Sprintf("%s: ok (first=%d len=%d)", r.Path, r.First, r.Len)
	case StateRejected:
		return fmt.Sprintf("%s: %v", r.Path, r.Reason)
	default:
		return fmt.Sprintf("%s: %s", r.Path, r.State)
	}
}
