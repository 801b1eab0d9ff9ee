package ringbuf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ValidationState is the progress of the open-time validator.
//
//	Absent ──header ok──▶ HeaderChecked ──slots ok──▶ StructurallyConsistent
//	   │                      │
//	   └──────mismatch────────┴──────────▶ Rejected
type ValidationState uint8

const (
	// StateAbsent: no usable file yet (missing, not regular, or header unchecked).
	StateAbsent ValidationState = iota

	// StateHeaderChecked: header and file length match the expected layout.
	StateHeaderChecked

	// StateConsistent: slot flags satisfy all structural invariants.
	StateConsistent

	// StateRejected: a check failed; the file will be rebuilt.
	StateRejected
)

func (s ValidationState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateHeaderChecked:
		return "header-checked"
	case StateConsistent:
		return "structurally-consistent"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("ValidationState(%d)", uint8(s))
	}
}

// scanResult is the in-memory position restored from a consistent file.
type scanResult struct {
	first index
	size  int
}

// maxScanBufferSize bounds the read buffer used while scanning slots.
const maxScanBufferSize = 64 << 10

// validateFile runs the header and slot checks against r, a file of the given
// size. Structural failures return a *RejectError; read failures are returned
// as-is so callers don't destroy a file they merely failed to read.
func validateFile(r io.ReaderAt, size int64, l layout) (scanResult, error) {
	err := checkHeader(r, size, l)
	if err != nil {
		return scanResult{}, err
	}

	return scanSlots(r, l)
}

func checkHeader(r io.ReaderAt, size int64, l layout) error {
	if size < headerSize {
		return rejectf(StateAbsent, "file size %d is less than header size %d", size, headerSize)
	}

	buf := make([]byte, headerSize)

	_, err := r.ReadAt(buf, 0)
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	got := decodeHeader(buf)
	want := newHeader(l)

	if got.Magic != want.Magic {
		return rejectf(StateAbsent, "invalid magic (expected %q, found %q)", want.Magic[:], got.Magic[:])
	}

	if got.Version != want.Version {
		return rejectf(StateAbsent, "version mismatch (expected %d, found %d)", want.Version, got.Version)
	}

	if got.SlotSize != want.SlotSize {
		return rejectf(StateAbsent, "wrong slot size (expected %d, found %d)", want.SlotSize, got.SlotSize)
	}

	if got.Capacity != want.Capacity {
		return rejectf(StateAbsent, "wrong capacity (expected %d, found %d)", want.Capacity, got.Capacity)
	}

	if size != l.fileSize() {
		return rejectf(StateAbsent, "wrong file size (expected %d, found %d)", l.fileSize(), size)
	}

	return nil
}

// scanSlots streams every slot once, then checks the head marker and the
// contiguity of the valid run.
func scanSlots(r io.ReaderAt, l layout) (scanResult, error) {
	slotSize := int64(l.slotSize())
	region := int64(l.capacity) * slotSize

	br := bufio.NewReaderSize(io.NewSectionReader(r, headerSize, region), int(min(region, maxScanBufferSize)))
	rec := make([]byte, slotSize)
	states := make([]slotState, l.capacity)

	head := index(-1)
	heads := 0

	for off := int64(headerSize); off < headerSize+region; off += slotSize {
		_, err := io.ReadFull(br, rec)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return scanResult{}, rejectf(StateHeaderChecked, "slot region truncated at offset %d", off)
			}

			return scanResult{}, fmt.Errorf("read slots: %w", err)
		}

		i := l.offsetToIndex(off)

		state, ok := decodeFlags(rec[0])
		if !ok {
			return scanResult{}, rejectf(StateHeaderChecked, "slot %d has reserved flag bits set (0x%02x)", i, rec[0])
		}

		states[i] = state

		if state.head() {
			heads++
			head = i
		}
	}

	switch {
	case heads == 0:
		return scanResult{}, rejectf(StateHeaderChecked, "first element not found")
	case heads > 1:
		return scanResult{}, rejectf(StateHeaderChecked, "multiple first elements found (%d)", heads)
	}

	run := 0
	for run < l.capacity && states[l.advance(head, run)].valid() {
		run++
	}

	for k := run; k < l.capacity; k++ {
		if i := l.advance(head, k); states[i].valid() {
			return scanResult{}, rejectf(StateHeaderChecked,
				"buffer is inconsistent: slot %d is valid outside the run of %d starting at %d", i, run, head)
		}
	}

	return scanResult{first: head, size: run}, nil
}
