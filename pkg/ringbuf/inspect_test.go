package ringbuf_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

func Test_Inspect_Reports_Absent_When_File_Missing(t *testing.T) {
	t.Parallel()

	path := testPath(t)

	report, err := ringbuf.Inspect(ringbuf.Options{Path: path})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if report.State != ringbuf.StateAbsent || report.Header != nil {
		t.Fatalf("report=%+v, want absent without header", report)
	}

	_, err = os.Stat(path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Inspect created the file: %v", err)
	}
}

func Test_Inspect_Reports_Position_When_File_Consistent(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	opts := ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2}

	b := mustOpen(t, opts)
	mustAdd(t, b, "aa", "bb", "cc", "dd")

	// Inspect takes no lock, so it works while the buffer is open.
	report, err := ringbuf.Inspect(opts)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if report.State != ringbuf.StateConsistent || report.First != 1 || report.Len != 3 {
		t.Fatalf("report=%+v, want consistent first=1 len=3", report)
	}

	want := ringbuf.HeaderFields{Magic: "RBF ", Version: 1, SlotSize: 4, Capacity: 3}
	if report.Header == nil || *report.Header != want {
		t.Fatalf("Header=%+v, want %+v", report.Header, want)
	}

	if report.FileSize != 16+3*4 {
		t.Fatalf("FileSize=%d", report.FileSize)
	}

	if !strings.Contains(report.String(), "ok (first=1 len=3)") {
		t.Fatalf("String()=%q", report.String())
	}
}

func Test_Inspect_Reports_Rejected_Without_Modifying_File(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	opts := ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2}

	b, err := ringbuf.Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	mutateFile(t, path, func(data []byte) { data[0] = 'X' })

	before := mustReadFile(t, path)

	report, err := ringbuf.Inspect(opts)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if report.State != ringbuf.StateRejected {
		t.Fatalf("State=%s, want rejected", report.State)
	}

	var rejected *ringbuf.RejectError
	if !errors.As(report.Reason, &rejected) || rejected.Reached != ringbuf.StateAbsent {
		t.Fatalf("Reason=%v, want *RejectError reached absent", report.Reason)
	}

	if report.Header == nil || report.Header.Magic != "XBF " {
		t.Fatalf("Header=%+v, want raw magic", report.Header)
	}

	if string(mustReadFile(t, path)) != string(before) {
		t.Fatal("Inspect modified the file")
	}
}

func Test_Inspect_Reports_Rejected_When_Layout_Differs(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	mustOpen(t, ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2})

	report, err := ringbuf.Inspect(ringbuf.Options{Path: path, Capacity: 4, PayloadSize: 2})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if report.State != ringbuf.StateRejected {
		t.Fatalf("State=%s, want rejected", report.State)
	}
}
