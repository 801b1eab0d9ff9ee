package ringbuf_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// On-disk constants restated here so tests check the format independently of
// the package's own encoder.
const (
	testHeaderSize = 16
	testFlagValid  = 0x01
	testFlagFirst  = 0x02
)

func testPath(tb testing.TB) string {
	tb.Helper()

	return filepath.Join(tb.TempDir(), "buffer.ring")
}

func mustOpen(tb testing.TB, opts ringbuf.Options) *ringbuf.Buffer {
	tb.Helper()

	b, err := ringbuf.Open(opts)
	if err != nil {
		tb.Fatalf("Open(%+v): %v", opts, err)
	}

	tb.Cleanup(func() { _ = b.Close() })

	return b
}

func mustAdd(tb testing.TB, b *ringbuf.Buffer, values ...string) {
	tb.Helper()

	for _, v := range values {
		err := b.Add(v)
		if err != nil {
			tb.Fatalf("Add(%q): %v", v, err)
		}
	}
}

func mustEntries(tb testing.TB, b *ringbuf.Buffer) []string {
	tb.Helper()

	entries, err := b.Entries()
	if err != nil {
		tb.Fatalf("Entries(): %v", err)
	}

	return entries
}

func drain(tb testing.TB, b *ringbuf.Buffer) []string {
	tb.Helper()

	out := []string{}

	for b.Len() > 0 {
		v, err := b.Remove()
		if err != nil {
			tb.Fatalf("Remove(): %v", err)
		}

		out = append(out, v)
	}

	return out
}

func mustReadFile(tb testing.TB, path string) []byte {
	tb.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("ReadFile(%s): %v", path, err)
	}

	return data
}

// mutateFile applies mutate to the file contents in place.
func mutateFile(tb testing.TB, path string, mutate func([]byte)) {
	tb.Helper()

	data := mustReadFile(tb, path)
	mutate(data)

	err := os.WriteFile(path, data, 0o644)
	if err != nil {
		tb.Fatalf("WriteFile(%s): %v", path, err)
	}
}

// diskFlags returns the flag byte of every slot, read straight from disk.
func diskFlags(tb testing.TB, path string) []byte {
	tb.Helper()

	data := mustReadFile(tb, path)
	if len(data) < testHeaderSize {
		tb.Fatalf("file too short: %d", len(data))
	}

	slotSize := int(binary.BigEndian.Uint32(data[8:12]))
	capacity := int(binary.BigEndian.Uint32(data[12:16]))

	flags := make([]byte, capacity)
	for i := range capacity {
		flags[i] = data[testHeaderSize+i*slotSize]
	}

	return flags
}

// countHeads returns how many slots on disk carry the FIRST flag.
func countHeads(tb testing.TB, path string) int {
	tb.Helper()

	n := 0

	for _, f := range diskFlags(tb, path) {
		if f&testFlagFirst != 0 {
			n++
		}
	}

	return n
}

// cmpRecovery compares Recovery by outcome only; Reason is an error value.
var cmpRecovery = cmp.Comparer(func(a, b ringbuf.Recovery) bool {
	return a.Outcome == b.Outcome && (a.Reason == nil) == (b.Reason == nil)
})
