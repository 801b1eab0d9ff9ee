// Fault injection tests.
//
// I/O failures are reported as ErrFileAccess. After a failed write the Buffer
// refuses further work until reopened, since memory and file may disagree. A
// file left torn by a failed write is either still consistent or rebuilt by
// the next Open.
//
// Technique: fs.Chaos wrapper with fixed seeds

package ringbuf_test

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/ringfile/pkg/fs"
	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

func Test_Open_Returns_ErrFileAccess_When_Open_Fails(t *testing.T) {
	t.Parallel()

	path := testPath(t)

	// Create the file first so Open goes straight to OpenFile.
	b := mustOpen(t, ringbuf.Options{Path: path})

	err := b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	chaos := fs.NewChaos(fs.NewReal(), 1, &fs.ChaosConfig{OpenFailRate: 1})

	_, err = ringbuf.Open(ringbuf.Options{Path: path, FS: chaos})
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Open err=%v, want ErrFileAccess", err)
	}

	if !fs.IsChaosErr(err) {
		t.Fatalf("Open err=%v does not wrap the injected error", err)
	}
}

func Test_Open_Returns_ErrFileAccess_When_Create_Fails(t *testing.T) {
	t.Parallel()

	chaos := fs.NewChaos(fs.NewReal(), 1, &fs.ChaosConfig{AtomicWriteFailRate: 1})

	_, err := ringbuf.Open(ringbuf.Options{Path: testPath(t), FS: chaos})
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Open err=%v, want ErrFileAccess", err)
	}
}

func Test_Open_Does_Not_Rebuild_When_Read_Fails(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	opts := ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2}

	b, err := ringbuf.Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	mustAdd(t, b, "aa", "bb")

	err = b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	before := mustReadFile(t, path)

	opts.FS = fs.NewChaos(fs.NewReal(), 7, &fs.ChaosConfig{ReadFailRate: 1})

	_, err = ringbuf.Open(opts)
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Open err=%v, want ErrFileAccess", err)
	}

	if diff := cmp.Diff(before, mustReadFile(t, path)); diff != "" {
		t.Fatalf("file changed after failed read (-before +after):\n%s", diff)
	}
}

func Test_Buffer_Keeps_Position_When_Write_Fails(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	chaos := fs.NewChaos(fs.NewReal(), 3, &fs.ChaosConfig{WriteFailRate: 1, SyncFailRate: 1})
	chaos.SetMode(fs.ChaosModeNoOp)

	opts := ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2, FS: chaos}

	b, err := ringbuf.Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	mustAdd(t, b, "aa", "bb")

	before := b.Info()

	chaos.SetMode(fs.ChaosModeActive)

	err = b.Add("cc")
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Add err=%v, want ErrFileAccess", err)
	}

	_, err = b.Remove()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Remove err=%v, want ErrFileAccess", err)
	}

	err = b.Clear()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Clear err=%v, want ErrFileAccess", err)
	}

	if diff := cmp.Diff(before, b.Info(), cmpRecovery); diff != "" {
		t.Fatalf("Info changed after failed writes (-before +after):\n%s", diff)
	}

	chaos.SetMode(fs.ChaosModeNoOp)

	err = b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	opts.FS = nil
	reopened := mustOpen(t, opts)

	if diff := cmp.Diff([]string{"aa", "bb"}, mustEntries(t, reopened)); diff != "" {
		t.Fatalf("entries after reopen (-want +got):\n%s", diff)
	}
}

func Test_Open_Yields_Consistent_File_When_Writes_Were_Torn(t *testing.T) {
	t.Parallel()

	for seed := range int64(25) {
		path := testPath(t)
		chaos := fs.NewChaos(fs.NewReal(), seed, &fs.ChaosConfig{
			WriteFailRate:    0.05,
			PartialWriteRate: 0.2,
			SyncFailRate:     0.05,
		})

		opts := ringbuf.Options{Path: path, Capacity: 4, PayloadSize: 3, FS: chaos}

		chaos.SetMode(fs.ChaosModeNoOp)

		b, err := ringbuf.Open(opts)
		if err != nil {
			t.Fatalf("seed %d: Open: %v", seed, err)
		}

		chaos.SetMode(fs.ChaosModeActive)

		failed := false

		for i := 0; i < 40 && !failed; i++ {
			if i%3 == 2 {
				_, err = b.Remove()
				if errors.Is(err, ringbuf.ErrEmpty) {
					err = nil
				}
			} else {
				err = b.Add(string(rune('a' + i%26)))
			}

			if err != nil {
				if !errors.Is(err, ringbuf.ErrFileAccess) {
					t.Fatalf("seed %d op %d: err=%v, want ErrFileAccess", seed, i, err)
				}

				failed = true
			}
		}

		chaos.SetMode(fs.ChaosModeNoOp)

		err = b.Close()
		if err != nil {
			t.Fatalf("seed %d: Close: %v", seed, err)
		}

		reopened, err := ringbuf.Open(opts)
		if err != nil {
			t.Fatalf("seed %d: reopen: %v", seed, err)
		}

		if reopened.Len() > reopened.Cap() {
			t.Fatalf("seed %d: Len()=%d > Cap()", seed, reopened.Len())
		}

		if got := countHeads(t, path); got != 1 {
			t.Fatalf("seed %d: %d heads after reopen (outcome %s)", seed, got, reopened.Recovery().Outcome)
		}

		// Whatever was recovered must keep working.
		mustAdd(t, reopened, "zz")

		err = reopened.Close()
		if err != nil {
			t.Fatalf("seed %d: Close: %v", seed, err)
		}
	}
}

func Test_Buffer_Refuses_Work_When_Wrap_Head_Write_Failed(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	fsys := &failNthWriteFS{FS: fs.NewReal()}
	opts := ringbuf.Options{Path: path, Capacity: 3, PayloadSize: 2, FS: fsys}

	b, err := ringbuf.Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Leaves [cc dd ee] with the head in slot 2, the last slot in the file.
	mustAdd(t, b, "aa", "bb", "cc", "dd", "ee")

	before := b.Info()
	if before.First != 2 {
		t.Fatalf("First=%d, want 2", before.First)
	}

	// Writing slot 2 succeeds and overwrites "cc"; the head flag for slot 0
	// is the second write and fails.
	fsys.failAfter(2)

	err = b.Add("ff")
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Add err=%v, want ErrFileAccess", err)
	}

	_, err = b.Entries()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Entries err=%v, want ErrFileAccess", err)
	}

	_, err = b.Peek()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Peek err=%v, want ErrFileAccess", err)
	}

	_, err = b.Remove()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Remove err=%v, want ErrFileAccess", err)
	}

	err = b.Add("gg")
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("second Add err=%v, want ErrFileAccess", err)
	}

	err = b.Clear()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Clear err=%v, want ErrFileAccess", err)
	}

	if diff := cmp.Diff(before, b.Info(), cmpRecovery); diff != "" {
		t.Fatalf("Info changed after failed write (-before +after):\n%s", diff)
	}

	if got := fsys.writes.Load(); got != 2 {
		t.Fatalf("%d WriteAt calls after failure, want 2", got)
	}

	err = b.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The file has no head left, so the next Open starts over.
	opts.FS = nil
	reopened := mustOpen(t, opts)

	if got := reopened.Recovery().Outcome; got != ringbuf.OutcomeRebuilt {
		t.Fatalf("Outcome=%s, want %s", got, ringbuf.OutcomeRebuilt)
	}

	if got := countHeads(t, path); got != 1 {
		t.Fatalf("%d heads after reopen, want 1", got)
	}

	mustAdd(t, reopened, "hh")

	if diff := cmp.Diff([]string{"hh"}, mustEntries(t, reopened)); diff != "" {
		t.Fatalf("entries after reopen (-want +got):\n%s", diff)
	}
}

func Test_Buffer_Refuses_Reads_When_Clear_Was_Torn(t *testing.T) {
	t.Parallel()

	chaos := fs.NewChaos(fs.NewReal(), 5, &fs.ChaosConfig{PartialWriteRate: 1})
	chaos.SetMode(fs.ChaosModeNoOp)

	b := mustOpen(t, ringbuf.Options{Path: testPath(t), Capacity: 4, PayloadSize: 2, FS: chaos})
	mustAdd(t, b, "aa", "bb", "cc")

	chaos.SetMode(fs.ChaosModeActive)

	err := b.Clear()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Clear err=%v, want ErrFileAccess", err)
	}

	if got := chaos.Stats().PartialWrites; got != 1 {
		t.Fatalf("PartialWrites=%d, want 1", got)
	}

	chaos.SetMode(fs.ChaosModeNoOp)

	_, err = b.Entries()
	if !errors.Is(err, ringbuf.ErrFileAccess) {
		t.Fatalf("Entries err=%v, want ErrFileAccess", err)
	}

	if got := b.Len(); got != 3 {
		t.Fatalf("Len()=%d, want 3", got)
	}
}

// failNthWriteFS hands out files whose n-th WriteAt (counted across all
// files, starting after failAfter) fails with EIO without writing.
type failNthWriteFS struct {
	fs.FS

	writes atomic.Int64
	failAt atomic.Int64
}

func (f *failNthWriteFS) failAfter(n int64) {
	f.writes.Store(0)
	f.failAt.Store(n)
}

func (f *failNthWriteFS) OpenFile(path string, flag int, perm os.FileMode) (fs.File, error) {
	file, err := f.FS.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &failNthWriteFile{File: file, fsys: f}, nil
}

type failNthWriteFile struct {
	fs.File

	fsys *failNthWriteFS
}

func (f *failNthWriteFile) WriteAt(data []byte, off int64) (int, error) {
	n := f.fsys.writes.Add(1)
	if at := f.fsys.failAt.Load(); at > 0 && n == at {
		return 0, &os.PathError{Op: "write", Path: "ring", Err: syscall.EIO}
	}

	return f.File.WriteAt(data, off)
}
