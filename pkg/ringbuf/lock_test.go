package ringbuf_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

func Test_Open_Returns_ErrBusy_When_File_Already_Open(t *testing.T) {
	t.Parallel()

	path := testPath(t)

	first := mustOpen(t, ringbuf.Options{Path: path})
	mustAdd(t, first, "aa")

	_, err := ringbuf.Open(ringbuf.Options{Path: path})
	if !errors.Is(err, ringbuf.ErrBusy) {
		t.Fatalf("second Open err=%v, want ErrBusy", err)
	}

	err = first.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := mustOpen(t, ringbuf.Options{Path: path})

	if second.Len() != 1 {
		t.Fatalf("Len()=%d after lock release, want 1", second.Len())
	}
}

func Test_Open_Allows_Second_Handle_When_Locking_Disabled(t *testing.T) {
	t.Parallel()

	path := testPath(t)
	opts := ringbuf.Options{Path: path, DisableLocking: true}

	a := mustOpen(t, opts)
	b := mustOpen(t, opts)

	mustAdd(t, a, "aa")

	if b.Len() != 0 {
		t.Fatalf("unrelated handle Len()=%d, want 0", b.Len())
	}
}

func Test_Open_Rebuild_Does_Not_Bypass_Lock(t *testing.T) {
	t.Parallel()

	path := testPath(t)

	holder := mustOpen(t, ringbuf.Options{Path: path, Capacity: 3})

	// A different layout would rebuild the file, but the lock holder wins.
	_, err := ringbuf.Open(ringbuf.Options{Path: path, Capacity: 9})
	if !errors.Is(err, ringbuf.ErrBusy) {
		t.Fatalf("Open err=%v, want ErrBusy", err)
	}

	mustAdd(t, holder, "ok")
}
