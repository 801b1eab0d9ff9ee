package cli

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	b, err := ringbuf.Open(ringbuf.Options{
		Path:        filepath.Join(t.TempDir(), "buffer.ring"),
		Capacity:    3,
		PayloadSize: 8,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = b.Close() })

	var out, errOut bytes.Buffer

	return &repl{buf: b, io: NewIO(&out, &errOut)}, &out, &errOut
}

func Test_Repl_Runs_Commands_Until_EOF(t *testing.T) {
	t.Parallel()

	r, out, errOut := newTestRepl(t)

	input := strings.Join([]string{
		"add first",
		"add second one",
		"",
		"len",
		"peek",
		"ls",
		"pop",
		"bogus",
		"pop 5",
		"pop",
	}, "\n")

	err := r.run(context.Background(), &scanReader{scanner: newScanner(input)})
	require.NoError(t, err)

	assert.Equal(t, "2\nfirst\n0\tfirst\n1\tsecond o\nfirst\nsecond o\n", out.String())
	assert.Contains(t, errOut.String(), "unknown command: bogus")
	assert.Contains(t, errOut.String(), "ringbuf: empty")
}

func Test_Repl_Stops_When_Quit(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRepl(t)

	err := r.run(context.Background(), &scanReader{scanner: newScanner("add a\nquit\nadd b\n")})
	require.NoError(t, err)

	assert.Equal(t, 1, r.buf.Len())
}

func Test_Repl_Stops_When_Context_Cancelled(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRepl(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.run(ctx, &scanReader{scanner: newScanner("add a\n")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, r.buf.Len())
}

func Test_Repl_Exec_Validates_Arguments(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRepl(t)

	require.ErrorContains(t, r.exec("add"), "usage: add")
	require.ErrorContains(t, r.exec("pop zero"), "usage: pop")
	require.ErrorContains(t, r.exec("pop -1"), "usage: pop")
	require.ErrorIs(t, r.exec("exit"), errQuit)
	require.ErrorIs(t, r.exec("Q"), errQuit)
}

func Test_Repl_Command_Reads_Stdin_When_Not_A_Terminal(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)

	stdout, stderr, code := c.RunWithInput("add hello\nadd world\nls\n", "repl")
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, "0\thello\n1\tworld\n", stdout)
	assert.Equal(t, "2", c.MustRun("len"))
}

func newScanner(s string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(s))
}
