package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

const replPrompt = "ringy> "

var replCommands = []string{"add", "pop", "peek", "ls", "len", "info", "clear", "help", "exit", "quit"}

// ReplCmd returns the repl command.
func ReplCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage: "repl",
		Short: "Interactive shell on an open buffer",
		Long: `Open the buffer once and read commands interactively. The buffer stays
locked until the shell exits. Type 'help' for available commands.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				lines := newLineReader(sess)
				defer lines.Close()

				r := &repl{buf: b, io: o}

				return r.run(ctx, lines)
			})
		},
	}
}

// lineReader yields input lines. io.EOF ends the session.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

func newLineReader(sess *session) lineReader {
	if f, ok := sess.in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		return newLinerReader(historyFile(sess.env))
	}

	return &scanReader{scanner: bufio.NewScanner(orEmpty(sess.in))}
}

func orEmpty(r io.Reader) io.Reader {
	if r == nil {
		return strings.NewReader("")
	}

	return r
}

// linerReader reads from the terminal with history and completion.
type linerReader struct {
	state   *liner.State
	history string
}

func newLinerReader(history string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) []string {
		var out []string

		for _, c := range replCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}

		return out
	})

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerReader{state: state, history: history}
}

func (l *linerReader) Prompt(prompt string) (string, error) {
	line, err := l.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	if err == nil && strings.TrimSpace(line) != "" {
		l.state.AppendHistory(line)
	}

	return line, err
}

func (l *linerReader) Close() error {
	if l.history != "" {
		if f, err := os.Create(l.history); err == nil {
			_, _ = l.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return l.state.Close()
}

// historyFile returns the path to the history file, or "" without a home.
func historyFile(env map[string]string) string {
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".ringy_history")
	}

	return ""
}

// scanReader reads lines from a non-terminal reader; prompts are not shown.
type scanReader struct {
	scanner *bufio.Scanner
}

func (s *scanReader) Prompt(string) (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}

	err := s.scanner.Err()
	if err != nil {
		return "", err
	}

	return "", io.EOF
}

func (s *scanReader) Close() error { return nil }

type repl struct {
	buf *ringbuf.Buffer
	io  *IO
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context, lines lineReader) error {
	for {
		err := ctx.Err()
		if err != nil {
			return err
		}

		line, err := lines.Prompt(replPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		err = r.exec(line)
		if errors.Is(err, errQuit) {
			return nil
		}

		// Command errors are reported and the session continues; I/O errors
		// end it since the buffer may no longer match the file.
		if err != nil {
			r.io.ErrPrintln("error:", err)

			if errors.Is(err, ringbuf.ErrFileAccess) {
				return err
			}
		}
	}
}

// exec runs one REPL line. Returns errQuit to end the session.
func (r *repl) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "add":
		if rest == "" {
			return errors.New("usage: add <text>")
		}

		return r.buf.Add(rest)

	case "pop":
		count := 1

		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 1 {
				return fmt.Errorf("usage: pop [count], got %q", rest)
			}

			count = n
		}

		return execPop(r.io, r.buf, count)

	case "peek":
		text, err := r.buf.Peek()
		if err != nil {
			return err
		}

		r.io.Println(text)

		return nil

	case "ls":
		return execLs(r.io, r.buf, true)

	case "len":
		r.io.Println(r.buf.Len())

		return nil

	case "info":
		printInfo(r.io, r.buf.Info())

		return nil

	case "clear":
		return r.buf.Clear()

	case "help", "?":
		r.printHelp()

		return nil

	case "exit", "quit", "q":
		return errQuit

	default:
		return fmt.Errorf("unknown command: %s (type 'help')", cmd)
	}
}

func (r *repl) printHelp() {
	r.io.Println(`Commands:
  add <text>    Append the rest of the line as one element
  pop [count]   Remove and print the oldest element(s)
  peek          Print the oldest element
  ls            List elements with positions
  len           Print the element count
  info          Show layout and position
  clear         Remove all elements
  help          Show this help
  exit / quit   Leave the shell`)
}
