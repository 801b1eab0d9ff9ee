package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// PopCmd returns the pop command.
func PopCmd(sess *session) *Command {
	fs := flag.NewFlagSet("pop", flag.ContinueOnError)
	fs.IntP("count", "n", 1, "Remove up to `N` elements")

	return &Command{
		Flags: fs,
		Usage: "pop [-n N]",
		Short: "Remove and print the oldest elements",
		Long: `Remove the oldest element and print it. With -n, remove up to N elements,
oldest first. Fails if the buffer is empty.`,
		Exec: func(_ context.Context, io *IO, _ []string) error {
			count, _ := fs.GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				return execPop(io, b, count)
			})
		},
	}
}

func execPop(io *IO, b *ringbuf.Buffer, count int) error {
	for i := range count {
		text, err := b.Remove()
		if errors.Is(err, ringbuf.ErrEmpty) && i > 0 {
			return nil
		}

		if err != nil {
			return err
		}

		io.Println(text)
	}

	return nil
}
