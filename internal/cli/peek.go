package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// PeekCmd returns the peek command.
func PeekCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("peek", flag.ContinueOnError),
		Usage: "peek",
		Short: "Print the oldest element without removing it",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				text, err := b.Peek()
				if err != nil {
					return err
				}

				io.Println(text)

				return nil
			})
		},
	}
}
