package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// ClearCmd returns the clear command.
func ClearCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage: "clear",
		Short: "Remove all elements",
		Exec: func(_ context.Context, _ *IO, _ []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				return b.Clear()
			})
		},
	}
}
