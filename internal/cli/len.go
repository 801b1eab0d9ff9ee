package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// LenCmd returns the len command.
func LenCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("len", flag.ContinueOnError),
		Usage: "len",
		Short: "Print the number of elements",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				io.Println(b.Len())

				return nil
			})
		},
	}
}
