package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// LsCmd returns the ls command.
func LsCmd(sess *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.BoolP("number", "n", false, "Prefix each element with its position (0 = oldest)")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List elements",
		Long:  "List all elements, oldest first, one per line.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			number, _ := fs.GetBool("number")

			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				return execLs(io, b, number)
			})
		},
	}
}

func execLs(io *IO, b *ringbuf.Buffer, number bool) error {
	entries, err := b.Entries()
	if err != nil {
		return err
	}

	for i, text := range entries {
		if number {
			io.Printf("%d\t%s\n", i, text)
		} else {
			io.Println(text)
		}
	}

	return nil
}
