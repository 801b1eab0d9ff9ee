package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// InfoCmd returns the info command.
func InfoCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info",
		Short: "Show buffer layout and position",
		Long:  "Open the buffer (creating or rebuilding it if needed) and print its layout and position.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				printInfo(io, b.Info())

				return nil
			})
		},
	}
}

func printInfo(io *IO, info ringbuf.Info) {
	io.Println("path=" + info.Path)
	io.Printf("capacity=%d\n", info.Capacity)
	io.Printf("payload_size=%d\n", info.PayloadSize)
	io.Printf("slot_size=%d\n", info.SlotSize)
	io.Printf("file_size=%d\n", info.FileSize)
	io.Printf("first=%d\n", info.First)
	io.Printf("last=%d\n", info.Last)
	io.Printf("len=%d\n", info.Len)
	io.Printf("writeback=%s\n", info.Writeback)
	io.Printf("opened=%s\n", info.Recovery.Outcome)

	if info.Recovery.Reason != nil {
		io.Printf("rebuild_reason=%v\n", info.Recovery.Reason)
	}
}
