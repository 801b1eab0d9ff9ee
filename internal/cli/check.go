package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// CheckCmd returns the check command.
func CheckCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("check", flag.ContinueOnError),
		Usage: "check",
		Short: "Validate the buffer file without changing it",
		Long: `Run the open-time validation against the buffer file without creating,
locking or rebuilding it. Exits 1 if the file would be rebuilt on next open.`,
		Exec: func(_ context.Context, io *IO, _ []string) error {
			report, err := ringbuf.Inspect(sess.options())
			if err != nil {
				return err
			}

			execCheck(io, report)

			return nil
		},
	}
}

func execCheck(io *IO, report ringbuf.Report) {
	io.Println("path=" + report.Path)
	io.Printf("state=%s\n", report.State)

	if h := report.Header; h != nil {
		io.Printf("magic=%q\n", h.Magic)
		io.Printf("version=%d\n", h.Version)
		io.Printf("slot_size=%d\n", h.SlotSize)
		io.Printf("capacity=%d\n", h.Capacity)
	}

	switch report.State {
	case ringbuf.StateConsistent:
		io.Printf("first=%d\n", report.First)
		io.Printf("len=%d\n", report.Len)
	case ringbuf.StateRejected:
		io.Printf("reason=%v\n", report.Reason)
		io.Warn("buffer file fails validation", "the next command that opens it will discard its contents")
	}
}
