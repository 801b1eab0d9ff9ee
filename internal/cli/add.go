package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

var errNothingToAdd = errors.New("nothing to add (pass text arguments or pipe lines on stdin)")

// AddCmd returns the add command.
func AddCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("add", flag.ContinueOnError),
		Usage: "add [text]...",
		Short: "Append elements",
		Long: `Append each argument as one element. Without arguments, each line read
from stdin is appended. When the buffer is full the oldest element is
overwritten. Text longer than the payload size is truncated.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return sess.withBuffer(func(b *ringbuf.Buffer) error {
				if len(args) > 0 {
					return addAll(ctx, b, args)
				}

				return addLines(ctx, b, sess)
			})
		},
	}
}

func addAll(ctx context.Context, b *ringbuf.Buffer, texts []string) error {
	for _, text := range texts {
		err := ctx.Err()
		if err != nil {
			return err
		}

		err = b.Add(text)
		if err != nil {
			return err
		}
	}

	return nil
}

func addLines(ctx context.Context, b *ringbuf.Buffer, sess *session) error {
	if sess.in == nil {
		return errNothingToAdd
	}

	scanner := bufio.NewScanner(sess.in)

	added := 0

	for scanner.Scan() {
		err := addAll(ctx, b, []string{scanner.Text()})
		if err != nil {
			return err
		}

		added++
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	if added == 0 {
		return errNothingToAdd
	}

	return nil
}
