package cli

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/ringfile/internal/config"
	"github.com/calvinalkan/ringfile/pkg/ringbuf"
)

// session is the per-invocation state shared by all commands.
type session struct {
	cfg config.Config
	log logrus.FieldLogger
	in  io.Reader
	env map[string]string
}

func (s *session) options() ringbuf.Options {
	opts := s.cfg.Options()
	opts.Logger = s.log

	return opts
}

// withBuffer opens the configured buffer, runs fn and closes it again.
func (s *session) withBuffer(fn func(b *ringbuf.Buffer) error) error {
	b, err := ringbuf.Open(s.options())
	if err != nil {
		return err
	}

	if rec := b.Recovery(); rec.Outcome == ringbuf.OutcomeRebuilt {
		s.log.WithError(rec.Reason).Warn("buffer file was rebuilt, previous contents discarded")
	}

	err = fn(b)

	return errors.Join(err, b.Close())
}
