package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/calvinalkan/ringfile/internal/config"
)

// Log file rotation limits.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newLogger builds the logger for one invocation. Without a log file it
// writes text to errOut; with one it writes through a rotating lumberjack
// writer. The returned func closes the log file, if any.
func newLogger(cfg config.Config, errOut io.Writer) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.SetLevel(cfg.Level())
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: cfg.LogFileAbs == "",
		FullTimestamp:    true,
	})

	if cfg.LogFileAbs == "" {
		log.SetOutput(errOut)

		return log, func() error { return nil }, nil
	}

	err := os.MkdirAll(filepath.Dir(cfg.LogFileAbs), 0o755)
	if err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   cfg.LogFileAbs,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
	}
	log.SetOutput(w)

	return log, w.Close, nil
}
