package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/config"
)

// New builds the process logger. Production logs are JSON so they can be
// shipped as-is; development logs use the text formatter.
func New(cfg config.Config) *logrus.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Config, out io.Writer) *logrus.Logger {
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	var f logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if cfg.Production() {
		f = &logrus.JSONFormatter{}
	}
	l := &logrus.Logger{
		Out:       out,
		Formatter: f,
		Hooks:     make(logrus.LevelHooks),
		Level:     lvl,
	}
	if cfg.RollbarToken != "" {
		l.AddHook(NewRollbarHook(cfg))
	}
	return l
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}
