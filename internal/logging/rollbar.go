package logging

import (
	"errors"

	"github.com/rollbar/rollbar-go"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/config"
)

// RollbarHook forwards error-and-above entries to Rollbar.
type RollbarHook struct {
	client *rollbar.Client
}

func NewRollbarHook(cfg config.Config) *RollbarHook {
	c := rollbar.NewAsync(cfg.RollbarToken, string(cfg.Env), "", "", "")
	return &RollbarHook{client: c}
}

func (h *RollbarHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *RollbarHook) Fire(e *logrus.Entry) error {
	extras := make(map[string]interface{}, len(e.Data))
	var cause error
	for k, v := range e.Data {
		if k == logrus.ErrorKey {
			if err, ok := v.(error); ok {
				cause = err
				continue
			}
		}
		extras[k] = v
	}
	if cause == nil {
		cause = errors.New(e.Message)
	} else {
		extras["message"] = e.Message
	}
	lvl := rollbar.ERR
	if e.Level <= logrus.FatalLevel {
		lvl = rollbar.CRIT
	}
	h.client.ErrorWithExtras(lvl, cause, extras)
	return nil
}

// Close flushes queued items.
func (h *RollbarHook) Close() {
	h.client.Close()
}
