package filegc

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-classroom/internal/storage"
)

const (
	defaultBatch       = 100
	defaultMaxAttempts = 5
)

// Sweeper drains the outbox into blob deletions.
type Sweeper struct {
	outbox      Outbox
	blobs       storage.BlobStore
	log         logrus.FieldLogger
	every       time.Duration
	batch       int
	maxAttempts int
}

func NewSweeper(outbox Outbox, blobs storage.BlobStore, log logrus.FieldLogger, every time.Duration) *Sweeper {
	if every <= 0 {
		every = time.Minute
	}
	return &Sweeper{
		outbox:      outbox,
		blobs:       blobs,
		log:         log.WithField("component", "filegc"),
		every:       every,
		batch:       defaultBatch,
		maxAttempts: defaultMaxAttempts,
	}
}

// Start sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.WithField("interval", s.every).Info("file sweeper started")
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("file sweeper stopping")
			return
		case <-t.C:
			if _, _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("file sweep failed")
			}
		}
	}
}

// SweepOnce processes one batch. A key already missing from the store
// counts as deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (deleted, failed int, err error) {
	jobs, err := s.outbox.Pending(ctx, s.batch)
	if err != nil {
		return 0, 0, err
	}
	for _, j := range jobs {
		derr := s.blobs.Delete(j.Key)
		if derr == nil || errors.Is(derr, storage.ErrNotExist) {
			if err := s.outbox.MarkDone(ctx, j.ID); err != nil {
				return deleted, failed, err
			}
			deleted++
			continue
		}
		failed++
		giveUp := j.Attempts+1 >= s.maxAttempts
		s.log.WithError(derr).WithFields(logrus.Fields{"key": j.Key, "attempt": j.Attempts + 1, "give_up": giveUp}).
			Warn("file delete failed")
		if err := s.outbox.MarkFailed(ctx, j.ID, derr, giveUp); err != nil {
			return deleted, failed, err
		}
	}
	return deleted, failed, nil
}
