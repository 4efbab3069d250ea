package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"EmaScreen/internal/domain/models"
	"EmaScreen/internal/usecase"
	"EmaScreen/pkg/logger"
)

// Scheduler triggers update runs on a cron expression, normally shortly
// after the session cutoff on trading days. The updater itself decides
// whether a run is actually due, so overlapping or early firings are safe.
type Scheduler struct {
	cron    *cron.Cron
	updater *usecase.Updater
	logger  *logger.Logger
	spec    string
	onStart bool
}

// New creates a scheduler firing on the given 6-field cron spec (seconds
// included). When runOnStart is set a trigger is also attempted right after
// Start, which is how a crashed run resumes without waiting a day.
func New(spec string, runOnStart bool, updater *usecase.Updater, loc *time.Location, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		updater: updater,
		logger:  log,
		spec:    spec,
		onStart: runOnStart,
	}
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins cron dispatch.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", logger.String("cron", s.spec))
	if s.onStart {
		go s.fire()
	}
}

// Stop halts dispatch and waits for an in-flight firing to return. The
// background run itself keeps going; it is owned by the updater.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) fire() {
	result, err := s.updater.TriggerUpdate(context.Background())
	switch {
	case errors.Is(err, models.ErrRunActive):
		s.logger.Warn("scheduled trigger skipped, run already active")
	case err != nil:
		s.logger.Error("scheduled trigger failed", logger.Error(err))
	case !result.Started:
		s.logger.Info("scheduled trigger skipped", logger.String("reason", result.Reason))
	default:
		s.logger.Info("scheduled run started", logger.String("reason", result.Reason))
	}
}
