package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"racebot/internal/chat"
	"racebot/internal/races"
	"racebot/internal/registry"
)

// Races is the part of the registry the scheduler drives.
type Races interface {
	Races() []registry.RaceView
	StartRace(ctx context.Context, raceID int64) error
	EndRace(ctx context.Context, raceID int64) error
	Now() time.Time
}

type Scheduler struct {
	c        *cron.Cron
	spec     string
	races    Races
	notifier chat.Notifier
	log      zerolog.Logger
}

func New(spec string, rs Races, n chat.Notifier, log zerolog.Logger) (*Scheduler, error) {
	log = log.With().Str("component", "scheduler").Logger()
	s := &Scheduler{spec: spec, races: rs, notifier: n, log: log}
	cronLog := cron.PrintfLogger(&log)
	s.c = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	if _, err := s.c.AddFunc(spec, func() { s.Scan(context.Background()) }); err != nil {
		return nil, fmt.Errorf("scheduler spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info().Str("spec", s.spec).Msg("starting scheduler")
	s.c.Start()
}

// Stop stops the cron and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// Scan starts every race whose start time has passed and ends every race
// whose end time has passed. A race started in this scan is ended in the
// same scan when its end time has passed too. One race failing does not
// stop the others.
func (s *Scheduler) Scan(ctx context.Context) {
	now := s.races.Now()
	for _, v := range s.races.Races() {
		if v.StartDue(now) {
			if err := s.races.StartRace(ctx, v.ID); err != nil {
				s.fail(ctx, v, "start", err)
				continue
			}
		}
		if v.EndDue(now) {
			if err := s.races.EndRace(ctx, v.ID); err != nil {
				s.fail(ctx, v, "end", err)
			}
		}
	}
}

func (s *Scheduler) fail(ctx context.Context, v registry.RaceView, op string, err error) {
	if benign(err) {
		s.log.Debug().Err(err).Int64("race", v.ID).Str("op", op).Msg("skip race")
		return
	}
	s.log.Error().Err(err).Int64("race", v.ID).Str("op", op).Msg("scheduled transition failed")
	s.notifier.NotifyOperator(ctx, fmt.Sprintf("Scheduled %s of %s failed: %v", op, v.Name, err))
}

// benign errors mean another path already moved the race along.
func benign(err error) bool {
	return errors.Is(err, races.ErrAlreadyActiveOrFinished) ||
		errors.Is(err, races.ErrNotActive) ||
		errors.Is(err, races.ErrUnknownRace)
}
