package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coursepulse/coursepulse-backend/internal/logger"
)

// Scheduler is the injected timer capability. The jobs registered with it
// stay plain functions of (ctx, date) and are independently runnable by
// hand, the scheduler only decides when they fire.
type Scheduler interface {
	ScheduleDaily(name string, fn func(ctx context.Context, day time.Time)) error
	ScheduleWeekly(name string, fn func(ctx context.Context)) error
	Start()
	Stop()
}

type cronScheduler struct {
	log  *logger.Logger
	cron *cron.Cron
}

func NewCronScheduler(log *logger.Logger) Scheduler {
	return &cronScheduler{
		log:  log.With("service", "CronScheduler"),
		cron: cron.New(cron.WithLocation(time.UTC)),
	}
}

// ScheduleDaily fires at 00:10 UTC and passes the previous calendar day,
// leaving slack for late events to land before the day is folded.
func (s *cronScheduler) ScheduleDaily(name string, fn func(ctx context.Context, day time.Time)) error {
	wrapped := s.skipOverlapping(name, func(ctx context.Context) {
		day := time.Now().UTC().AddDate(0, 0, -1)
		fn(ctx, day)
	})
	_, err := s.cron.AddFunc("10 0 * * *", wrapped)
	return err
}

// ScheduleWeekly fires Sunday 03:00 UTC.
func (s *cronScheduler) ScheduleWeekly(name string, fn func(ctx context.Context)) error {
	wrapped := s.skipOverlapping(name, fn)
	_, err := s.cron.AddFunc("0 3 * * 0", wrapped)
	return err
}

// skipOverlapping drops a tick while the previous invocation of the same
// job is still running; the job catches up on its next scheduled run.
func (s *cronScheduler) skipOverlapping(name string, fn func(ctx context.Context)) func() {
	var running atomic.Bool
	jobLog := s.log.With("job", name)
	return func() {
		if !running.CompareAndSwap(false, true) {
			jobLog.Warn("previous run still in progress, skipping tick")
			return
		}
		defer running.Store(false)
		start := time.Now()
		jobLog.Info("job tick started")
		fn(context.Background())
		jobLog.Info("job tick finished", "elapsed", time.Since(start))
	}
}

func (s *cronScheduler) Start() {
	s.log.Info("Starting scheduler...")
	s.cron.Start()
}

func (s *cronScheduler) Stop() {
	s.log.Info("Stopping scheduler...")
	<-s.cron.Stop().Done()
}
