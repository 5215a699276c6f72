package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	JOB_NIGHTLY_RUN   = "nightly_run"
	JOB_MORNING_CHECK = "morning_check"
)

// TriggerFunc is fired by a cron trigger.
type TriggerFunc func(ctx context.Context) error

type triggerJob struct {
	name   string
	fn     TriggerFunc
	logger *zap.Logger
}

func (j *triggerJob) Execute(ctx context.Context) error {
	j.logger.Info("scheduled job fired", zap.String("job", j.name))
	if err := j.fn(ctx); err != nil {
		j.logger.Error("scheduled job failed", zap.String("job", j.name), zap.Error(err))
		return err
	}
	return nil
}

func (j *triggerJob) Description() string {
	return j.name
}

// Scheduler fires the nightly charge cycle and the morning check on their
// cron expressions.
type Scheduler struct {
	sched  quartz.Scheduler
	loc    *time.Location
	logger *zap.Logger
}

func New(logger *zap.Logger) (*Scheduler, error) {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		sched:  sched,
		loc:    time.Local,
		logger: logger.With(zap.String("component", "scheduler")),
	}, nil
}

// Schedule registers both jobs. Cron expressions use the seconds-first
// format ("0 0 22 * * *").
func (s *Scheduler) Schedule(cfg config.ScheduleConfig, nightly, morning TriggerFunc) error {
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("schedule timezone: %w", err)
	}
	s.loc = loc
	if err := s.add(JOB_NIGHTLY_RUN, cfg.NightlyCron, nightly); err != nil {
		return err
	}
	if morning != nil && cfg.MorningCron != "" {
		if err := s.add(JOB_MORNING_CHECK, cfg.MorningCron, morning); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) add(name, expression string, fn TriggerFunc) error {
	trigger, err := quartz.NewCronTriggerWithLoc(expression, s.loc)
	if err != nil {
		return fmt.Errorf("%s cron %q: %w", name, expression, err)
	}
	job := &triggerJob{name: name, fn: fn, logger: s.logger}
	if err := s.sched.ScheduleJob(quartz.NewJobDetail(job, quartz.NewJobKey(name)), trigger); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("cron", expression), zap.String("tz", s.loc.String()))
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.sched.Start(ctx)
}

func (s *Scheduler) Stop(ctx context.Context) {
	s.sched.Stop()
	s.sched.Wait(ctx)
}

// ActorTrigger sends msg to the charger actor and waits for its response.
func ActorTrigger(root *actor.RootContext, pid *actor.PID, msg func() any, timeout time.Duration) TriggerFunc {
	return func(ctx context.Context) error {
		res, err := root.RequestFuture(pid, msg(), timeout).Result()
		if err != nil {
			return err
		}
		if resp, ok := res.(domain.ActorResponse); ok && resp.HasResponseError() {
			return resp.GetResponseError()
		}
		return nil
	}
}
