package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTriggerJob(t *testing.T) {
	require := require.New(t)

	calls := 0
	job := &triggerJob{name: JOB_NIGHTLY_RUN, fn: func(context.Context) error {
		calls++
		return nil
	}, logger: zaptest.NewLogger(t)}

	require.NoError(job.Execute(context.Background()))
	require.Equal(1, calls)
	require.Equal(JOB_NIGHTLY_RUN, job.Description())

	boom := errors.New("boom")
	job.fn = func(context.Context) error { return boom }
	require.ErrorIs(job.Execute(context.Background()), boom)
}

func TestSchedule(t *testing.T) {
	require := require.New(t)

	s, err := New(zaptest.NewLogger(t))
	require.NoError(err)
	noop := func(context.Context) error { return nil }

	require.NoError(s.Schedule(config.ScheduleConfig{
		NightlyCron: "0 0 22 * * *",
		MorningCron: "0 0 5 * * *",
		Timezone:    "Europe/Madrid",
	}, noop, noop))
	require.Equal("Europe/Madrid", s.loc.String())
}

func TestScheduleInvalid(t *testing.T) {
	require := require.New(t)
	noop := func(context.Context) error { return nil }

	s, err := New(zaptest.NewLogger(t))
	require.NoError(err)
	require.Error(s.Schedule(config.ScheduleConfig{NightlyCron: "every night"}, noop, noop))

	s, err = New(zaptest.NewLogger(t))
	require.NoError(err)
	require.Error(s.Schedule(config.ScheduleConfig{NightlyCron: "0 0 22 * * *", Timezone: "Mars/Olympus"}, noop, noop))
}

func TestActorTrigger(t *testing.T) {
	require := require.New(t)

	as := actor.NewActorSystem()
	defer as.Shutdown()

	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.RunChargeCycleRequest:
			ctx.Respond(domain.RunChargeCycleResponse{})
		case domain.MorningCheckRequest:
			ctx.Respond(domain.MorningCheckResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrVendorAPI},
			})
		}
	}))

	run := ActorTrigger(as.Root, pid, func() any { return domain.RunChargeCycleRequest{Trigger: "cron"} }, time.Second)
	require.NoError(run(context.Background()))

	morning := ActorTrigger(as.Root, pid, func() any { return domain.MorningCheckRequest{Trigger: "cron"} }, time.Second)
	require.ErrorIs(morning(context.Background()), domain.ErrVendorAPI)
}
