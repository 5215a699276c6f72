package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	CHARGER_STATE_IDLE    = "idle"
	CHARGER_STATE_RUNNING = "running"
)

// ChargeRunner is implemented by service.Charger.
type ChargeRunner interface {
	Run(ctx context.Context) (*domain.RunResult, error)
	MorningCheck(ctx context.Context) (*domain.MorningCheckResult, error)
}

// ChargerActor serialises charge cycles and morning checks. While one is in
// flight further requests are stashed and replayed once it finishes.
type ChargerActor struct {
	runner   ChargeRunner
	timeout  time.Duration
	behavior actor.Behavior
	stash    *actorutil.Stash
	lastRun  *domain.RunResult
	logger   *zap.Logger
}

type runFinished struct {
	result  *domain.RunResult
	err     error
	replyTo *actor.PID
}

type morningFinished struct {
	result  *domain.MorningCheckResult
	err     error
	replyTo *actor.PID
}

func NewChargerActor(runner ChargeRunner, timeout time.Duration, logger *zap.Logger) *ChargerActor {
	act := &ChargerActor{
		runner:   runner,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CHARGER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ChargerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ChargerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("charger@default started")
	case domain.RunChargeCycleRequest:
		state.logger.Info("charger@default charge cycle requested", zap.String("trigger", msg.Trigger))
		state.startRun(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
		state.behavior.Become(state.RunningReceive)
	case domain.MorningCheckRequest:
		state.logger.Info("charger@default morning check requested", zap.String("trigger", msg.Trigger))
		state.startMorningCheck(ctx, actorutil.ForRequest(msg).ReplyTo(ctx))
		state.behavior.Become(state.RunningReceive)
	case domain.GetLastRunRequest:
		state.respondLastRun(ctx, msg)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, msg, CHARGER_STATE_IDLE)
	default:
		state.logger.Debug("charger@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ChargerActor) RunningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case runFinished:
		if msg.result != nil {
			state.lastRun = msg.result
		}
		actorutil.Reply(ctx, msg.replyTo, domain.RunChargeCycleResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
			Result:             msg.result,
		})
		state.finish(ctx)
	case morningFinished:
		actorutil.Reply(ctx, msg.replyTo, domain.MorningCheckResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: msg.err},
			Result:             msg.result,
		})
		state.finish(ctx)
	case domain.GetLastRunRequest:
		state.respondLastRun(ctx, msg)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, msg, CHARGER_STATE_RUNNING)
	default:
		state.logger.Debug("charger@running stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ChargerActor) finish(ctx actor.Context) {
	state.behavior.Become(state.DefaultReceive)
	state.stash.UnstashAll(ctx)
}

func (state *ChargerActor) startRun(ctx actor.Context, replyTo *actor.PID) {
	actorutil.NewBackgroundTask(ctx, func() (*runFinished, error) {
		runCtx, cancel := context.WithTimeout(context.Background(), state.timeout)
		defer cancel()
		result, err := state.runner.Run(runCtx)
		return &runFinished{result: result, err: err, replyTo: replyTo}, nil
	}).WithTimeout(state.timeout).OnError(func(err error) {
		state.logger.Error("charger@running charge cycle aborted", zap.Error(err))
	}).Recover(func(err error) runFinished {
		return runFinished{err: err, replyTo: replyTo}
	}).PipeTo(ctx.Self())
}

func (state *ChargerActor) startMorningCheck(ctx actor.Context, replyTo *actor.PID) {
	actorutil.NewBackgroundTask(ctx, func() (*morningFinished, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), state.timeout)
		defer cancel()
		result, err := state.runner.MorningCheck(checkCtx)
		return &morningFinished{result: result, err: err, replyTo: replyTo}, nil
	}).WithTimeout(state.timeout).OnError(func(err error) {
		state.logger.Error("charger@running morning check aborted", zap.Error(err))
	}).Recover(func(err error) morningFinished {
		return morningFinished{err: err, replyTo: replyTo}
	}).PipeTo(ctx.Self())
}

func (state *ChargerActor) respondLastRun(ctx actor.Context, msg domain.GetLastRunRequest) {
	actorutil.ForRequest(msg).Respond(ctx, domain.GetLastRunResponse{Result: state.lastRun})
}

func (state *ChargerActor) respondHealth(ctx actor.Context, msg domain.ActorHealthRequest, stateName string) {
	actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CHARGER,
		Healthy: true,
		State:   stateName,
		Queued:  state.stash.Len(),
	})
}
