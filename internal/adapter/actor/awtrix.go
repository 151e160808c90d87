package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/internal/util/actorutil"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type AwtrixActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   awtrix.ScreenReader
	timeout  time.Duration
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

// NewAwtrixActor wraps a ScreenReader. timeout is the overall budget for
// one request including the reader's internal retries.
func NewAwtrixActor(reader awtrix.ScreenReader, timeout time.Duration, logger *zap.Logger) *AwtrixActor {
	act := &AwtrixActor{
		reader:   reader,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_AWTRIX, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *AwtrixActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *AwtrixActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("awtrix@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_AWTRIX,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetScreenRequest:
		state.logger.Debug("awtrix@default: GetScreenRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getScreen),
			mapTaskResult[domain.GetScreenResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetScreenResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	case domain.ProbeDeviceRequest:
		state.logger.Debug("awtrix@default: ProbeDeviceRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.probe),
			mapTaskResult[domain.ProbeDeviceResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ProbeDeviceResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.timeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingDevice)
	default:
		state.logger.Debug("awtrix@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *AwtrixActor) WaitingDevice(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("awtrix@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("awtrix@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *AwtrixActor) getScreen() (*domain.GetScreenResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	frame, err := a.reader.GetScreen(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.GetScreenResponse{
		Frame: frame,
	}, nil
}

func (a *AwtrixActor) probe() (*domain.ProbeDeviceResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.reader.Probe(ctx); err != nil {
		return nil, err
	}
	return &domain.ProbeDeviceResponse{}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
