package actor

import (
	"fmt"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/config"
	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	. "github.com/RDG88/awtrix2mqtt/internal/util/actorutil"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor fetches the device screen on a fixed interval and
// publishes the result as sensor updates. While the liveness tracker
// believes the device is offline, scheduled ticks keep running but do
// not hit the device; recovery is the tracker's job.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config        *config.Config
	awtrixActor   *actor.PID
	livenessActor *actor.PID
	eventStream   *eventstream.EventStream

	online    bool
	lastFrame awtrix.Frame

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(config *config.Config, awtrixActor *actor.PID, livenessActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:        config,
		awtrixActor:   awtrixActor,
		livenessActor: livenessActor,
		behavior:      actor.NewBehavior(),
		stash:         &Stash{},
		eventStream:   eventStream,
		online:        true,
		logger:        ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Request(state.livenessActor, RegisterPoller{})
		state.scheduleNextTick(ctx)
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "default",
		})
	case domain.GetLastFrameRequest:
		state.logger.Debug("poller@default GetLastFrameRequest")
		ctx.Respond(state.lastFrameResponse())
	case pollTick:
		state.scheduleNextTick(ctx)
		if !state.online {
			state.logger.Debug("poller@default pollTick skipped, device offline")
			return
		}
		state.logger.Debug("poller@default pollTick")
		state.poll(ctx)
	case domain.ForcePoll:
		state.logger.Debug("poller@default ForcePoll")
		state.poll(ctx)
	case domain.DeviceOnline:
		state.logger.Debug("poller@default DeviceOnline")
		state.online = true
		state.lastFrame = nil
		state.poll(ctx)
	case domain.DeviceOffline:
		state.logger.Debug("poller@default DeviceOffline")
		state.online = false
	default:
		state.logger.Debug("poller@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingScreenReceive waits for the in-flight screen fetch. Everything
// but the response is stashed, so at most one device request runs at a
// time.
func (state *PollerActor) WaitingScreenReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetScreenResponse:
		if msg.HasResponseError() {
			state.logger.Warn("poller@waitingScreen fetch failed", zap.Error(msg.GetResponseError()))
			ctx.Send(state.livenessActor, domain.PollFailed{Error: msg.GetResponseError()})
		} else {
			state.logger.Debug("poller@waitingScreen fetch ok", zap.Int("pixels", len(msg.Frame)))
			state.lastFrame = msg.Frame
			state.eventStream.Publish(domain.ScreenUpdateEvent{
				SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_SCREEN},
				State:                  1,
				Frame:                  msg.Frame,
			})
			ctx.Send(state.livenessActor, domain.PollSucceeded{})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waitingScreen stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) poll(ctx actor.Context) {
	timeout := state.config.Awtrix.RequestBudget() + 5*time.Second
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.awtrixActor, domain.GetScreenRequest{}, timeout), func(err error) any {
		return domain.GetScreenResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.BecomeStacked(state.WaitingScreenReceive)
}

func (state *PollerActor) scheduleNextTick(ctx actor.Context) {
	interval := time.Duration(state.config.Monitor.PollIntervalMillis) * time.Millisecond
	state.scheduler.RequestOnce(interval, ctx.Self(), pollTick{})
}

func (state *PollerActor) lastFrameResponse() domain.GetLastFrameResponse {
	if !state.online {
		return domain.GetLastFrameResponse{Online: false, Frame: state.config.Screen.FallbackFrame}
	}
	return domain.GetLastFrameResponse{Online: true, Frame: state.lastFrame}
}
