package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/config"
	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	. "github.com/RDG88/awtrix2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// LivenessActor debounces device reachability. The device goes offline
// only after a run of consecutive failures reaches the configured
// threshold; any success resets the run. While offline, one-shot
// rechecks probe the device until it answers again, and an independent
// slower reconcile job probes regardless of the current belief.
type LivenessActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	config      *config.Config
	awtrixActor *actor.PID
	pollerActor *actor.PID
	eventStream *eventstream.EventStream

	online        bool
	errorCount    uint
	generation    uint64
	cancelRecheck scheduler.CancelFunc
	reconciler    quartz.Scheduler

	logger *zap.Logger
}

type recheckTick struct {
	generation uint64
}

type reconcileTick struct {
}

// RegisterPoller attaches the poller that receives online/offline
// transitions. Sent by the poller itself on start.
type RegisterPoller struct {
}

func NewLivenessActor(config *config.Config, awtrixActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *LivenessActor {
	act := &LivenessActor{
		config:      config,
		awtrixActor: awtrixActor,
		behavior:    actor.NewBehavior(),
		eventStream: eventStream,
		online:      true,
		logger:      ActorLogger(domain.ACTOR_ID_LIVENESS, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *LivenessActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *LivenessActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("liveness@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.startReconciler(ctx)
	case *actor.Stopping:
		state.stopReconciler()
	case *actor.Restarting:
		state.stopReconciler()
	case domain.ActorHealthRequest:
		state.logger.Debug("liveness@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LIVENESS,
			Healthy: true,
			State:   state.stateName(),
		})
	case RegisterPoller:
		state.logger.Debug("liveness@default RegisterPoller")
		state.pollerActor = ctx.Sender()
	case domain.PollSucceeded:
		state.logger.Debug("liveness@default PollSucceeded")
		state.registerSuccess(ctx)
	case domain.PollFailed:
		state.logger.Warn("liveness@default PollFailed", zap.Error(msg.Error))
		state.registerFailure(ctx)
	case recheckTick:
		// stale rechecks from a previous generation are ignored
		if msg.generation != state.generation || state.online {
			state.logger.Debug("liveness@default stale recheckTick")
			return
		}
		state.logger.Debug("liveness@default recheckTick")
		state.probe(ctx)
	case reconcileTick:
		state.logger.Debug("liveness@default reconcileTick")
		state.probe(ctx)
	case domain.ProbeDeviceResponse:
		if msg.HasResponseError() {
			state.logger.Debug("liveness@default probe failed", zap.Error(msg.GetResponseError()))
			if state.online {
				// the reconcile probe disagrees with our belief,
				// fold it into the debounce counter
				state.registerFailure(ctx)
			} else {
				state.scheduleRecheck(ctx)
			}
		} else {
			state.logger.Debug("liveness@default probe succeeded")
			state.registerSuccess(ctx)
		}
	default:
		state.logger.Debug("liveness@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *LivenessActor) registerSuccess(ctx actor.Context) {
	if state.errorCount != 0 {
		state.errorCount = 0
		state.publishErrorCount()
	}
	if !state.online {
		state.transitionOnline(ctx)
	}
}

func (state *LivenessActor) registerFailure(ctx actor.Context) {
	if !state.online {
		return
	}
	state.errorCount++
	state.publishErrorCount()
	if state.errorCount >= state.config.Monitor.OfflineThreshold {
		state.transitionOffline(ctx)
	}
}

func (state *LivenessActor) transitionOnline(ctx actor.Context) {
	state.logger.Info("liveness: device is back online")
	state.online = true
	state.generation++
	state.cancelPendingRecheck()

	state.eventStream.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_DEVICE_STATUS},
		Value:                  true,
	})
	if state.pollerActor != nil {
		ctx.Send(state.pollerActor, domain.DeviceOnline{})
	}
}

func (state *LivenessActor) transitionOffline(ctx actor.Context) {
	state.logger.Warn("liveness: device went offline",
		zap.Uint("consecutive_errors", state.errorCount))
	state.online = false
	state.generation++

	// zero the exposed state and substitute the fallback frame
	state.eventStream.Publish(domain.ScreenUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_SCREEN},
		State:                  0,
		Frame:                  state.config.Screen.FallbackFrame,
	})
	state.eventStream.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_DEVICE_STATUS},
		Value:                  false,
	})
	if state.pollerActor != nil {
		ctx.Send(state.pollerActor, domain.DeviceOffline{})
	}
	state.scheduleRecheck(ctx)
}

func (state *LivenessActor) scheduleRecheck(ctx actor.Context) {
	state.cancelPendingRecheck()
	delay := time.Duration(state.config.Monitor.RecheckDelayMillis) * time.Millisecond
	state.cancelRecheck = state.scheduler.RequestOnce(delay, ctx.Self(), recheckTick{generation: state.generation})
}

func (state *LivenessActor) cancelPendingRecheck() {
	if state.cancelRecheck != nil {
		state.cancelRecheck()
		state.cancelRecheck = nil
	}
}

func (state *LivenessActor) probe(ctx actor.Context) {
	timeout := time.Duration(state.config.Awtrix.TimeoutMillis)*time.Millisecond + 5*time.Second
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.awtrixActor, domain.ProbeDeviceRequest{}, timeout), func(err error) any {
		return domain.ProbeDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
}

func (state *LivenessActor) publishErrorCount() {
	state.eventStream.Publish(domain.IntSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{Id: domain.SENSOR_ID_ERROR_COUNT},
		Value:                  int(state.errorCount),
	})
}

func (state *LivenessActor) startReconciler(ctx actor.Context) {
	interval := time.Duration(state.config.Monitor.LivenessIntervalMillis) * time.Millisecond
	if interval <= 0 {
		return
	}

	root := ctx.ActorSystem().Root
	self := ctx.Self()

	state.reconciler = quartz.NewStdScheduler()
	state.reconciler.Start(context.Background())

	reconcileJob := job.NewFunctionJob(func(_ context.Context) (int, error) {
		root.Send(self, reconcileTick{})
		return 0, nil
	})
	err := state.reconciler.ScheduleJob(
		quartz.NewJobDetail(reconcileJob, quartz.NewJobKey("liveness_reconcile")),
		quartz.NewSimpleTrigger(interval))
	if err != nil {
		state.logger.Error("liveness: could not schedule reconcile job", zap.Error(err))
	}
}

func (state *LivenessActor) stopReconciler() {
	if state.reconciler != nil {
		state.reconciler.Stop()
		state.reconciler = nil
	}
}

func (state *LivenessActor) stateName() string {
	if state.online {
		return "online"
	}
	return "offline"
}
