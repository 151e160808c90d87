package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/config"
	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes the Home Assistant discovery documents
// once both the device and MQTT actors report healthy, then goes idle.
type HADiscoveryActor struct {
	config             *config.Config
	behavior           actor.Behavior
	stash              *actorutil.Stash
	awtrixActor        *actor.PID
	mqttActor          *actor.PID
	awtrixActorHealthy bool
	mqttActorHealthy   bool
	healthyRecv        int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, awtrixActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:      config,
		awtrixActor: awtrixActor,
		mqttActor:   mqttActor,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check AWTRIX and MQTT actor healthy
		state.healthyRecv = 0
		state.awtrixActorHealthy = false
		state.mqttActorHealthy = false
		// AWTRIX Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.awtrixActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_AWTRIX,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_AWTRIX:
				state.awtrixActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.awtrixActorHealthy && state.mqttActorHealthy {
				state.publishDiscovery(ctx)
				state.behavior.Become(state.Done)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or AWTRIX Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context) {

	var sensors []domain.GenericSensor
	var buttons []domain.GenericButton

	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	awtrixDevice := domain.AwtrixDevice(state.config.Awtrix.Name, state.config.Awtrix.URL)
	awtrixDevice.ViaDevice = bridgeDevice.Id
	screenSensors := domain.ScreenSensors(awtrixDevice)
	for i := range screenSensors {
		if i > 0 {
			screenSensors[i].Device = domain.IdDevice(awtrixDevice)
		}
		sensors = append(sensors, screenSensors[i])
	}

	buttons = append(buttons, domain.ScreenButtons(domain.IdDevice(awtrixDevice))...)

	state.logger.Debug("hadiscovery@info publish", zap.Int("sensors", len(sensors)), zap.Int("buttons", len(buttons)))

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: sensors,
		Buttons: buttons,
	})
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}
