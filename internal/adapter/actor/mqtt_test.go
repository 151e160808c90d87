package actor

import (
	"testing"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/internal/mqtt"
	"github.com/RDG88/awtrix2mqtt/internal/util"
	"github.com/RDG88/awtrix2mqtt/internal/util/actorutil"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(2 * time.Second)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	es.Publish(domain.ScreenUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_SCREEN,
		},
		State: 1,
		Frame: awtrix.Frame{0, 0, 255},
	})
	es.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_DEVICE_STATUS,
		},
		Value: true,
	})

	time.Sleep(1 * time.Second)

	context.Stop(pid)

	time.Sleep(1 * time.Second)

	as.Shutdown()
}

func TestScreenEventToMessages(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	act := NewTestMQTTActor(&cfg, &eventstream.EventStream{}, logger)
	act.client = mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)

	msgs := act.event2MQTTMessages(domain.ScreenUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_SCREEN,
		},
		State: 1,
		Frame: awtrix.Frame{1, 2, 3},
	})

	assert.Len(t, msgs, 2)
	assert.Equal(t, "awtrix2mqtt/sensor/screen/state", msgs[0].topic)
	assert.Equal(t, "1", msgs[0].message)
	assert.True(t, msgs[0].retain)
	assert.Equal(t, "awtrix2mqtt/sensor/screen/attributes", msgs[1].topic)
	assert.JSONEq(t, `{"screen":[1,2,3]}`, msgs[1].message)

	msgs = act.event2MQTTMessages(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_DEVICE_STATUS,
		},
		Value: false,
	})

	assert.Len(t, msgs, 1)
	assert.Equal(t, "awtrix2mqtt/binary_sensor/device_status/state", msgs[0].topic)
	assert.Equal(t, "off", msgs[0].message)
}

func TestBridgeStateEventToMessages(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	act := NewTestMQTTActor(&cfg, &eventstream.EventStream{}, logger)
	act.client = mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)

	msgs := act.event2MQTTMessages(domain.BridgeStateUpdateEvent{Value: true})

	assert.Len(t, msgs, 1)
	assert.Equal(t, "awtrix2mqtt/bridge/state", msgs[0].topic)
	assert.Equal(t, "online", msgs[0].message)
	assert.True(t, msgs[0].retain)

	msgs = act.event2MQTTMessages(domain.BridgeStateUpdateEvent{Value: false})

	assert.Len(t, msgs, 1)
	assert.Equal(t, "offline", msgs[0].message)
}

func TestPublishRequestsWithoutBroker(t *testing.T) {

	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	act := NewMQTTActor(&cfg, &eventstream.EventStream{}, logger)
	act.client = mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil)
	act.behavior.Become(act.DefaultReceive)

	props := actor.PropsFromProducer(func() actor.Actor { return act })
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	// the client never connected, so each publish reports its error back
	result, err := context.RequestFuture(pid, domain.PublishSensorUpdateRequest{
		Event: domain.BridgeStateUpdateEvent{Value: false},
	}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	sResp, ok := result.(domain.PublishSensorUpdateResponse)
	assert.True(t, ok)
	assert.True(t, sResp.HasResponseError())

	result, err = context.RequestFuture(pid, domain.PublishMessageRequest{
		Topic:   "awtrix2mqtt/bridge/state",
		Payload: mqtt.MQTT_PAYLOAD_ONLINE,
		Retain:  true,
	}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	mResp, ok := result.(domain.PublishMessageResponse)
	assert.True(t, ok)
	assert.True(t, mResp.HasResponseError())

	context.Stop(pid)
	as.Shutdown()
}
