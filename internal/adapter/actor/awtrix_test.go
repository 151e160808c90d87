package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/internal/util/actorutil"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestGetScreenAwtrixActor(t *testing.T) {

	assert := assert.New(t)

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1, 2, 3})

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewAwtrixActor(reader, 2*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.GetScreenRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetScreenResponse)

	assert.False(resp.HasResponseError(), "response should not carry an error")
	assert.Equal(awtrix.Frame{1, 2, 3}, resp.Frame, "frame")
	assert.Equal(1, reader.ScreenCalls(), "screen calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetScreenAwtrixActorError(t *testing.T) {

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1, 2, 3})
	reader.Fail(errors.New("device unreachable"))

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewAwtrixActor(reader, 2*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.GetScreenRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetScreenResponse)

	assert.True(t, resp.HasResponseError(), "response should carry an error")

	context.Stop(pid)

	as.Shutdown()
}

func TestProbeAwtrixActor(t *testing.T) {

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{0})

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewAwtrixActor(reader, 2*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(pid, domain.ProbeDeviceRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ProbeDeviceResponse)
	assert.False(t, resp.HasResponseError(), "probe should succeed")

	reader.Fail(errors.New("device unreachable"))

	result, err = context.RequestFuture(pid, domain.ProbeDeviceRequest{}, 5*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp = result.(domain.ProbeDeviceResponse)
	assert.True(t, resp.HasResponseError(), "probe should fail")

	context.Stop(pid)

	as.Shutdown()
}
