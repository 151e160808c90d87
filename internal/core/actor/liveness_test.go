package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	adactor "github.com/RDG88/awtrix2mqtt/internal/adapter/actor"
	"github.com/RDG88/awtrix2mqtt/internal/core/domain"
	"github.com/RDG88/awtrix2mqtt/internal/util"
	"github.com/RDG88/awtrix2mqtt/internal/util/actorutil"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func adactorAwtrix(reader awtrix.ScreenReader, logger *zap.Logger) *adactor.AwtrixActor {
	return adactor.NewAwtrixActor(reader, 2*time.Second, logger)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func (r *eventRecorder) record(evt any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any{}, r.events...)
}

func (r *eventRecorder) screenEvents() []domain.ScreenUpdateEvent {
	var out []domain.ScreenUpdateEvent
	for _, evt := range r.snapshot() {
		if e, ok := evt.(domain.ScreenUpdateEvent); ok {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) statusEvents() []domain.BinarySensorUpdateEvent {
	var out []domain.BinarySensorUpdateEvent
	for _, evt := range r.snapshot() {
		if e, ok := evt.(domain.BinarySensorUpdateEvent); ok && e.Id == domain.SENSOR_ID_DEVICE_STATUS {
			out = append(out, e)
		}
	}
	return out
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}

func TestLivenessOfflineAfterThreshold(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Monitor.OfflineThreshold = 3
	cfg.Monitor.RecheckDelayMillis = 60000
	cfg.Monitor.LivenessIntervalMillis = 0
	cfg.Screen.FallbackFrame = awtrix.Frame{7, 7, 7}

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1})
	reader.Fail(errors.New("device unreachable"))

	awtrixProps := actor.PropsFromProducer(func() actor.Actor { return adactorAwtrix(reader, logger) })
	awtrixPID := context.Spawn(awtrixProps)

	es := &eventstream.EventStream{}
	rec := &eventRecorder{}
	sub := es.Subscribe(rec.record)
	defer es.Unsubscribe(sub)

	livenessProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLivenessActor(&cfg, awtrixPID, es, logger)
	})
	pid := context.Spawn(livenessProps)

	time.Sleep(200 * time.Millisecond)

	pollErr := errors.New("device unreachable")

	// two failures are not enough
	context.Send(pid, domain.PollFailed{Error: pollErr})
	context.Send(pid, domain.PollFailed{Error: pollErr})
	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "online", hcr.State, "still online below threshold")
	assert.Empty(t, rec.screenEvents(), "no screen override below threshold")

	// third failure crosses the threshold
	context.Send(pid, domain.PollFailed{Error: pollErr})
	time.Sleep(300 * time.Millisecond)

	hcr, err = healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "offline", hcr.State, "offline at threshold")

	screens := rec.screenEvents()
	if assert.Len(t, screens, 1, "one screen override") {
		assert.Equal(t, uint(0), screens[0].State, "screen state zeroed")
		assert.Equal(t, awtrix.Frame{7, 7, 7}, screens[0].Frame, "fallback frame published")
	}
	statuses := rec.statusEvents()
	if assert.NotEmpty(t, statuses, "device status published") {
		assert.False(t, statuses[len(statuses)-1].Value, "device status off")
	}

	context.Stop(pid)
	as.Shutdown()
}

func TestLivenessSuccessResetsCounter(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Monitor.OfflineThreshold = 3
	cfg.Monitor.RecheckDelayMillis = 60000
	cfg.Monitor.LivenessIntervalMillis = 0

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1})

	awtrixProps := actor.PropsFromProducer(func() actor.Actor { return adactorAwtrix(reader, logger) })
	awtrixPID := context.Spawn(awtrixProps)

	es := &eventstream.EventStream{}
	rec := &eventRecorder{}
	sub := es.Subscribe(rec.record)
	defer es.Unsubscribe(sub)

	livenessProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLivenessActor(&cfg, awtrixPID, es, logger)
	})
	pid := context.Spawn(livenessProps)

	time.Sleep(200 * time.Millisecond)

	pollErr := errors.New("device unreachable")

	context.Send(pid, domain.PollFailed{Error: pollErr})
	context.Send(pid, domain.PollFailed{Error: pollErr})
	context.Send(pid, domain.PollSucceeded{})
	context.Send(pid, domain.PollFailed{Error: pollErr})
	context.Send(pid, domain.PollFailed{Error: pollErr})
	time.Sleep(300 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "online", hcr.State, "success resets the failure run")
	assert.Empty(t, rec.screenEvents(), "no screen override")

	context.Stop(pid)
	as.Shutdown()
}

func TestLivenessRecheckRecovers(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Monitor.OfflineThreshold = 1
	cfg.Monitor.RecheckDelayMillis = 400
	cfg.Monitor.LivenessIntervalMillis = 0

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1})
	reader.Fail(errors.New("device unreachable"))

	awtrixProps := actor.PropsFromProducer(func() actor.Actor { return adactorAwtrix(reader, logger) })
	awtrixPID := context.Spawn(awtrixProps)

	es := &eventstream.EventStream{}
	rec := &eventRecorder{}
	sub := es.Subscribe(rec.record)
	defer es.Unsubscribe(sub)

	livenessProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLivenessActor(&cfg, awtrixPID, es, logger)
	})
	pid := context.Spawn(livenessProps)

	time.Sleep(200 * time.Millisecond)

	context.Send(pid, domain.PollFailed{Error: errors.New("device unreachable")})
	time.Sleep(300 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "offline", hcr.State)

	// the next recheck finds the device answering again
	reader.Recover()
	time.Sleep(1 * time.Second)

	hcr, err = healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "online", hcr.State, "recheck brought the device back")
	assert.GreaterOrEqual(t, reader.ProbeCalls(), 1, "at least one probe")

	statuses := rec.statusEvents()
	if assert.NotEmpty(t, statuses) {
		assert.True(t, statuses[len(statuses)-1].Value, "last status is on")
	}

	context.Stop(pid)
	as.Shutdown()
}

func TestLivenessRecoveryCancelsPendingRecheck(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Monitor.OfflineThreshold = 1
	cfg.Monitor.RecheckDelayMillis = 500
	cfg.Monitor.LivenessIntervalMillis = 0

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1})
	reader.Fail(errors.New("device unreachable"))

	awtrixProps := actor.PropsFromProducer(func() actor.Actor { return adactorAwtrix(reader, logger) })
	awtrixPID := context.Spawn(awtrixProps)

	es := &eventstream.EventStream{}
	rec := &eventRecorder{}
	sub := es.Subscribe(rec.record)
	defer es.Unsubscribe(sub)

	livenessProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLivenessActor(&cfg, awtrixPID, es, logger)
	})
	pid := context.Spawn(livenessProps)

	time.Sleep(200 * time.Millisecond)

	context.Send(pid, domain.PollFailed{Error: errors.New("device unreachable")})
	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "offline", hcr.State)

	// a poll succeeds before the pending recheck fires
	context.Send(pid, domain.PollSucceeded{})
	time.Sleep(1 * time.Second)

	hcr, err = healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "online", hcr.State, "still online after the recheck delay")
	assert.Equal(t, 0, reader.ProbeCalls(), "the cancelled recheck never probed")

	context.Stop(pid)
	as.Shutdown()
}

func TestLivenessReconcileDetectsFailure(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Monitor.OfflineThreshold = 2
	cfg.Monitor.RecheckDelayMillis = 60000
	cfg.Monitor.LivenessIntervalMillis = 300

	reader := awtrix.CreateTestScreenReader(awtrix.Frame{1})
	reader.Fail(errors.New("device unreachable"))

	awtrixProps := actor.PropsFromProducer(func() actor.Actor { return adactorAwtrix(reader, logger) })
	awtrixPID := context.Spawn(awtrixProps)

	es := &eventstream.EventStream{}
	rec := &eventRecorder{}
	sub := es.Subscribe(rec.record)
	defer es.Unsubscribe(sub)

	livenessProps := actor.PropsFromProducer(func() actor.Actor {
		return NewLivenessActor(&cfg, awtrixPID, es, logger)
	})
	pid := context.Spawn(livenessProps)

	// no poll results at all, only the reconcile probes
	time.Sleep(1500 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "offline", hcr.State, "reconcile probes crossed the threshold")
	assert.GreaterOrEqual(t, reader.ProbeCalls(), 2, "reconcile kept probing")

	context.Stop(pid)
	as.Shutdown()
}
