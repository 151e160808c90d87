package domain

import (
	"fmt"

	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// ScreenUpdateEvent carries the sensor state (1 online/updated, 0 offline)
// and the frame exposed through the attributes topic.
type ScreenUpdateEvent struct {
	SensorUpdateEventMixIn
	State uint
	Frame awtrix.Frame
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type IntSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value int
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
