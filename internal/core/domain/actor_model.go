package domain

import "github.com/RDG88/awtrix2mqtt/pkg/awtrix"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_AWTRIX       = "awtrix"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_LIVENESS     = "liveness"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetScreenRequest struct {
	ActorRequestMixIn
}

type GetScreenResponse struct {
	ActorResponseMixIn
	Frame awtrix.Frame
}

type ProbeDeviceRequest struct {
	ActorRequestMixIn
}

type ProbeDeviceResponse struct {
	ActorResponseMixIn
}

// PollSucceeded and PollFailed feed the liveness tracker from the poller.

type PollSucceeded struct {
}

type PollFailed struct {
	Error error
}

// ForcePoll requests an immediate out-of-schedule poll.

type ForcePoll struct {
}

// DeviceOnline and DeviceOffline notify the poller of liveness transitions.

type DeviceOnline struct {
}

type DeviceOffline struct {
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	Buttons []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// GetLastFrameRequest asks the poller for the most recent screen state.

type GetLastFrameRequest struct {
	ActorRequestMixIn
}

type GetLastFrameResponse struct {
	ActorResponseMixIn
	Online bool
	Frame  awtrix.Frame
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
