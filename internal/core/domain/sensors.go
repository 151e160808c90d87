package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE  = "bridge"
	SENSOR_ID_SCREEN        = "screen"
	SENSOR_ID_DEVICE_STATUS = "device_status"
	SENSOR_ID_ERROR_COUNT   = "consecutive_errors"
	BUTTON_ID_REFRESH       = "refresh"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("awtrix2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "RDG88",
		Model:        "awtrix2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("awtrix2mqtt %s", md5HashShort(baseTopic)),
	}
}

func AwtrixDevice(name, url string) Device {
	return Device{
		Id:           fmt.Sprintf("awtrix_%s", md5HashShort(url)),
		Manufacturer: "Blueforcer",
		Model:        "AWTRIX",
		Name:         name,
	}
}

func ScreenSensors(awtrixDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Screen contents: state 1/0, frame exposed as attribute
	sensors = append(sensors, GenericSensor{
		Device:         awtrixDevice,
		Id:             SENSOR_ID_SCREEN,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Screen",
		JsonAttributes: true,
		Icon:           "mdi:television-ambient-light",
		UniqueId:       uniqueId(awtrixDevice.Id, SENSOR_ID_SCREEN),
	})

	// Device reachability
	sensors = append(sensors, GenericSensor{
		Device:      awtrixDevice,
		Id:          SENSOR_ID_DEVICE_STATUS,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Device status",
		DeviceClass: DEVICE_CLASS_CONNECTIVITY,
		UniqueId:    uniqueId(awtrixDevice.Id, SENSOR_ID_DEVICE_STATUS),
	})

	// Consecutive poll failures
	sensors = append(sensors, GenericSensor{
		Device:           awtrixDevice,
		Id:               SENSOR_ID_ERROR_COUNT,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Consecutive errors",
		StateClass:       STATE_CLASS_MEASUREMENT,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		Icon:             "mdi:alert-circle-outline",
		UniqueId:         uniqueId(awtrixDevice.Id, SENSOR_ID_ERROR_COUNT),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func ScreenButtons(awtrixDevice Device) []GenericButton {

	var buttons []GenericButton

	// Force an immediate poll
	buttons = append(buttons, GenericButton{
		Device:   awtrixDevice,
		Id:       BUTTON_ID_REFRESH,
		Name:     "Refresh screen",
		UniqueId: uniqueId(awtrixDevice.Id, BUTTON_ID_REFRESH),
		Icon:     "mdi:refresh",
	})

	return buttons
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
