package util

import (
	"github.com/RDG88/awtrix2mqtt/internal/config"
	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Awtrix: config.AwtrixConfig{
			URL:                "http://-.-.-.-/api/screen",
			Name:               "awtrix_test",
			TimeoutMillis:      1000,
			MaxAttempts:        3,
			RetryBackoffMillis: 50,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "awtrix2mqtt",
		},
		Monitor: config.MonitorConfig{
			PollIntervalMillis:     5000,
			LivenessIntervalMillis: 10000,
			OfflineThreshold:       3,
			RecheckDelayMillis:     5000,
		},
		Screen: config.ScreenConfig{
			FallbackFrame: awtrix.DefaultFallbackFrame(),
		},
		Port: 8080,
	}
}
