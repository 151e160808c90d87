package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/RDG88/awtrix2mqtt/pkg/awtrix"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Awtrix   AwtrixConfig  `mapstructure:"awtrix"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Monitor  MonitorConfig `mapstructure:"monitor"`
	Screen   ScreenConfig  `mapstructure:"screen"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type AwtrixConfig struct {
	URL                string `mapstructure:"url"`
	Name               string `mapstructure:"name"`
	TimeoutMillis      uint32 `mapstructure:"timeout_millis"`
	MaxAttempts        uint   `mapstructure:"max_attempts"`
	RetryBackoffMillis uint32 `mapstructure:"retry_backoff_millis"`
}

// RequestBudget is the overall time allowance for one device request,
// covering every retry attempt plus the doubling backoff sleeps between
// them.
func (c AwtrixConfig) RequestBudget() time.Duration {
	attempts := c.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	perAttempt := time.Duration(c.TimeoutMillis) * time.Millisecond
	backoff := time.Duration(0)
	step := time.Duration(c.RetryBackoffMillis) * time.Millisecond
	for i := uint(1); i < attempts; i++ {
		backoff += step
		step *= 2
	}
	return time.Duration(attempts)*perAttempt + backoff + 2*time.Second
}

type MonitorConfig struct {
	PollIntervalMillis     uint32 `mapstructure:"poll_interval_millis"`
	LivenessIntervalMillis uint32 `mapstructure:"liveness_interval_millis"`
	OfflineThreshold       uint   `mapstructure:"offline_threshold"`
	RecheckDelayMillis     uint32 `mapstructure:"recheck_delay_millis"`
}

type ScreenConfig struct {
	DataFile string `mapstructure:"data_file"`
	// FallbackFrame is loaded from DataFile once at boot and injected here.
	FallbackFrame awtrix.Frame `mapstructure:"-"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
