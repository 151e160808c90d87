package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("Awtrix2MQTT")
	assert.NoError(t, err)
	assert.Equal(t, "awtrix2mqtt", topic, "topic is lowercased")

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(t, err, "separators are rejected")

	_, err = CheckMQTTTopic("")
	assert.Error(t, err, "empty topic is rejected")
}

func TestRequestBudget(t *testing.T) {

	cfg := AwtrixConfig{
		TimeoutMillis:      1000,
		MaxAttempts:        3,
		RetryBackoffMillis: 500,
	}
	// 3 attempts of 1s, backoff sleeps of 500ms and 1s, plus margin
	assert.Equal(t, 3*time.Second+1500*time.Millisecond+2*time.Second, cfg.RequestBudget())

	cfg = AwtrixConfig{TimeoutMillis: 1000}
	assert.Equal(t, 1*time.Second+2*time.Second, cfg.RequestBudget(), "zero attempts counts as one")
}
