package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	good := Config{
		Digits:            8,
		ArenaCapacity:     100,
		QueueCapacity:     10,
		WALSegmentSize:    1 << 20,
		BroadcastInterval: time.Second,
	}
	assert.NoError(t, good.Validate())

	for name, mutate := range map[string]func(*Config){
		"digits":   func(c *Config) { c.Digits = 19 },
		"arena":    func(c *Config) { c.ArenaCapacity = -1 },
		"queue":    func(c *Config) { c.QueueCapacity = -1 },
		"segment":  func(c *Config) { c.WALSegmentSize = 0 },
		"interval": func(c *Config) { c.BroadcastInterval = 0 },
	} {
		c := good
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestKafkaEnabled(t *testing.T) {
	c := Config{}
	assert.False(t, c.KafkaEnabled())
	c.Brokers = []string{"localhost:9092"}
	assert.True(t, c.KafkaEnabled())
}
