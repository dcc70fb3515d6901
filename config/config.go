package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr string

	// Engine
	Digits        uint
	ArenaCapacity int
	QueueCapacity int
	TrackStats    bool

	// Durability
	WALDir         string
	WALSegmentSize int64
	OutboxDir      string

	// Kafka (empty brokers = disabled)
	Brokers           []string
	EventTopic        string
	CommandTopic      string
	ConsumerGroup     string
	BroadcastInterval time.Duration
}

// Load parses flags with environment fallbacks.
func Load() *Config {
	c := &Config{}

	flag.StringVar(&c.ListenAddr, "listen", envStr("RIPTIDE_LISTEN", ":8080"), "HTTP/WebSocket listen address")

	digits := flag.Uint("digits", uint(envInt("RIPTIDE_DIGITS", 8)), "decimal digits of price precision [0,18]")
	flag.IntVar(&c.ArenaCapacity, "arena-capacity", envInt("RIPTIDE_ARENA_CAPACITY", 10000), "pre-reserved resting order capacity")
	flag.IntVar(&c.QueueCapacity, "queue-capacity", envInt("RIPTIDE_QUEUE_CAPACITY", 10), "capacity hint for depth snapshot buffers (no per-level queue capacity is reserved)")
	flag.BoolVar(&c.TrackStats, "track-stats", envBool("RIPTIDE_TRACK_STATS", true), "track last trade and traded volume")

	flag.StringVar(&c.WALDir, "wal-dir", envStr("RIPTIDE_WAL_DIR", "./data/wal"), "command log directory")
	flag.Int64Var(&c.WALSegmentSize, "wal-segment-size", envInt64("RIPTIDE_WAL_SEGMENT_SIZE", 64<<20), "command log segment size in bytes")
	flag.StringVar(&c.OutboxDir, "outbox-dir", envStr("RIPTIDE_OUTBOX_DIR", "./data/outbox"), "event outbox directory")

	brokers := flag.String("brokers", envStr("RIPTIDE_BROKERS", ""), "comma-separated Kafka brokers (empty = Kafka disabled)")
	flag.StringVar(&c.EventTopic, "event-topic", envStr("RIPTIDE_EVENT_TOPIC", "riptide.events"), "Kafka topic for outbound events")
	flag.StringVar(&c.CommandTopic, "command-topic", envStr("RIPTIDE_COMMAND_TOPIC", "riptide.commands"), "Kafka topic for inbound commands")
	flag.StringVar(&c.ConsumerGroup, "consumer-group", envStr("RIPTIDE_CONSUMER_GROUP", "riptide-engine"), "Kafka consumer group for the command ingest")
	flag.DurationVar(&c.BroadcastInterval, "broadcast-interval", envDuration("RIPTIDE_BROADCAST_INTERVAL", 250*time.Millisecond), "outbox sweep interval")

	flag.Parse()

	c.Digits = *digits
	if *brokers != "" {
		for _, b := range strings.Split(*brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Brokers = append(c.Brokers, b)
			}
		}
	}
	return c
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Digits > 18 {
		return fmt.Errorf("config: digits %d out of range [0,18]", c.Digits)
	}
	if c.ArenaCapacity < 0 || c.QueueCapacity < 0 {
		return fmt.Errorf("config: negative capacity hint")
	}
	if c.WALSegmentSize <= 0 {
		return fmt.Errorf("config: wal segment size must be positive")
	}
	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("config: broadcast interval must be positive")
	}
	return nil
}

// KafkaEnabled reports whether any broker was configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Brokers) > 0
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
