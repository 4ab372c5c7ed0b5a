package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

const (
	DefaultSessionTimeout = 45 * time.Second
	DefaultFlushTimeout   = 15 * time.Second
	DefaultPollTimeout    = 100 * time.Millisecond
)

// FollowerConfig holds the configuration for following a job output topic.
type FollowerConfig struct {
	Topic            string        `env:"KAFKA_TOPIC"             envDefault:"job-output"`     // Job output topic
	BootstrapServers string        `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"` // Kafka broker addresses
	GroupID          string        `env:"KAFKA_GROUP_ID"`                                      // Consumer group; generated per viewer when empty
	AutoOffsetReset  string        `env:"KAFKA_AUTO_OFFSET_RESET" envDefault:"earliest"`       // "earliest" replays the job from its first event
	SessionTimeout   time.Duration `env:"KAFKA_SESSION_TIMEOUT"   envDefault:"45s"`
	PollTimeout      time.Duration `env:"KAFKA_POLL_TIMEOUT"      envDefault:"100ms"`
	EnableLogs       bool          `env:"KAFKA_ENABLE_LOGS"       envDefault:"false"` // Enable librdkafka client logs
}

// PublisherConfig holds the configuration for publishing job output.
type PublisherConfig struct {
	Topic             string        `env:"KAFKA_TOPIC"              envDefault:"job-output"`
	BootstrapServers  string        `env:"KAFKA_BOOTSTRAP_SERVERS"  envDefault:"localhost:9092"`
	NumPartitions     int           `env:"KAFKA_PARTITIONS"         envDefault:"1"`
	ReplicationFactor int           `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"      envDefault:"15s"`
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"        envDefault:"false"`
}

// LoadFollowerConfig loads follower configuration from environment variables.
func LoadFollowerConfig() (FollowerConfig, error) {
	var cfg FollowerConfig
	if err := env.Parse(&cfg); err != nil {
		return FollowerConfig{}, fmt.Errorf("failed to parse follower config: %w", err)
	}
	return cfg.WithDefaults(), nil
}

// LoadPublisherConfig loads publisher configuration from environment variables.
func LoadPublisherConfig() (PublisherConfig, error) {
	var cfg PublisherConfig
	if err := env.Parse(&cfg); err != nil {
		return PublisherConfig{}, fmt.Errorf("failed to parse publisher config: %w", err)
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults returns a copy of the config with zero fields filled in.
// Every viewer reads the whole topic, so an empty group id gets a unique one.
func (c FollowerConfig) WithDefaults() FollowerConfig {
	if c.GroupID == "" {
		c.GroupID = "logwindow-" + uuid.NewString()
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

func (c FollowerConfig) Validate() error {
	if c.Topic == "" {
		return errors.New("invalid topic: must not be empty")
	}
	if c.BootstrapServers == "" {
		return errors.New("invalid bootstrap servers: must not be empty")
	}
	switch c.AutoOffsetReset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("invalid auto offset reset %q: must be earliest or latest", c.AutoOffsetReset)
	}
	return nil
}

// WithDefaults returns a copy of the config with zero fields filled in.
func (c PublisherConfig) WithDefaults() PublisherConfig {
	if c.NumPartitions <= 0 {
		c.NumPartitions = 1
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	return c
}

// TopicConfig returns the topic the publisher writes to.
func (c PublisherConfig) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.NumPartitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}
