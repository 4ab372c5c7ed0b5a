package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/logwindow/pkg/clickhouse"
	"github.com/ava-labs/logwindow/pkg/kafka"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const messageMaxBytes = 20971521 // 20MB

// Config holds all configuration for the logwindow commands.
type Config struct {
	Verbose bool
	JobID   string
	File    string

	// Viewer settings
	Source       string
	Follow       bool
	PollInterval time.Duration
	Window       slidingwindow.Config
	LogFile      string
	BatchSize    int

	LagWatchdogInterval time.Duration
	LagWatchdogMaxLag   int64

	// Backends
	ClickHouse    clickhouse.Config
	KafkaFollower kafka.FollowerConfig
	KafkaPublish  kafka.PublisherConfig
	KafkaClientID string

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// KafkaProducerConfig builds a Kafka producer ConfigMap from the config
func (c *Config) KafkaProducerConfig() *confluentKafka.ConfigMap {
	return &confluentKafka.ConfigMap{
		"bootstrap.servers": c.KafkaPublish.BootstrapServers,
		"client.id":         c.KafkaClientID,

		// Job events must arrive in counter order.
		"acks":                                  "all",
		"enable.idempotence":                    true,
		"max.in.flight.requests.per.connection": 5,

		"linger.ms":        5,
		"batch.size":       16384,
		"compression.type": "lz4",

		"go.logs.channel.enable": c.KafkaPublish.EnableLogs,
		"message.max.bytes":      messageMaxBytes,
	}
}

// buildConfig layers CLI flags over configuration loaded from the environment.
func buildConfig(c *cli.Context) (*Config, error) {
	chCfg, err := buildClickHouseConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build ClickHouse config: %w", err)
	}
	followerCfg, publishCfg, err := buildKafkaConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build Kafka config: %w", err)
	}

	return &Config{
		Verbose:      c.Bool("verbose"),
		JobID:        c.String("job-id"),
		File:         c.String("file"),
		Source:       c.String("source"),
		Follow:       c.Bool("follow"),
		PollInterval: c.Duration("poll-interval"),
		Window: slidingwindow.Config{
			EventLimit: c.Int("event-limit"),
			PageSize:   c.Int("page-size"),
			MaxPending: c.Int("max-pending"),
		},
		LogFile:             c.String("log-file"),
		BatchSize:           c.Int("batch-size"),
		LagWatchdogInterval: c.Duration("lag-watchdog-interval"),
		LagWatchdogMaxLag:   c.Int64("lag-watchdog-max-lag"),
		ClickHouse:          chCfg,
		KafkaFollower:       followerCfg,
		KafkaPublish:        publishCfg,
		KafkaClientID:       c.String("kafka-client-id"),
		MetricsHost:         c.String("metrics-host"),
		MetricsPort:         c.Int("metrics-port"),
		Environment:         c.String("environment"),
		Region:              c.String("region"),
		CloudProvider:       c.String("cloud-provider"),
	}, nil
}

// buildClickHouseConfig loads CLICKHOUSE_* variables and applies flags set on the command line.
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	cfg, err := clickhouse.Load()
	if err != nil {
		return clickhouse.Config{}, err
	}

	if c.IsSet("clickhouse-hosts") {
		cfg.Hosts = splitHosts(c.StringSlice("clickhouse-hosts"))
	}
	if c.IsSet("clickhouse-database") {
		cfg.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-username") {
		cfg.Username = c.String("clickhouse-username")
	}
	if c.IsSet("clickhouse-password") {
		cfg.Password = c.String("clickhouse-password")
	}
	if c.IsSet("clickhouse-events-table") {
		cfg.EventsTable = c.String("clickhouse-events-table")
	}
	return cfg, nil
}

// buildKafkaConfig loads KAFKA_* variables and applies flags set on the command line.
func buildKafkaConfig(c *cli.Context) (kafka.FollowerConfig, kafka.PublisherConfig, error) {
	follower, err := kafka.LoadFollowerConfig()
	if err != nil {
		return kafka.FollowerConfig{}, kafka.PublisherConfig{}, err
	}
	publish, err := kafka.LoadPublisherConfig()
	if err != nil {
		return kafka.FollowerConfig{}, kafka.PublisherConfig{}, err
	}

	if c.IsSet("kafka-brokers") {
		follower.BootstrapServers = c.String("kafka-brokers")
		publish.BootstrapServers = c.String("kafka-brokers")
	}
	if c.IsSet("kafka-topic") {
		follower.Topic = c.String("kafka-topic")
		publish.Topic = c.String("kafka-topic")
	}
	if c.IsSet("kafka-enable-logs") {
		follower.EnableLogs = c.Bool("kafka-enable-logs")
		publish.EnableLogs = c.Bool("kafka-enable-logs")
	}
	if c.IsSet("kafka-topic-num-partitions") {
		publish.NumPartitions = c.Int("kafka-topic-num-partitions")
	}
	if c.IsSet("kafka-topic-replication-factor") {
		publish.ReplicationFactor = c.Int("kafka-topic-replication-factor")
	}
	return follower, publish, nil
}

// validateView checks that the chosen source has what it needs.
func (c *Config) validateView() error {
	switch c.Source {
	case sourceFile:
		if c.File == "" {
			return errors.New("--file is required for the file source")
		}
	case sourceClickHouse:
		if c.JobID == "" {
			return errors.New("--job-id is required for the clickhouse source")
		}
		if c.Follow && c.PollInterval <= 0 {
			return errors.New("--poll-interval must be greater than 0")
		}
	case sourceKafka:
		if c.JobID == "" {
			return errors.New("--job-id is required for the kafka source")
		}
	default:
		return fmt.Errorf("invalid source %q: must be %s, %s or %s", c.Source, sourceFile, sourceClickHouse, sourceKafka)
	}
	if c.LagWatchdogInterval <= 0 {
		return errors.New("--lag-watchdog-interval must be greater than 0")
	}
	return nil
}

func splitHosts(hosts []string) []string {
	// A single comma-separated value arrives as one element.
	if len(hosts) == 1 && strings.Contains(hosts[0], ",") {
		hosts = strings.Split(hosts[0], ",")
	}
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
