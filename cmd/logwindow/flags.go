package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

const (
	sourceFile       = "file"
	sourceClickHouse = "clickhouse"
	sourceKafka      = "kafka"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "job-id",
			Aliases: []string{"j"},
			Usage:   "The job whose output is viewed, published or loaded",
			EnvVars: []string{"JOB_ID"},
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Job output file (plain text, .gz or .zst)",
			EnvVars: []string{"JOB_OUTPUT_FILE"},
		},
	}
}

// clickHouseFlags override values loaded from CLICKHOUSE_* environment variables.
func clickHouseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "clickhouse-hosts",
			Usage: "ClickHouse server hosts (comma-separated)",
		},
		&cli.StringFlag{
			Name:  "clickhouse-database",
			Usage: "ClickHouse database name",
		},
		&cli.StringFlag{
			Name:  "clickhouse-username",
			Usage: "ClickHouse username",
		},
		&cli.StringFlag{
			Name:  "clickhouse-password",
			Usage: "ClickHouse password",
		},
		&cli.StringFlag{
			Name:  "clickhouse-events-table",
			Usage: "ClickHouse table holding job events",
		},
	}
}

// kafkaFlags override values loaded from KAFKA_* environment variables.
func kafkaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "kafka-brokers",
			Usage: "The Kafka brokers to use (comma-separated list)",
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Aliases: []string{"t"},
			Usage:   "The job output topic",
		},
		&cli.BoolFlag{
			Name:  "kafka-enable-logs",
			Usage: "Enable librdkafka client logs",
		},
	}
}

func viewFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "source",
			Aliases: []string{"s"},
			Usage:   "Where job output is read from: file, clickhouse or kafka",
			EnvVars: []string{"LOGWINDOW_SOURCE"},
			Value:   sourceFile,
		},
		&cli.BoolFlag{
			Name:    "follow",
			Aliases: []string{"F"},
			Usage:   "Keep reading output as the job produces it",
			EnvVars: []string{"LOGWINDOW_FOLLOW"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "How often ClickHouse is polled for new output when following",
			EnvVars: []string{"LOGWINDOW_POLL_INTERVAL"},
			Value:   2 * time.Second,
		},
		&cli.IntFlag{
			Name:    "event-limit",
			Aliases: []string{"l"},
			Usage:   "Maximum span of the window, in records",
			EnvVars: []string{"LOGWINDOW_EVENT_LIMIT"},
			Value:   1000,
		},
		&cli.IntFlag{
			Name:    "page-size",
			Aliases: []string{"p"},
			Usage:   "Records moved by a page step (must not exceed the event limit)",
			EnvVars: []string{"LOGWINDOW_PAGE_SIZE"},
			Value:   50,
		},
		&cli.IntFlag{
			Name:    "max-pending",
			Usage:   "Maximum queued window operations",
			EnvVars: []string{"LOGWINDOW_MAX_PENDING"},
			Value:   64,
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Where the viewer writes its logs",
			EnvVars: []string{"LOGWINDOW_LOG_FILE"},
			Value:   "logwindow.log",
		},
		&cli.DurationFlag{
			Name:    "lag-watchdog-interval",
			Usage:   "The interval to check how far the window trails the log",
			EnvVars: []string{"LAG_WATCHDOG_INTERVAL"},
			Value:   15 * time.Second,
		},
		&cli.Int64Flag{
			Name:    "lag-watchdog-max-lag",
			Usage:   "The lag, in records, above which a warning is logged",
			EnvVars: []string{"LAG_WATCHDOG_MAX_LAG"},
			Value:   10000,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server (0 disables it)",
			EnvVars: []string{"METRICS_PORT"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
	flags = append(flags, commonFlags()...)
	flags = append(flags, clickHouseFlags()...)
	return append(flags, kafkaFlags()...)
}

func publishFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:  "kafka-topic-num-partitions",
			Usage: "The number of partitions to use for the Kafka topic (must be greater than 0)",
		},
		&cli.IntFlag{
			Name:  "kafka-topic-replication-factor",
			Usage: "The replication factor to use for the Kafka topic (must be greater than 0)",
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "The Kafka client ID to use",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "logwindow",
		},
	}
	flags = append(flags, commonFlags()...)
	return append(flags, kafkaFlags()...)
}

func loadFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "batch-size",
			Aliases: []string{"b"},
			Usage:   "Records inserted per ClickHouse batch",
			EnvVars: []string{"LOAD_BATCH_SIZE"},
			Value:   1000,
		},
	}
	flags = append(flags, commonFlags()...)
	return append(flags, clickHouseFlags()...)
}
