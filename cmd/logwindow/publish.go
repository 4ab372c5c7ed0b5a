package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/logwindow/pkg/joblog"
	"github.com/ava-labs/logwindow/pkg/kafka"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/ava-labs/logwindow/pkg/utils"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// publish streams a job output file to the output topic.
func publish(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}
	if cfg.JobID == "" || cfg.File == "" {
		return errors.New("--job-id and --file are required")
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"jobID", cfg.JobID,
		"file", cfg.File,
		"kafkaBrokers", cfg.KafkaPublish.BootstrapServers,
		"kafkaTopic", cfg.KafkaPublish.Topic,
		"kafkaTopicNumPartitions", cfg.KafkaPublish.NumPartitions,
		"kafkaTopicReplicationFactor", cfg.KafkaPublish.ReplicationFactor,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := readRecords(cfg.File)
	if err != nil {
		return err
	}

	adminClient, err := confluentKafka.NewAdminClient(&confluentKafka.ConfigMap{
		"bootstrap.servers": cfg.KafkaPublish.BootstrapServers,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer adminClient.Close()

	if err := kafka.EnsureTopic(ctx, adminClient, cfg.KafkaPublish.TopicConfig(), sugar); err != nil {
		return fmt.Errorf("failed to ensure kafka topic exists: %w", err)
	}

	producer, err := kafka.NewProducer(ctx, cfg.KafkaProducerConfig(), sugar)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	defer producer.Close(cfg.KafkaPublish.FlushTimeout)

	pub, err := kafka.NewPublisher(producer, sugar, cfg.KafkaPublish.Topic, cfg.JobID)
	if err != nil {
		return err
	}

	start := time.Now()
	published, err := pub.PublishAll(ctx, records)
	if err != nil {
		return fmt.Errorf("published %d of %d records: %w", published, len(records), err)
	}
	sugar.Infow("publish complete", "records", published, "duration", time.Since(start))
	return nil
}

// readRecords loads a job output file and returns its records in counter order.
func readRecords(path string) ([]slidingwindow.Record, error) {
	l, err := joblog.New(1)
	if err != nil {
		return nil, err
	}
	if _, err := joblog.LoadFile(path, l); err != nil {
		return nil, err
	}
	return l.FetchRange(context.Background(), slidingwindow.Range{Low: 1, High: l.MaxCounter()})
}
