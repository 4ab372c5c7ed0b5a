package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const metadataTimeout = 10 * time.Second

// TopicAdmin is the subset of *kafka.AdminClient used to manage the output topic.
type TopicAdmin interface {
	GetMetadata(topic *string, allTopics bool, timeoutMs int) (*kafka.Metadata, error)
	CreateTopics(ctx context.Context, topics []kafka.TopicSpecification, options ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error)
	CreatePartitions(ctx context.Context, partitions []kafka.PartitionsSpecification, options ...kafka.CreatePartitionsAdminOption) ([]kafka.TopicResult, error)
}

var _ TopicAdmin = (*kafka.AdminClient)(nil)

// TopicConfig describes the job output topic.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

func (tc TopicConfig) Validate() error {
	if tc.Name == "" {
		return errors.New("topic name cannot be empty")
	}
	if tc.NumPartitions <= 0 {
		return fmt.Errorf("number of partitions must be > 0, got %d", tc.NumPartitions)
	}
	if tc.ReplicationFactor <= 0 {
		return fmt.Errorf("replication factor must be > 0, got %d", tc.ReplicationFactor)
	}
	return nil
}

// TopicExists returns the topic's metadata, or nil if the topic does not exist.
func TopicExists(admin TopicAdmin, name string) (*kafka.TopicMetadata, error) {
	metadata, err := admin.GetMetadata(&name, false, int(metadataTimeout.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata for topic %q: %w", name, err)
	}

	topic, ok := metadata.Topics[name]
	if !ok || topic.Error.Code() == kafka.ErrUnknownTopicOrPart {
		return nil, nil
	}
	if topic.Error.Code() != kafka.ErrNoError {
		return nil, fmt.Errorf("topic %q has error: %w", name, topic.Error)
	}
	return &topic, nil
}

// EnsureTopic creates the topic if it is missing and raises its partition
// count if it has fewer than configured. Extra partitions and a differing
// replication factor are logged and left alone.
func EnsureTopic(ctx context.Context, admin TopicAdmin, cfg TopicConfig, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid topic config: %w", err)
	}

	topic, err := TopicExists(admin, cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to check topic existence: %w", err)
	}
	if topic == nil {
		return createTopic(ctx, admin, cfg, log)
	}

	partitions := len(topic.Partitions)
	if rf := replicationFactor(topic); rf != cfg.ReplicationFactor {
		log.Warnw("topic replication factor differs from config",
			"topic", cfg.Name,
			"current", rf,
			"desired", cfg.ReplicationFactor,
		)
	}

	switch {
	case partitions < cfg.NumPartitions:
		return increasePartitions(ctx, admin, cfg.Name, cfg.NumPartitions, log)
	case partitions > cfg.NumPartitions:
		log.Warnw("topic has more partitions than configured, keeping them",
			"topic", cfg.Name,
			"current", partitions,
			"desired", cfg.NumPartitions,
		)
	}
	return nil
}

func createTopic(ctx context.Context, admin TopicAdmin, cfg TopicConfig, log *zap.SugaredLogger) error {
	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic %q: %w", cfg.Name, err)
	}

	for _, result := range results {
		switch result.Error.Code() {
		case kafka.ErrNoError:
			log.Infow("created topic",
				"topic", result.Topic,
				"partitions", cfg.NumPartitions,
				"replicationFactor", cfg.ReplicationFactor,
			)
		case kafka.ErrTopicAlreadyExists:
			// Lost a race with another publisher.
			log.Infow("topic already exists", "topic", result.Topic)
		default:
			return fmt.Errorf("failed to create topic %q: %w", result.Topic, result.Error)
		}
	}
	return nil
}

func increasePartitions(ctx context.Context, admin TopicAdmin, name string, count int, log *zap.SugaredLogger) error {
	results, err := admin.CreatePartitions(ctx, []kafka.PartitionsSpecification{{
		Topic:      name,
		IncreaseTo: count,
	}})
	if err != nil {
		return fmt.Errorf("failed to increase partitions for topic %q: %w", name, err)
	}
	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError {
			return fmt.Errorf("failed to increase partitions for topic %q: %w", result.Topic, result.Error)
		}
		log.Infow("increased partitions", "topic", result.Topic, "partitions", count)
	}
	return nil
}

func replicationFactor(topic *kafka.TopicMetadata) int {
	if len(topic.Partitions) == 0 {
		return 0
	}
	return len(topic.Partitions[0].Replicas)
}
