package testutils

import (
	"testing"

	"github.com/ava-labs/logwindow/pkg/kafka/messages"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger returns a logger that writes through t.
func NewTestLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

// NewTestMessage builds a consumed message at the given position.
func NewTestMessage(topic string, partition int32, offset int64, key, value []byte) *kafka.Message {
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: partition,
			Offset:    kafka.Offset(offset),
		},
		Key:   key,
		Value: value,
	}
}

// NewJobEventMessage builds a consumed job event for rec, keyed by jobID.
func NewJobEventMessage(t *testing.T, topic string, offset int64, jobID string, rec slidingwindow.Record) *kafka.Message {
	t.Helper()
	ev := messages.NewJobEvent(jobID, rec)
	value, err := ev.Marshal()
	require.NoError(t, err)
	return NewTestMessage(topic, 0, offset, []byte(jobID), value)
}
