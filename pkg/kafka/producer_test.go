package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/ava-labs/logwindow/pkg/kafka/testutils"
	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProducer(t *testing.T, ctx context.Context) *Producer {
	t.Helper()
	producer, err := NewProducer(ctx, &cKafka.ConfigMap{
		"bootstrap.servers": "localhost:9092",
	}, testutils.NewTestLogger(t))
	require.NoError(t, err)
	return producer
}

func TestNewProducer_NilLogger(t *testing.T) {
	_, err := NewProducer(context.Background(), &cKafka.ConfigMap{"bootstrap.servers": "localhost:9092"}, nil)
	require.Error(t, err)
}

func TestProducer_Close_Idempotent(t *testing.T) {
	producer := newTestProducer(t, context.Background())

	producer.Close(5 * time.Second)
	producer.Close(5 * time.Second)
}

func TestProducer_Close_ClosesErrors(t *testing.T) {
	producer := newTestProducer(t, context.Background())
	errCh := producer.Errors()
	require.Equal(t, 1, cap(errCh))

	producer.Close(100 * time.Millisecond)

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed after Close")
}

func TestProducer_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	producer := newTestProducer(t, ctx)

	cancel()
	<-producer.eventsDone
	<-producer.logsDone

	producer.Close(5 * time.Second)
}

func TestProducer_Produce_CanceledContext(t *testing.T) {
	producer := newTestProducer(t, context.Background())
	defer producer.Close(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := producer.Produce(ctx, Msg{Topic: "job-output", Value: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestToHeaders(t *testing.T) {
	assert.Nil(t, toHeaders(nil))

	headers := toHeaders(map[string]string{"job-id": "job-1"})
	require.Len(t, headers, 1)
	assert.Equal(t, "job-id", headers[0].Key)
	assert.Equal(t, []byte("job-1"), headers[0].Value)
}

func TestDeliveryResult(t *testing.T) {
	log := testutils.NewTestLogger(t)
	topic := "job-output"

	ok := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 4}}
	require.NoError(t, deliveryResult(log, ok))

	failed := &cKafka.Message{TopicPartition: cKafka.TopicPartition{
		Topic: &topic,
		Error: cKafka.NewError(cKafka.ErrMsgTimedOut, "timed out", false),
	}}
	require.ErrorContains(t, deliveryResult(log, failed), "delivery failed")

	require.ErrorContains(t, deliveryResult(log, cKafka.NewError(cKafka.ErrAllBrokersDown, "down", false)),
		"unexpected delivery event")
}
