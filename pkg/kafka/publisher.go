package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/logwindow/pkg/kafka/messages"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"go.uber.org/zap"
)

// HeaderJobID carries the job id alongside the message key.
const HeaderJobID = "job-id"

// Publisher writes a job's records to the output topic as JSON job events,
// keyed by job id.
type Publisher struct {
	producer MessageProducer
	log      *zap.SugaredLogger
	topic    string
	jobID    string
}

func NewPublisher(producer MessageProducer, log *zap.SugaredLogger, topic, jobID string) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("invalid producer: must not be nil")
	}
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if topic == "" {
		return nil, errors.New("invalid topic: must not be empty")
	}
	if jobID == "" {
		return nil, messages.ErrJobIDRequired
	}
	return &Publisher{producer: producer, log: log, topic: topic, jobID: jobID}, nil
}

// Publish produces one record and waits for its delivery.
func (p *Publisher) Publish(ctx context.Context, r slidingwindow.Record) error {
	ev := messages.NewJobEvent(p.jobID, r)
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid record %d: %w", r.Counter, err)
	}
	value, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal record %d: %w", r.Counter, err)
	}

	err = p.producer.Produce(ctx, Msg{
		Topic:   p.topic,
		Key:     []byte(p.jobID),
		Value:   value,
		Headers: map[string]string{HeaderJobID: p.jobID},
	})
	if err != nil {
		return fmt.Errorf("failed to publish record %d: %w", r.Counter, err)
	}
	return nil
}

// PublishAll publishes records in order and stops at the first failure.
func (p *Publisher) PublishAll(ctx context.Context, records []slidingwindow.Record) (int, error) {
	for i, r := range records {
		if err := p.Publish(ctx, r); err != nil {
			return i, err
		}
	}
	p.log.Infow("published job output", "jobID", p.jobID, "topic", p.topic, "records", len(records))
	return len(records), nil
}
