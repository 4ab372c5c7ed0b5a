package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/logwindow/pkg/kafka/processor"
	"github.com/ava-labs/logwindow/pkg/metrics"
	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Follower consumes the job output topic and hands every message to a
// processor, one at a time. It never commits offsets: a viewer is read-only
// and replays the topic from the configured reset position on every start.
// Processing failures are logged and counted; they do not stop the follower.
type Follower struct {
	consumer  *cKafka.Consumer
	processor processor.Processor
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	cfg       FollowerConfig

	logsDone chan struct{}
	doneCh   chan struct{}
}

// NewFollower creates a Follower for cfg.Topic.
func NewFollower(
	log *zap.SugaredLogger,
	cfg FollowerConfig,
	p processor.Processor,
	m *metrics.Metrics,
) (*Follower, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if p == nil {
		return nil, errors.New("invalid processor: must not be nil")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	consumer, err := cKafka.NewConsumer(&cKafka.ConfigMap{
		"bootstrap.servers":        cfg.BootstrapServers,
		"group.id":                 cfg.GroupID,
		"auto.offset.reset":        cfg.AutoOffsetReset,
		"enable.auto.commit":       false,
		"enable.auto.offset.store": false,
		"session.timeout.ms":       int(cfg.SessionTimeout.Milliseconds()),
		"go.logs.channel.enable":   cfg.EnableLogs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Follower{
		consumer:  consumer,
		processor: p,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		logsDone:  make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Run subscribes to the topic and processes messages until ctx is done or the
// client reports a fatal error. The consumer is closed on return.
func (f *Follower) Run(ctx context.Context) error {
	if f.cfg.EnableLogs {
		go f.forwardLogs(ctx)
	} else {
		close(f.logsDone)
	}

	err := f.consumer.SubscribeTopics([]string{f.cfg.Topic}, f.rebalance)
	if err != nil {
		err = fmt.Errorf("failed to subscribe to topic %q: %w", f.cfg.Topic, err)
	} else {
		f.log.Infow("following job output", "topic", f.cfg.Topic, "groupID", f.cfg.GroupID)
		err = f.poll(ctx)
	}

	if closeErr := f.close(); closeErr != nil {
		f.log.Errorw("failed to close follower", "error", closeErr)
		err = errors.Join(err, closeErr)
	}
	return err
}

func (f *Follower) poll(ctx context.Context) error {
	timeoutMs := int(f.cfg.PollTimeout.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			f.log.Info("context done, stopping follower")
			return nil
		default:
		}

		ev := f.consumer.Poll(timeoutMs)
		if ev == nil {
			continue
		}
		if err := f.handle(ctx, ev); err != nil {
			return err
		}
	}
}

// handle processes one polled event. Only fatal client errors are returned.
func (f *Follower) handle(ctx context.Context, ev cKafka.Event) error {
	switch e := ev.(type) {
	case *cKafka.Message:
		err := f.processor.Process(ctx, e)
		f.metrics.RecordFollowerMessage(err)
		if err != nil {
			f.log.Warnw("failed to process job output message",
				"partition", e.TopicPartition.Partition,
				"offset", e.TopicPartition.Offset,
				"error", err,
			)
		}
	case cKafka.Error:
		if e.IsFatal() {
			return fmt.Errorf("fatal kafka error: %w", e)
		}
		f.log.Warnw("kafka error (non-fatal)", "code", e.Code(), "error", e)
	default:
		f.log.Debugw("ignoring kafka event", "event", e)
	}
	return nil
}

func (f *Follower) rebalance(kc *cKafka.Consumer, event cKafka.Event) error {
	switch ev := event.(type) {
	case cKafka.AssignedPartitions:
		f.log.Infow("partitions assigned", "count", len(ev.Partitions), "partitions", ev.Partitions)
	case cKafka.RevokedPartitions:
		f.log.Infow("partitions revoked", "count", len(ev.Partitions), "partitions", ev.Partitions)
		if kc.AssignmentLost() {
			f.log.Warn("assignment lost involuntarily")
		}
	default:
		f.log.Warnw("unexpected rebalance event", "event", event)
	}
	return nil
}

func (f *Follower) close() error {
	close(f.doneCh)
	<-f.logsDone
	return f.consumer.Close()
}

func (f *Follower) forwardLogs(ctx context.Context) {
	defer close(f.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.doneCh:
			return
		case entry, ok := <-f.consumer.Logs():
			if !ok {
				return
			}
			f.log.Debugw("librdkafka", "level", entry.Level, "tag", entry.Tag, "message", entry.Message)
		}
	}
}
