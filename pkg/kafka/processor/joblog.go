package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/logwindow/pkg/kafka/messages"
	"github.com/ava-labs/logwindow/pkg/metrics"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"go.uber.org/zap"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Appender receives the records of the followed job in counter order.
type Appender interface {
	AppendRecord(r slidingwindow.Record) (bool, error)
}

// JobLog decodes job events of one job and appends them to a log. Events of
// other jobs sharing the topic are skipped. Redelivered events are ignored.
type JobLog struct {
	log     *zap.SugaredLogger
	jobID   string
	dst     Appender
	metrics *metrics.Metrics
}

func NewJobLog(log *zap.SugaredLogger, jobID string, dst Appender, m *metrics.Metrics) (*JobLog, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if jobID == "" {
		return nil, messages.ErrJobIDRequired
	}
	if dst == nil {
		return nil, errors.New("invalid log: must not be nil")
	}
	return &JobLog{log: log, jobID: jobID, dst: dst, metrics: m}, nil
}

func (p *JobLog) Process(_ context.Context, msg *cKafka.Message) error {
	if msg == nil || msg.Value == nil {
		return errors.New("received nil message or empty value")
	}
	// The key is the job id; skip foreign jobs before decoding.
	if msg.Key != nil && !bytes.Equal(msg.Key, []byte(p.jobID)) {
		return nil
	}

	var ev messages.JobEvent
	if err := ev.Unmarshal(msg.Value); err != nil {
		return fmt.Errorf("failed to unmarshal job event: %w", err)
	}
	if ev.JobID != p.jobID {
		return nil
	}

	appended, err := p.dst.AppendRecord(ev.Record())
	if err != nil {
		return fmt.Errorf("failed to append record %d: %w", ev.Counter, err)
	}
	if appended {
		p.metrics.AddRecordsAppended(1)
		p.log.Debugw("appended job event", "jobID", ev.JobID, "counter", ev.Counter)
	}
	return nil
}
