// Package messages provides the Kafka wire types for live job output,
// along with conversion functions to window records.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/logwindow/pkg/slidingwindow"
)

var (
	ErrJobIDRequired  = errors.New("job id is required")
	ErrInvalidCounter = errors.New("counter must be greater than 0")
	ErrInvalidSpan    = errors.New("end line must not be below start line")
)

// JobEvent is one record of a job's output as published on the output topic.
// Messages are keyed by JobID so every event of a job lands on one partition
// and is consumed in counter order.
type JobEvent struct {
	JobID     string `json:"jobId"`
	Counter   int64  `json:"counter"`
	StartLine int64  `json:"startLine"`
	EndLine   int64  `json:"endLine"`
	UUID      string `json:"uuid"`
	Stdout    string `json:"stdout"`
}

// NewJobEvent wraps a record of the given job.
func NewJobEvent(jobID string, r slidingwindow.Record) JobEvent {
	return JobEvent{
		JobID:     jobID,
		Counter:   r.Counter,
		StartLine: r.StartLine,
		EndLine:   r.EndLine,
		UUID:      r.Identity,
		Stdout:    r.Stdout,
	}
}

// Record converts the event back into a window record.
func (e JobEvent) Record() slidingwindow.Record {
	return slidingwindow.Record{
		Counter:   e.Counter,
		StartLine: e.StartLine,
		EndLine:   e.EndLine,
		Identity:  e.UUID,
		Stdout:    e.Stdout,
	}
}

func (e JobEvent) Validate() error {
	if e.JobID == "" {
		return ErrJobIDRequired
	}
	if e.Counter < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidCounter, e.Counter)
	}
	if e.EndLine < e.StartLine {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidSpan, e.StartLine, e.EndLine)
	}
	return nil
}

func (e *JobEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes and validates a job event.
func (e *JobEvent) Unmarshal(data []byte) error {
	if err := json.Unmarshal(data, e); err != nil {
		return err
	}
	return e.Validate()
}
