package testutils

import (
	"context"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/mock"
)

// MockProcessor is a processor.Processor that records the messages it was given.
type MockProcessor struct {
	mock.Mock

	mu        sync.Mutex
	processed []*kafka.Message
}

func (m *MockProcessor) Process(ctx context.Context, msg *kafka.Message) error {
	m.mu.Lock()
	m.processed = append(m.processed, msg)
	m.mu.Unlock()

	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Processed returns the messages seen so far, in call order.
func (m *MockProcessor) Processed() []*kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*kafka.Message(nil), m.processed...)
}
