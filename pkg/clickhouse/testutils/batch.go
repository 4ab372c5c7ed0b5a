package testutils

import (
	"github.com/ClickHouse/clickhouse-go/v2/lib/column"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

var _ driver.Batch = (*MockBatch)(nil)

// MockBatch is a mock implementation of driver.Batch. Appended rows are kept in
// Appended for assertions.
type MockBatch struct {
	mock.Mock
	Appended [][]any
	sent     bool
}

func (b *MockBatch) Abort() error {
	return b.Called().Error(0)
}

func (b *MockBatch) Append(v ...any) error {
	b.Appended = append(b.Appended, v)
	return b.Called(v...).Error(0)
}

func (b *MockBatch) AppendStruct(v any) error {
	return b.Called(v).Error(0)
}

func (b *MockBatch) Column(int) driver.BatchColumn {
	return nil
}

func (b *MockBatch) Flush() error {
	return b.Called().Error(0)
}

func (b *MockBatch) Send() error {
	err := b.Called().Error(0)
	if err == nil {
		b.sent = true
	}
	return err
}

func (b *MockBatch) IsSent() bool {
	return b.sent
}

func (b *MockBatch) Rows() int {
	return len(b.Appended)
}

func (b *MockBatch) Columns() []column.Interface {
	return nil
}

func (b *MockBatch) Close() error {
	return b.Called().Error(0)
}
