package processor

import (
	"context"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Processor handles one consumed message. Messages of a partition are handed
// over one at a time, in offset order.
type Processor interface {
	Process(ctx context.Context, msg *cKafka.Message) error
}
