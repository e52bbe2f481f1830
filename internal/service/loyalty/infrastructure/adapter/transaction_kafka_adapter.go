package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"rewardledger/internal/pkg/mq"
	"rewardledger/internal/service/loyalty/domain"
)

// TransactionKafkaAdapter 实现了 port.EventPublisher 接口。
// 以 customerID 作为消息 key，同一客户的事件保持顺序。
type TransactionKafkaAdapter struct {
	writer *kafka.Writer
}

// NewTransactionKafkaAdapter 创建一个新的交易事件生产者适配器。
func NewTransactionKafkaAdapter(writer *kafka.Writer) *TransactionKafkaAdapter {
	return &TransactionKafkaAdapter{writer: writer}
}

func (a *TransactionKafkaAdapter) PublishTransaction(ctx context.Context, event *domain.TransactionRecorded) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction event: %w", err)
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(event.CustomerID), eventBytes)
}

// Close 关闭底层的Kafka writer。
func (a *TransactionKafkaAdapter) Close() error {
	return a.writer.Close()
}

// NoopPublisher 在未启用 Kafka 时使用
type NoopPublisher struct{}

func (NoopPublisher) PublishTransaction(context.Context, *domain.TransactionRecorded) error {
	return nil
}
