// internal/service/loyalty/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/pkg/mq"
	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
)

// PurchaseProcessor 是消费者驱动的应用服务入口
type PurchaseProcessor interface {
	ProcessPurchase(ctx context.Context, req *application.PurchaseRequest) (*application.PurchaseResult, error)
}

// messageReader 抽象出 kafka.Reader 中消费者用到的方法
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PurchaseConsumerAdapter 是一个驱动适配器，它监听上游的购买事件并驱动购买编排。
type PurchaseConsumerAdapter struct {
	reader    messageReader
	processor PurchaseProcessor
	topic     string
	wg        sync.WaitGroup
}

// NewPurchaseConsumerAdapter 创建一个新的Kafka消费者适配器。
func NewPurchaseConsumerAdapter(reader *kafka.Reader, processor PurchaseProcessor) *PurchaseConsumerAdapter {
	return newPurchaseConsumer(reader, processor, reader.Config().Topic)
}

func newPurchaseConsumer(reader messageReader, processor PurchaseProcessor, topic string) *PurchaseConsumerAdapter {
	return &PurchaseConsumerAdapter{reader: reader, processor: processor, topic: topic}
}

// Start 开始监听Kafka主题，直到 ctx 被取消。
func (a *PurchaseConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Info().Str("topic", a.topic).Msg("✅ purchase consumer started")
		for {
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("🛑 purchase consumer shutting down")
					return
				}
				log.Error().Err(err).Msg("could not read message, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			a.processMessage(ctx, msg)

			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
			}
		}
	}()
}

// Stop 关闭 reader 并等待消费循环退出。调用前应先取消 Start 的 ctx。
func (a *PurchaseConsumerAdapter) Stop() {
	if err := a.reader.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka reader")
	}
	a.wg.Wait()
	log.Info().Msg("✅ purchase consumer stopped")
}

// processMessage 反序列化消息、恢复追踪上下文并调用应用服务。
// 业务拒绝（校验失败、余额不足等）不会重试，消息照常提交。
func (a *PurchaseConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(parentCtx, &headerCarrier)

	// 单条消息的 panic 不能拖垮消费循环，否则同一 offset 会被反复拉取
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().Interface("panic", r).Int64("offset", msg.Offset).Msg("💥 panic while processing purchase event, skipping")
		}
	}()

	var event domain.PurchaseRequested
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to unmarshal purchase event, skipping")
		return
	}

	_, err := a.processor.ProcessPurchase(ctx, application.ToPurchaseRequest(&event))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPersistence):
		logger.Ctx(ctx).Error().Err(err).Str("event_id", event.EventID).Msg("purchase event failed to persist")
	default:
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("purchase event rejected")
	}
}
