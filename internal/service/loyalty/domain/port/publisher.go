package port

import (
	"context"

	"rewardledger/internal/service/loyalty/domain"
)

// EventPublisher 把已落库的交易广播给下游（通知、报表等）。
// 发布失败不影响已提交的交易。
type EventPublisher interface {
	PublishTransaction(ctx context.Context, event *domain.TransactionRecorded) error
}
