package chain

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

// PurchaseContext 在责任链中传递一次购买事件的全部状态。
// Account 是仓储中账户的副本，链路失败时直接丢弃即可，不会有部分写入可见。
type PurchaseContext struct {
	Ctx    context.Context
	Tracer trace.Tracer
	Now    time.Time

	Amount       float64
	Category     string
	RedeemPoints int64
	PaymentRef   string

	Policy  domain.PolicySnapshot // 进入时的策略快照，整条链路只读
	Account *domain.CustomerAccount

	// 依赖出站端口
	Rules     port.RuleEngine
	Purchases domain.PurchaseRepository

	// 各步骤的产出
	State        domain.PurchaseState
	Breakdown    domain.Breakdown
	Granted      *domain.PointGrant
	Allocations  []domain.Allocation
	PreviousTier domain.Tier
	Transaction  *domain.Transaction
}

// Handler 和 NextHandler 构成责任链
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(pc *PurchaseContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(pc *PurchaseContext) error {
	if h.next != nil {
		return h.next.Handle(pc)
	}
	return nil
}

// Build 按固定顺序组装购买处理链：
// 计算 → 发放 → 兑换 → 重算余额 → 等级 → 持久化
func Build() Handler {
	head := new(ComputePointsHandler)
	head.SetNext(new(GrantHandler)).
		SetNext(new(RedeemHandler)).
		SetNext(new(RecalculateHandler)).
		SetNext(new(TierHandler)).
		SetNext(new(PersistHandler))
	return head
}
