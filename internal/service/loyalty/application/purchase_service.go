// internal/service/loyalty/application/purchase_service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/pkg/metrics"
	"rewardledger/internal/service/loyalty/application/chain"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

// PurchaseDeps 汇总购买编排所需的仓储和出站端口
type PurchaseDeps struct {
	Policies  *PolicyLoader
	Accounts  domain.AccountRepository
	Purchases domain.PurchaseRepository
	Locker    port.CustomerLocker
	Payments  port.PaymentVerifier
	Publisher port.EventPublisher
	Rules     port.RuleEngine
	Metrics   *metrics.Recorder
}

// PurchaseService 只关注购买事件的流程编排：
// 校验 → 支付确认 → 客户锁 → 快照 → 责任链 → 发布事件
type PurchaseService struct {
	deps              PurchaseDeps
	tracer            trace.Tracer
	processingTimeout time.Duration
	now               func() time.Time
}

func NewPurchaseService(deps PurchaseDeps, tracer trace.Tracer, processingTimeout time.Duration) *PurchaseService {
	return &PurchaseService{
		deps:              deps,
		tracer:            tracer,
		processingTimeout: processingTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时钟，测试用
func (s *PurchaseService) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessPurchase 处理一次购买事件，要么完整生效，要么完全不生效
func (s *PurchaseService) ProcessPurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "service.ProcessPurchase")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.String("admin.id", req.AdminID),
		attribute.Float64("purchase.amount", req.Amount),
		attribute.String("purchase.category", req.Category),
		attribute.Int64("purchase.redeem_points", req.RedeemPoints),
	)

	result, err := s.processPurchase(ctx, req)
	s.observe(start, result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purchase rejected")
		logger.Ctx(ctx).Warn().Err(err).
			Str("customer_id", req.CustomerID).
			Float64("amount", req.Amount).
			Msg("purchase rejected")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("customer_id", result.CustomerID).
		Str("transaction_id", result.TransactionID).
		Int64("earned", result.EarnedPoints).
		Int64("redeemed", result.RedeemedPoints).
		Int64("balance", result.Balance).
		Msg("✅ purchase recorded")
	return result, nil
}

func (s *PurchaseService) processPurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	// 1. 参数校验，不触碰任何状态
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 2. 支付确认
	if err := s.deps.Payments.Confirm(ctx, req.CustomerID, req.PaymentRef, req.Amount); err != nil {
		if errors.Is(err, port.ErrPaymentNotConfirmed) {
			return nil, domain.Validationf("payment not confirmed: %s", req.PaymentRef)
		}
		return nil, errors.Wrap(err, "confirm payment")
	}

	if s.processingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processingTimeout)
		defer cancel()
	}

	// 3. 同一客户的购买串行执行
	unlock, err := s.deps.Locker.Lock(ctx, req.CustomerID)
	if err != nil {
		return nil, errors.Wrapf(err, "lock customer %s", req.CustomerID)
	}
	defer unlock()

	// 4. 进入时拷贝策略快照，之后的管理员修改不影响本次计算
	policy, err := s.deps.Policies.Snapshot(ctx, req.AdminID)
	if err != nil {
		return nil, err
	}
	account, err := s.deps.Accounts.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !account.BelongsTo(req.AdminID) {
		return nil, domain.NotFoundf("customer %s is not enrolled with admin %s", req.CustomerID, req.AdminID)
	}

	// 5. 在副本上执行责任链，失败时直接丢弃副本
	pc := &chain.PurchaseContext{
		Ctx:          ctx,
		Tracer:       s.tracer,
		Now:          s.now(),
		Amount:       req.Amount,
		Category:     req.Category,
		RedeemPoints: req.RedeemPoints,
		PaymentRef:   req.PaymentRef,
		Policy:       policy,
		Account:      account.Clone(),
		Rules:        s.deps.Rules,
		Purchases:    s.deps.Purchases,
		State:        domain.StateValidated,
	}
	if err := chain.Build().Handle(pc); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("state", string(pc.State)).Msg("purchase chain aborted, discarding working copy")
		return nil, err
	}

	// 6. 交易已提交，事件发布失败只记日志
	s.publish(ctx, pc)

	return &PurchaseResult{
		TransactionID:  pc.Transaction.ID,
		CustomerID:     pc.Account.ID,
		EarnedPoints:   pc.Breakdown.EarnedPoints,
		RedeemedPoints: pc.RedeemPoints,
		Balance:        pc.Account.PointsBalance,
		Tier:           pc.Account.Tier,
		PreviousTier:   pc.PreviousTier,
		Breakdown:      pc.Breakdown,
		CreatedAt:      pc.Transaction.CreatedAt,
	}, nil
}

func (s *PurchaseService) publish(ctx context.Context, pc *chain.PurchaseContext) {
	if s.deps.Publisher == nil {
		return
	}
	event := &domain.TransactionRecorded{
		EventID:        uuid.NewString(),
		TransactionID:  pc.Transaction.ID,
		AdminID:        pc.Account.AdminID,
		CustomerID:     pc.Account.ID,
		EarnedPoints:   pc.Breakdown.EarnedPoints,
		RedeemedPoints: pc.RedeemPoints,
		Balance:        pc.Account.PointsBalance,
		Tier:           pc.Account.Tier,
		PreviousTier:   pc.PreviousTier,
		OccurredAt:     pc.Now,
	}
	if err := s.deps.Publisher.PublishTransaction(ctx, event); err != nil {
		trace.SpanFromContext(ctx).AddEvent("transaction event not published")
		logger.Ctx(ctx).Error().Err(err).Str("transaction_id", event.TransactionID).Msg("failed to publish transaction event")
	}
}

func (s *PurchaseService) observe(start time.Time, result *PurchaseResult, err error) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.PurchaseLatency.Observe(time.Since(start).Seconds())
	m.Purchases.WithLabelValues(purchaseOutcome(err)).Inc()
	if result == nil {
		return
	}
	// Counter 不允许减少，负值会直接 panic
	if result.EarnedPoints > 0 {
		m.PointsEarned.Add(float64(result.EarnedPoints))
	}
	if result.RedeemedPoints > 0 {
		m.PointsRedeemed.Add(float64(result.RedeemedPoints))
	}
	if result.Tier != result.PreviousTier {
		m.TierChanges.WithLabelValues(tierLabel(result.PreviousTier), tierLabel(result.Tier)).Inc()
	}
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrInsufficientBalance):
		return metrics.OutcomeInsufficient
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeFailed
	}
}

func tierLabel(t domain.Tier) string {
	if t == domain.TierNone {
		return "none"
	}
	return string(t)
}
