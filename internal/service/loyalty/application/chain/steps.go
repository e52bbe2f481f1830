package chain

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

// ComputePointsHandler 根据策略快照计算本次可得积分
type ComputePointsHandler struct {
	NextHandler
}

func (h *ComputePointsHandler) Handle(pc *PurchaseContext) error {
	_, span := pc.Tracer.Start(pc.Ctx, "chain.ComputePoints")
	defer span.End()

	eligible := true
	if pc.Policy.EarnRule != "" && pc.Rules != nil {
		ok, err := pc.Rules.Evaluate(pc.Policy.EarnRule, port.EarnFact{
			Amount:   pc.Amount,
			Category: pc.Category,
			Tier:     pc.Account.Tier,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "earn rule evaluation failed")
			return domain.Validationf("earn rule: %v", err)
		}
		eligible = ok
	}

	if eligible {
		pc.Breakdown = domain.ComputeEarnedPoints(pc.Amount, pc.Category, pc.Account.Tier, pc.Policy)
	} else {
		pc.Breakdown = domain.Breakdown{TierMultiplier: 1}
		span.AddEvent("Purchase not eligible under earn rule.")
	}
	span.SetAttributes(attribute.Int64("points.earned", pc.Breakdown.EarnedPoints))
	pc.State = domain.StatePointsComputed

	return h.executeNext(pc)
}

// GrantHandler 把获得的积分追加到账本
type GrantHandler struct {
	NextHandler
}

func (h *GrantHandler) Handle(pc *PurchaseContext) error {
	if pc.Breakdown.EarnedPoints > 0 {
		g, err := pc.Account.Ledger.Grant(pc.Breakdown.EarnedPoints, pc.Policy.EffectiveExpiryDays(), pc.Now)
		if err != nil {
			return err
		}
		pc.Granted = &g
	}
	pc.State = domain.StateGranted
	return h.executeNext(pc)
}

// RedeemHandler 按 FIFO 消耗积分，余额不足时整条链路中止
type RedeemHandler struct {
	NextHandler
}

func (h *RedeemHandler) Handle(pc *PurchaseContext) error {
	_, span := pc.Tracer.Start(pc.Ctx, "chain.Redeem")
	defer span.End()

	if pc.RedeemPoints > 0 && pc.Policy.MinRedeemPoints > 0 && pc.RedeemPoints < pc.Policy.MinRedeemPoints {
		err := domain.Validationf("must redeem at least %d points", pc.Policy.MinRedeemPoints)
		span.RecordError(err)
		span.SetStatus(codes.Error, "below minimum redemption")
		return err
	}

	allocations, err := domain.Redeem(pc.Account.Ledger, pc.RedeemPoints, pc.Now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redemption rejected")
		return err
	}
	pc.Allocations = allocations
	span.SetAttributes(
		attribute.Int64("points.redeemed", pc.RedeemPoints),
		attribute.Int("grants.touched", len(allocations)),
	)
	pc.State = domain.StateRedeemed

	return h.executeNext(pc)
}

// RecalculateHandler 从账本重算余额，并累计消费额
type RecalculateHandler struct {
	NextHandler
}

func (h *RecalculateHandler) Handle(pc *PurchaseContext) error {
	pc.Account.RecalculateBalance(pc.Now)
	pc.Account.LifetimeSpend += pc.Amount
	pc.State = domain.StateBalanceRecalculated
	return h.executeNext(pc)
}

// TierHandler 用新余额重新评估等级
type TierHandler struct {
	NextHandler
}

func (h *TierHandler) Handle(pc *PurchaseContext) error {
	pc.PreviousTier = pc.Account.ResolveTier(pc.Policy.TierRules)
	pc.State = domain.StateTierResolved
	return h.executeNext(pc)
}

// PersistHandler 在一个存储事务中写入账户和交易记录
type PersistHandler struct {
	NextHandler
}

func (h *PersistHandler) Handle(pc *PurchaseContext) error {
	ctx, span := pc.Tracer.Start(pc.Ctx, "chain.Persist")
	defer span.End()

	txn := domain.NewTransaction(pc.Account, pc.Amount, pc.Category, pc.Breakdown,
		pc.RedeemPoints, pc.Allocations, pc.PaymentRef, pc.Now)
	if err := pc.Purchases.CommitPurchase(ctx, pc.Account, txn); err != nil {
		err = domain.Persistence(err, "commit purchase")
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit purchase")
		return err
	}
	pc.Transaction = txn
	pc.State = domain.StatePersisted
	span.SetAttributes(attribute.String("transaction.id", txn.ID))

	return h.executeNext(pc)
}
