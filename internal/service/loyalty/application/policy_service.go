// internal/service/loyalty/application/policy_service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

// PolicyService 处理管理员对积分策略的维护
type PolicyService struct {
	policies     domain.PolicyRepository
	accounts     domain.AccountRepository
	transactions domain.TransactionRepository
	rules        port.RuleEngine
	tracer       trace.Tracer
	now          func() time.Time
}

func NewPolicyService(policies domain.PolicyRepository, accounts domain.AccountRepository, transactions domain.TransactionRepository, rules port.RuleEngine, tracer trace.Tracer) *PolicyService {
	return &PolicyService{
		policies:     policies,
		accounts:     accounts,
		transactions: transactions,
		rules:        rules,
		tracer:       tracer,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// UpsertPolicy 创建或整体更新商户策略。新建时未给出有效期则默认 365 天。
func (s *PolicyService) UpsertPolicy(ctx context.Context, adminID string, update domain.PolicySnapshot) (*domain.PolicySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpsertPolicy", trace.WithAttributes(attribute.String("admin.id", adminID)))
	defer span.End()

	now := s.now()
	current, err := s.policies.FindByAdmin(ctx, adminID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created := update.Snapshot()
		created.AdminID = adminID
		created.CreatedAt = now
		if created.PointsExpiryDays == 0 {
			created.PointsExpiryDays = domain.DefaultPointsExpiryDays
		}
		current = &created
	case err != nil:
		return nil, fail(span, err)
	default:
		current.ApplyUpdate(update)
	}

	if err := s.save(ctx, current, now); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Str("admin_id", adminID).Str("policy", current.Name).Msg("policy saved")
	return current, nil
}

// GetPolicy 返回商户当前策略
func (s *PolicyService) GetPolicy(ctx context.Context, adminID string) (*domain.PolicySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetPolicy")
	defer span.End()

	p, err := s.policies.FindByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	return p, nil
}

// DeletePolicy 删除商户策略，之后的购买会因找不到策略而被拒绝
func (s *PolicyService) DeletePolicy(ctx context.Context, adminID string) error {
	ctx, span := s.tracer.Start(ctx, "service.DeletePolicy")
	defer span.End()

	if err := s.policies.Delete(ctx, adminID); err != nil {
		return fail(span, err)
	}
	logger.Ctx(ctx).Info().Str("admin_id", adminID).Msg("policy deleted")
	return nil
}

// SetExpiryDays 只修改积分有效期，已发放积分的过期时间不变
func (s *PolicyService) SetExpiryDays(ctx context.Context, adminID string, days int) (*domain.PolicySnapshot, error) {
	return s.mutate(ctx, "service.SetExpiryDays", adminID, func(p *domain.PolicySnapshot) error {
		return p.SetExpiryDays(days)
	})
}

// UpsertCategoryRule 新增或替换一条品类规则
func (s *PolicyService) UpsertCategoryRule(ctx context.Context, adminID string, rule domain.CategoryRule) (*domain.PolicySnapshot, error) {
	return s.mutate(ctx, "service.UpsertCategoryRule", adminID, func(p *domain.PolicySnapshot) error {
		return p.UpsertCategoryRule(rule)
	})
}

// UpsertThreshold 新增或更新一条满额奖励
func (s *PolicyService) UpsertThreshold(ctx context.Context, adminID string, t domain.SpendThreshold) (*domain.PolicySnapshot, error) {
	return s.mutate(ctx, "service.UpsertThreshold", adminID, func(p *domain.PolicySnapshot) error {
		return p.UpsertThreshold(t)
	})
}

// UpsertTierRule 新增或替换一条等级规则
func (s *PolicyService) UpsertTierRule(ctx context.Context, adminID string, rule domain.TierRule) (*domain.PolicySnapshot, error) {
	return s.mutate(ctx, "service.UpsertTierRule", adminID, func(p *domain.PolicySnapshot) error {
		return p.UpsertTierRule(rule)
	})
}

// ListTierRules 返回商户配置的全部等级规则
func (s *PolicyService) ListTierRules(ctx context.Context, adminID string) ([]domain.TierRule, error) {
	p, err := s.GetPolicy(ctx, adminID)
	if err != nil {
		return nil, err
	}
	return p.TierRules, nil
}

// Summary 汇总商户下全部交易的积分发放和核销
func (s *PolicyService) Summary(ctx context.Context, adminID string) (*PolicySummary, error) {
	ctx, span := s.tracer.Start(ctx, "service.PolicySummary")
	defer span.End()

	p, err := s.policies.FindByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	accounts, err := s.accounts.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	txns, err := s.transactions.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}

	summary := &PolicySummary{
		PolicyName:       p.Name,
		CustomerCount:    len(accounts),
		TransactionCount: len(txns),
	}
	for _, t := range txns {
		summary.TotalIssued += t.EarnedPoints
		summary.TotalRedeemed += t.RedeemedPoints
	}
	summary.Outstanding = summary.TotalIssued - summary.TotalRedeemed
	return summary, nil
}

func (s *PolicyService) mutate(ctx context.Context, op, adminID string, fn func(p *domain.PolicySnapshot) error) (*domain.PolicySnapshot, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("admin.id", adminID)))
	defer span.End()

	p, err := s.policies.FindByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := fn(p); err != nil {
		return nil, fail(span, err)
	}
	if err := s.save(ctx, p, s.now()); err != nil {
		return nil, fail(span, err)
	}
	return p, nil
}

func (s *PolicyService) save(ctx context.Context, p *domain.PolicySnapshot, now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.EarnRule != "" && s.rules != nil {
		if err := s.rules.Validate(p.EarnRule); err != nil {
			return domain.Validationf("earnRule: %v", err)
		}
	}
	p.UpdatedAt = now
	return s.policies.Save(ctx, p)
}
