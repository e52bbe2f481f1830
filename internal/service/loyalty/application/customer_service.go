// internal/service/loyalty/application/customer_service.go
package application

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardledger/internal/pkg/logger"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

// CustomerService 负责客户登记和各类只读视图（档案、流水、排行、过期预警）
type CustomerService struct {
	accounts          domain.AccountRepository
	transactions      domain.TransactionRepository
	policies          domain.PolicyRepository
	locker            port.CustomerLocker
	tracer            trace.Tracer
	expiryWarningDays int
	leaderboardSize   int
	lockWait          time.Duration
	now               func() time.Time
}

func NewCustomerService(accounts domain.AccountRepository, transactions domain.TransactionRepository, policies domain.PolicyRepository, locker port.CustomerLocker, tracer trace.Tracer, expiryWarningDays, leaderboardSize int) *CustomerService {
	if leaderboardSize <= 0 {
		leaderboardSize = 5
	}
	return &CustomerService{
		accounts:          accounts,
		transactions:      transactions,
		policies:          policies,
		locker:            locker,
		tracer:            tracer,
		expiryWarningDays: expiryWarningDays,
		leaderboardSize:   leaderboardSize,
		lockWait:          2 * time.Second,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetClock 替换时钟，测试用
func (s *CustomerService) SetClock(now func() time.Time) {
	s.now = now
}

// SetLockWait 设置 Profile 回写前等待客户锁的最长时间
func (s *CustomerService) SetLockWait(d time.Duration) {
	s.lockWait = d
}

// RegisterCustomer 在商户下登记一个新客户，邮箱全局唯一
func (s *CustomerService) RegisterCustomer(ctx context.Context, adminID string, req RegisterCustomerRequest) (*CustomerProfile, error) {
	ctx, span := s.tracer.Start(ctx, "service.RegisterCustomer", trace.WithAttributes(attribute.String("admin.id", adminID)))
	defer span.End()

	account, err := domain.NewCustomerAccount(adminID, req.Name, req.Email, s.now())
	if err != nil {
		return nil, fail(span, err)
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fail(span, err)
	}
	logger.Ctx(ctx).Info().Str("admin_id", adminID).Str("customer_id", account.ID).Msg("customer registered")
	return toProfile(account, 0), nil
}

// Profile 返回客户档案。余额从账本重算，与缓存不一致时回写。
// 回写和购买共用客户锁；拿不到锁时只返回重算结果，不回写。
func (s *CustomerService) Profile(ctx context.Context, customerID string) (*CustomerProfile, error) {
	ctx, span := s.tracer.Start(ctx, "service.Profile", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	canWrite := false
	if s.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		unlock, err := s.locker.Lock(lockCtx, customerID)
		cancel()
		if err != nil {
			span.AddEvent("customer lock unavailable, read only")
			logger.Ctx(ctx).Debug().Err(err).Str("customer_id", customerID).Msg("profile served without balance write-back")
		} else {
			defer unlock()
			canWrite = true
		}
	}

	account, err := s.accounts.FindByID(ctx, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	now := s.now()
	if account.RecalculateBalance(now) && canWrite {
		// 回写失败不影响读取结果，下次读取会再次修正
		if err := s.accounts.Save(ctx, account); err != nil {
			span.AddEvent("balance refresh not persisted")
			logger.Ctx(ctx).Warn().Err(err).Str("customer_id", customerID).Msg("failed to persist refreshed balance")
		}
	}
	return toProfile(account, s.expiring(account, now)), nil
}

// ListCustomers 返回商户下全部客户，余额按当前时间重算
func (s *CustomerService) ListCustomers(ctx context.Context, adminID string) ([]*CustomerProfile, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListCustomers")
	defer span.End()

	accounts, err := s.accounts.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	now := s.now()
	out := make([]*CustomerProfile, 0, len(accounts))
	for _, a := range accounts {
		a.RecalculateBalance(now)
		out = append(out, toProfile(a, s.expiring(a, now)))
	}
	return out, nil
}

// UpdateTier 管理员手动设置客户等级。下一次购买会按余额重新评估。
func (s *CustomerService) UpdateTier(ctx context.Context, adminID, customerID string, tier domain.Tier) (*CustomerProfile, error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateTier", trace.WithAttributes(
		attribute.String("customer.id", customerID),
		attribute.String("tier", string(tier)),
	))
	defer span.End()

	account, err := s.ownedAccount(ctx, adminID, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := account.SetTier(tier); err != nil {
		return nil, fail(span, err)
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, fail(span, err)
	}
	return toProfile(account, s.expiring(account, s.now())), nil
}

// TierInfo 返回客户当前等级的权益和升级差距
func (s *CustomerService) TierInfo(ctx context.Context, customerID string) (*TierInfo, error) {
	ctx, span := s.tracer.Start(ctx, "service.TierInfo")
	defer span.End()

	account, err := s.accounts.FindByID(ctx, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	account.RecalculateBalance(s.now())
	info := &TierInfo{Tier: account.Tier, Multiplier: 1, PointsBalance: account.PointsBalance}

	policy, err := s.policies.FindByAdmin(ctx, account.AdminID)
	if errors.Is(err, domain.ErrNotFound) {
		return info, nil
	}
	if err != nil {
		return nil, fail(span, err)
	}
	if rule, ok := policy.TierRuleFor(account.Tier); ok {
		info.Multiplier = rule.Multiplier
		info.Benefits = rule.Benefits
	}
	if next, ok := nextTier(policy.TierRules, account.PointsBalance); ok {
		info.NextTier = next.TierName
		info.PointsToNext = next.MinPoints - account.PointsBalance
	}
	return info, nil
}

// nextTier 找出门槛高于当前余额的最低一级
func nextTier(rules []domain.TierRule, balance int64) (domain.TierRule, bool) {
	var best domain.TierRule
	found := false
	for _, r := range rules {
		if r.MinPoints <= balance {
			continue
		}
		if !found || r.MinPoints < best.MinPoints {
			best, found = r, true
		}
	}
	return best, found
}

// History 返回客户自己的交易流水，新的在前
func (s *CustomerService) History(ctx context.Context, customerID string) (*History, error) {
	ctx, span := s.tracer.Start(ctx, "service.History")
	defer span.End()

	account, err := s.accounts.FindByID(ctx, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	h, err := s.history(ctx, account)
	if err != nil {
		return nil, fail(span, err)
	}
	return h, nil
}

// CustomerHistory 是管理员查看名下某客户流水的入口
func (s *CustomerService) CustomerHistory(ctx context.Context, adminID, customerID string) (*History, error) {
	ctx, span := s.tracer.Start(ctx, "service.CustomerHistory")
	defer span.End()

	account, err := s.ownedAccount(ctx, adminID, customerID)
	if err != nil {
		return nil, fail(span, err)
	}
	h, err := s.history(ctx, account)
	if err != nil {
		return nil, fail(span, err)
	}
	return h, nil
}

func (s *CustomerService) history(ctx context.Context, account *domain.CustomerAccount) (*History, error) {
	txns, err := s.transactions.ListByCustomer(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.RecalculateBalance(s.now())
	return &History{
		CustomerID:    account.ID,
		PointsBalance: account.PointsBalance,
		Tier:          account.Tier,
		Transactions:  txns,
	}, nil
}

// Expiring 列出预警窗口内有积分即将过期的客户
func (s *CustomerService) Expiring(ctx context.Context, adminID string) ([]*ExpiringPoints, error) {
	ctx, span := s.tracer.Start(ctx, "service.Expiring", trace.WithAttributes(attribute.Int("window.days", s.expiryWarningDays)))
	defer span.End()

	accounts, err := s.accounts.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	now := s.now()
	out := make([]*ExpiringPoints, 0)
	for _, a := range accounts {
		points := s.expiring(a, now)
		if points <= 0 {
			continue
		}
		out = append(out, &ExpiringPoints{
			CustomerID: a.ID,
			Name:       a.Name,
			Email:      a.Email,
			Points:     points,
			WithinDays: s.expiryWarningDays,
		})
	}
	return out, nil
}

// Leaderboard 按累计消费额排序（相同时按累计获得积分），取前 N 名
func (s *CustomerService) Leaderboard(ctx context.Context, adminID string) ([]*LeaderboardEntry, error) {
	ctx, span := s.tracer.Start(ctx, "service.Leaderboard")
	defer span.End()

	accounts, err := s.accounts.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}
	txns, err := s.transactions.ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, fail(span, err)
	}

	byCustomer := make(map[string]*LeaderboardEntry, len(accounts))
	for _, a := range accounts {
		byCustomer[a.ID] = &LeaderboardEntry{CustomerID: a.ID, Name: a.Name, Email: a.Email}
	}
	for _, t := range txns {
		e, ok := byCustomer[t.CustomerID]
		if !ok {
			continue
		}
		e.TotalSpent += t.Amount
		e.TotalPoints += t.EarnedPoints
	}

	entries := make([]*LeaderboardEntry, 0, len(byCustomer))
	for _, e := range byCustomer {
		if e.TotalSpent > 0 {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalSpent != entries[j].TotalSpent {
			return entries[i].TotalSpent > entries[j].TotalSpent
		}
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].CustomerID < entries[j].CustomerID
	})
	if len(entries) > s.leaderboardSize {
		entries = entries[:s.leaderboardSize]
	}
	return entries, nil
}

func (s *CustomerService) ownedAccount(ctx context.Context, adminID, customerID string) (*domain.CustomerAccount, error) {
	account, err := s.accounts.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !account.BelongsTo(adminID) {
		return nil, domain.NotFoundf("customer %s", customerID)
	}
	return account, nil
}

func (s *CustomerService) expiring(a *domain.CustomerAccount, now time.Time) int64 {
	if s.expiryWarningDays <= 0 {
		return 0
	}
	return a.Ledger.ExpiringWithin(s.expiryWarningDays, now)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
