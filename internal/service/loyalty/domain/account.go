// internal/service/loyalty/domain/account.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CustomerAccount 是客户积分账户聚合的根实体。
// PointsBalance 只是账本的派生缓存，任何时候都以 Ledger 为准，由 RecalculateBalance 刷新。
type CustomerAccount struct {
	ID            string
	AdminID       string
	Name          string
	Email         string
	Tier          Tier
	PointsBalance int64
	LifetimeSpend float64
	Ledger        *Ledger

	// Version 用于乐观锁，每次成功保存后递增
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCustomerAccount 工厂函数：在某个商户下创建一个空账户
func NewCustomerAccount(adminID, name, email string, now time.Time) (*CustomerAccount, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if adminID == "" || strings.TrimSpace(name) == "" || email == "" {
		return nil, validationf("adminId, name and email are required")
	}
	return &CustomerAccount{
		ID:        uuid.NewString(),
		AdminID:   adminID,
		Name:      strings.TrimSpace(name),
		Email:     email,
		Ledger:    NewLedger(nil),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RecalculateBalance 从账本重新计算可用余额，返回缓存值是否发生了变化
func (a *CustomerAccount) RecalculateBalance(now time.Time) bool {
	balance := a.Ledger.AvailableBalance(now)
	if balance == a.PointsBalance {
		return false
	}
	a.PointsBalance = balance
	return true
}

// ResolveTier 用最新余额重新评估等级，返回原等级
func (a *CustomerAccount) ResolveTier(rules []TierRule) Tier {
	prev := a.Tier
	a.Tier = ResolveTier(a.PointsBalance, rules, prev)
	return prev
}

// SetTier 是管理员手动调整等级的入口
func (a *CustomerAccount) SetTier(t Tier) error {
	if t == TierNone {
		return validationf("tier is required")
	}
	if _, err := ParseTier(string(t)); err != nil {
		return err
	}
	a.Tier = t
	return nil
}

// BelongsTo 判断账户是否归属于该商户
func (a *CustomerAccount) BelongsTo(adminID string) bool {
	return a.AdminID == adminID
}

// Clone 深拷贝账户（包括账本），处理失败时直接丢弃副本即可回滚
func (a *CustomerAccount) Clone() *CustomerAccount {
	cp := *a
	if a.Ledger != nil {
		cp.Ledger = a.Ledger.Clone()
	} else {
		cp.Ledger = NewLedger(nil)
	}
	return &cp
}
