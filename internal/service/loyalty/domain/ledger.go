// internal/service/loyalty/domain/ledger.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PointGrant 是一次积分发放，拥有自己的过期时间。
// Points 创建后只会减少；Redeemed 一旦为 true 就永久不计入余额。
type PointGrant struct {
	ID        string    `json:"id"`
	Points    int64     `json:"points"`
	EarnedAt  time.Time `json:"earnedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Redeemed  bool      `json:"redeemed"`
}

// Available 判断该笔积分在 now 时刻是否可用。到期时刻本身视为已过期。
func (g PointGrant) Available(now time.Time) bool {
	return !g.Redeemed && g.ExpiresAt.After(now)
}

// Ledger 是单个客户的积分明细账。
// 它是 grants 的唯一修改者：外部只能拿到拷贝。条目从不物理删除，过期与核销都只是逻辑状态。
type Ledger struct {
	grants []PointGrant
}

// NewLedger 从持久化数据恢复账本，grants 须按发放顺序排列
func NewLedger(grants []PointGrant) *Ledger {
	return &Ledger{grants: append([]PointGrant(nil), grants...)}
}

// Grant 追加一笔积分，过期时间按日历天计算
func (l *Ledger) Grant(points int64, expiryDays int, now time.Time) (PointGrant, error) {
	if points <= 0 {
		return PointGrant{}, validationf("grant points must be > 0, got %d", points)
	}
	if expiryDays < 0 {
		return PointGrant{}, validationf("expiryDays must be >= 0, got %d", expiryDays)
	}
	g := PointGrant{
		ID:        uuid.NewString(),
		Points:    points,
		EarnedAt:  now,
		ExpiresAt: now.AddDate(0, 0, expiryDays),
	}
	l.grants = append(l.grants, g)
	return g, nil
}

// AvailableBalance 汇总未核销且未过期的积分
func (l *Ledger) AvailableBalance(now time.Time) int64 {
	var sum int64
	for _, g := range l.grants {
		if g.Available(now) {
			sum += g.Points
		}
	}
	return sum
}

// ExpiringWithin 汇总在 days 天内（含边界）将要过期的可用积分
func (l *Ledger) ExpiringWithin(days int, now time.Time) int64 {
	horizon := now.AddDate(0, 0, days)
	var sum int64
	for _, g := range l.grants {
		if g.Available(now) && !g.ExpiresAt.After(horizon) {
			sum += g.Points
		}
	}
	return sum
}

// Grants 返回按发放顺序排列的明细拷贝
func (l *Ledger) Grants() []PointGrant {
	return append([]PointGrant(nil), l.grants...)
}

func (l *Ledger) Len() int {
	return len(l.grants)
}

// Clone 返回独立的账本副本，用于整笔购买失败时丢弃中间状态
func (l *Ledger) Clone() *Ledger {
	return NewLedger(l.grants)
}
