// internal/service/loyalty/domain/redemption.go
package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Allocation 记录一次核销从某笔发放中扣除了多少积分
type Allocation struct {
	GrantID string `json:"grantId"`
	Points  int64  `json:"points"`
	Closed  bool   `json:"closed"` // 该笔发放是否被整笔核销
}

// Redeem 按发放顺序（先进先出）核销 requested 积分。
// 余额不足时返回 ErrInsufficientBalance，账本保持不变。
func Redeem(l *Ledger, requested int64, now time.Time) ([]Allocation, error) {
	if requested < 0 {
		return nil, validationf("redeem points must be >= 0, got %d", requested)
	}
	if requested == 0 {
		return nil, nil
	}
	available := l.AvailableBalance(now)
	if requested > available {
		return nil, errors.Wrapf(ErrInsufficientBalance, "requested %d points, %d available", requested, available)
	}

	var allocations []Allocation
	remaining := requested
	for i := range l.grants {
		if remaining == 0 {
			break
		}
		g := &l.grants[i]
		if !g.Available(now) {
			continue
		}
		if g.Points <= remaining {
			remaining -= g.Points
			g.Redeemed = true
			allocations = append(allocations, Allocation{GrantID: g.ID, Points: g.Points, Closed: true})
		} else {
			g.Points -= remaining
			allocations = append(allocations, Allocation{GrantID: g.ID, Points: remaining})
			remaining = 0
		}
	}
	return allocations, nil
}
