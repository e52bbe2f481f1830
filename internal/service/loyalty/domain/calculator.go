// internal/service/loyalty/domain/calculator.go
package domain

import "math"

// MaxPurchaseAmount 是单笔消费金额的上限
const MaxPurchaseAmount = 1e12

// MaxPointsPerPurchase 是单笔消费可得积分的上限，计算结果超出时截断
const MaxPointsPerPurchase int64 = 1 << 50

// Breakdown 是一次积分计算的明细，随交易记录一起保存用于审计
type Breakdown struct {
	BasePoints     int64   `json:"basePoints"`
	CategoryPoints int64   `json:"categoryPoints"`
	TierMultiplier float64 `json:"tierMultiplier"`
	ThresholdBonus int64   `json:"thresholdBonus"`
	EarnedPoints   int64   `json:"totalEarnedPoints"`
}

// ComputeEarnedPoints 根据策略计算一笔消费获得的积分。纯函数，无副作用。
//
// 调用方负责保证 amount > 0 且 category 非空。
// 品类规则是单次按键查找，不叠加；满额奖励对所有满足的门槛累加；
// 倍率取客户当前等级（而非本次消费后的等级）。
func ComputeEarnedPoints(amount float64, category string, tier Tier, policy PolicySnapshot) Breakdown {
	basePoints := floorPoints(amount / 100 * policy.BasePointsPer100)

	categoryPoints := basePoints
	if rule, ok := policy.CategoryRuleFor(category); ok && amount >= rule.MinAmount {
		categoryPoints = addPoints(floorPoints(amount/100*rule.PointsPer100), rule.BonusPoints)
	}

	tierMultiplier := 1.0
	if rule, ok := policy.TierRuleFor(tier); ok {
		tierMultiplier = rule.Multiplier
	}
	afterTier := floorPoints(float64(categoryPoints) * tierMultiplier)

	var thresholdBonus int64
	for _, t := range policy.SpendThresholds {
		if amount >= t.MinAmount {
			thresholdBonus = addPoints(thresholdBonus, t.BonusPoints)
		}
	}

	return Breakdown{
		BasePoints:     basePoints,
		CategoryPoints: categoryPoints,
		TierMultiplier: tierMultiplier,
		ThresholdBonus: thresholdBonus,
		EarnedPoints:   addPoints(afterTier, thresholdBonus),
	}
}

// floorPoints 向下取整并截断到 [0, MaxPointsPerPurchase]，超大的 float64 直接转 int64 会回绕成负数
func floorPoints(v float64) int64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(MaxPointsPerPurchase):
		return MaxPointsPerPurchase
	}
	return int64(math.Floor(v))
}

// addPoints 两个非负积分相加，结果不超过 MaxPointsPerPurchase
func addPoints(a, b int64) int64 {
	if a >= MaxPointsPerPurchase-b {
		return MaxPointsPerPurchase
	}
	return a + b
}
