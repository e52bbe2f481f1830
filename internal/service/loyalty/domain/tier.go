// internal/service/loyalty/domain/tier.go
package domain

import "sort"

// ResolveTier 根据当前余额选出最高的达标等级。
// 规则按 MinPoints 降序排列，取第一个 balance >= MinPoints 的；都不满足时为 TierNone。
// 等级没有保级机制：核销导致余额下降时等级会随之降低，因此当前等级不参与计算。
func ResolveTier(balance int64, rules []TierRule, _ Tier) Tier {
	sorted := append([]TierRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints > sorted[j].MinPoints
	})
	for _, r := range sorted {
		if balance >= r.MinPoints {
			return r.TierName
		}
	}
	return TierNone
}
