package port

import "rewardledger/internal/service/loyalty/domain"

// EarnFact 是评估积分资格规则时可用的事实
type EarnFact struct {
	Amount   float64
	Category string
	Tier     domain.Tier
}

// RuleEngine 评估策略上的 EarnRule 表达式。
// 领域层只依赖这个接口，具体规则引擎由基础设施层适配。
type RuleEngine interface {
	// Validate 在保存策略前检查表达式能否编译且结果为 bool
	Validate(rule string) error
	Evaluate(rule string, fact EarnFact) (bool, error)
}
