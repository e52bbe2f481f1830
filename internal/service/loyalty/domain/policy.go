// internal/service/loyalty/domain/policy.go
package domain

import (
	"math"
	"time"
)

// Tier 是客户的会员等级。零值 TierNone 表示尚未获得任何等级。
type Tier string

const (
	TierNone     Tier = ""
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// DefaultPointsExpiryDays 是新建策略未指定有效期时使用的默认值
const DefaultPointsExpiryDays = 365

// ParseTier 校验等级名称。空串解析为 TierNone。
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierNone, TierSilver, TierGold, TierPlatinum:
		return t, nil
	default:
		return TierNone, validationf("unknown tier %q", s)
	}
}

// CategoryRule 针对某一消费品类的积分规则
type CategoryRule struct {
	Category     string  `json:"category" yaml:"category"`
	PointsPer100 float64 `json:"pointsPer100" yaml:"pointsPer100"`
	MinAmount    float64 `json:"minAmount" yaml:"minAmount"`
	BonusPoints  int64   `json:"bonusPoints" yaml:"bonusPoints"`
}

// SpendThreshold 单笔消费满额奖励，多个门槛可以同时生效
type SpendThreshold struct {
	MinAmount   float64 `json:"minAmount" yaml:"minAmount"`
	BonusPoints int64   `json:"bonusPoints" yaml:"bonusPoints"`
}

// TierRule 定义等级的准入积分和积分倍率
type TierRule struct {
	TierName   Tier    `json:"tierName" yaml:"tierName"`
	MinPoints  int64   `json:"minPoints" yaml:"minPoints"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	Benefits   string  `json:"benefits,omitempty" yaml:"benefits,omitempty"`
}

// PolicySnapshot 是某个商户管理员配置的积分策略。
// 一次购买处理全程只使用进入时拷贝的快照，管理员的并发修改不会影响进行中的计算。
type PolicySnapshot struct {
	AdminID          string           `json:"adminId" yaml:"adminId"`
	Name             string           `json:"policyName" yaml:"policyName"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	BasePointsPer100 float64          `json:"basePointsPer100" yaml:"basePointsPer100"`
	CategoryRules    []CategoryRule   `json:"categoryRules" yaml:"categoryRules"`
	SpendThresholds  []SpendThreshold `json:"spendThresholds" yaml:"spendThresholds"`
	TierRules        []TierRule       `json:"tierRules" yaml:"tierRules"`
	PointsExpiryDays int              `json:"pointsExpiryDays" yaml:"pointsExpiryDays"`
	RedemptionRate   float64          `json:"redemptionRate" yaml:"redemptionRate"`
	MinRedeemPoints  int64            `json:"minRedeemPoints" yaml:"minRedeemPoints"`

	// EarnRule 是可选的 CEL 表达式，变量为 amount / category / tier。
	// 表达式为 false 时本次消费不累积积分。
	EarnRule string `json:"earnRule,omitempty" yaml:"earnRule,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Validate 检查策略的数值范围，并按"后写覆盖"规则去重品类和等级规则。
func (p *PolicySnapshot) Validate() error {
	if p.AdminID == "" {
		return validationf("policy has no admin")
	}
	if p.Name == "" {
		return validationf("policyName is required")
	}
	if !finiteNonNegative(p.BasePointsPer100) {
		return validationf("basePointsPer100 must be a non-negative number")
	}
	if p.PointsExpiryDays < 0 {
		return validationf("pointsExpiryDays must be >= 0")
	}
	if !finiteNonNegative(p.RedemptionRate) {
		return validationf("redemptionRate must be a non-negative number")
	}
	if p.MinRedeemPoints < 0 {
		return validationf("minRedeemPoints must be >= 0")
	}
	for _, r := range p.CategoryRules {
		if err := r.validate(); err != nil {
			return err
		}
	}
	for _, t := range p.SpendThresholds {
		if !finiteNonNegative(t.MinAmount) || t.BonusPoints < 0 {
			return validationf("spend threshold %v must have non-negative minAmount and bonusPoints", t.MinAmount)
		}
	}
	for _, r := range p.TierRules {
		if err := r.validate(); err != nil {
			return err
		}
	}
	p.CategoryRules = dedupeCategoryRules(p.CategoryRules)
	p.TierRules = dedupeTierRules(p.TierRules)
	return nil
}

func (r CategoryRule) validate() error {
	if r.Category == "" {
		return validationf("category rule needs a category")
	}
	if !finiteNonNegative(r.PointsPer100) || !finiteNonNegative(r.MinAmount) || r.BonusPoints < 0 {
		return validationf("category rule %q has negative values", r.Category)
	}
	return nil
}

func (r TierRule) validate() error {
	if r.TierName == TierNone {
		return validationf("tier rule needs a tierName")
	}
	if _, err := ParseTier(string(r.TierName)); err != nil {
		return err
	}
	if r.MinPoints < 0 || !finiteNonNegative(r.Multiplier) {
		return validationf("tier rule %q has negative values", r.TierName)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// UpsertCategoryRule 新增或整体替换同品类的规则
func (p *PolicySnapshot) UpsertCategoryRule(rule CategoryRule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	for i := range p.CategoryRules {
		if p.CategoryRules[i].Category == rule.Category {
			p.CategoryRules[i] = rule
			return nil
		}
	}
	p.CategoryRules = append(p.CategoryRules, rule)
	return nil
}

// UpsertThreshold 以 MinAmount 为键新增或更新满额奖励
func (p *PolicySnapshot) UpsertThreshold(t SpendThreshold) error {
	if !finiteNonNegative(t.MinAmount) || t.BonusPoints < 0 {
		return validationf("spend threshold must have non-negative minAmount and bonusPoints")
	}
	for i := range p.SpendThresholds {
		if p.SpendThresholds[i].MinAmount == t.MinAmount {
			p.SpendThresholds[i].BonusPoints = t.BonusPoints
			return nil
		}
	}
	p.SpendThresholds = append(p.SpendThresholds, t)
	return nil
}

// UpsertTierRule 新增或整体替换同名等级的规则
func (p *PolicySnapshot) UpsertTierRule(rule TierRule) error {
	if err := rule.validate(); err != nil {
		return err
	}
	for i := range p.TierRules {
		if p.TierRules[i].TierName == rule.TierName {
			p.TierRules[i] = rule
			return nil
		}
	}
	p.TierRules = append(p.TierRules, rule)
	return nil
}

// SetExpiryDays 单独修改积分有效期，0 表示使用默认有效期
func (p *PolicySnapshot) SetExpiryDays(days int) error {
	if days < 0 {
		return validationf("pointsExpiryDays must be >= 0")
	}
	p.PointsExpiryDays = days
	return nil
}

// EffectiveExpiryDays 是发放积分时实际使用的有效期，未配置（0）时取默认值
func (p *PolicySnapshot) EffectiveExpiryDays() int {
	if p.PointsExpiryDays <= 0 {
		return DefaultPointsExpiryDays
	}
	return p.PointsExpiryDays
}

// ApplyUpdate 用管理员提交的新策略覆盖当前策略。
// 新策略未给出有效期（0）时沿用当前值。
func (p *PolicySnapshot) ApplyUpdate(update PolicySnapshot) {
	adminID, expiry, createdAt := p.AdminID, p.PointsExpiryDays, p.CreatedAt
	*p = update.Snapshot()
	if p.PointsExpiryDays == 0 {
		p.PointsExpiryDays = expiry
	}
	p.AdminID = adminID
	p.CreatedAt = createdAt
}

// CategoryRuleFor 按品类精确查找规则
func (p *PolicySnapshot) CategoryRuleFor(category string) (CategoryRule, bool) {
	for _, r := range p.CategoryRules {
		if r.Category == category {
			return r, true
		}
	}
	return CategoryRule{}, false
}

// TierRuleFor 按等级名称查找规则
func (p *PolicySnapshot) TierRuleFor(tier Tier) (TierRule, bool) {
	if tier == TierNone {
		return TierRule{}, false
	}
	for _, r := range p.TierRules {
		if r.TierName == tier {
			return r, true
		}
	}
	return TierRule{}, false
}

// Snapshot 返回深拷贝，修改返回值不会影响原策略
func (p PolicySnapshot) Snapshot() PolicySnapshot {
	cp := p
	cp.CategoryRules = append([]CategoryRule(nil), p.CategoryRules...)
	cp.SpendThresholds = append([]SpendThreshold(nil), p.SpendThresholds...)
	cp.TierRules = append([]TierRule(nil), p.TierRules...)
	return cp
}

// dedupeCategoryRules 保留首次出现的位置，取最后一次写入的值
func dedupeCategoryRules(rules []CategoryRule) []CategoryRule {
	index := make(map[string]int, len(rules))
	out := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		if i, ok := index[r.Category]; ok {
			out[i] = r
			continue
		}
		index[r.Category] = len(out)
		out = append(out, r)
	}
	return out
}

func dedupeTierRules(rules []TierRule) []TierRule {
	index := make(map[Tier]int, len(rules))
	out := make([]TierRule, 0, len(rules))
	for _, r := range rules {
		if i, ok := index[r.TierName]; ok {
			out[i] = r
			continue
		}
		index[r.TierName] = len(out)
		out = append(out, r)
	}
	return out
}
