package infrastructure

import (
	"time"

	"rewardledger/internal/service/loyalty/domain"
)

// PolicyModel 对应数据库中的 reward_policies 表，规则列表以 JSON 列保存
type PolicyModel struct {
	AdminID          string                  `gorm:"primaryKey;size:64"`
	Name             string                  `gorm:"size:128;not null"`
	Description      string                  `gorm:"type:text"`
	BasePointsPer100 float64                 `gorm:"not null"`
	CategoryRules    []domain.CategoryRule   `gorm:"serializer:json"`
	SpendThresholds  []domain.SpendThreshold `gorm:"serializer:json"`
	TierRules        []domain.TierRule       `gorm:"serializer:json"`
	PointsExpiryDays int                     `gorm:"not null"`
	RedemptionRate   float64
	MinRedeemPoints  int64
	EarnRule         string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PolicyModel) TableName() string {
	return "reward_policies"
}

// CustomerAccountModel 对应 customer_accounts 表
type CustomerAccountModel struct {
	ID            string  `gorm:"primaryKey;size:64"`
	AdminID       string  `gorm:"index;size:64;not null"`
	Name          string  `gorm:"size:128;not null"`
	Email         string  `gorm:"uniqueIndex;size:191;not null"`
	Tier          string  `gorm:"size:16"`
	PointsBalance int64   `gorm:"not null;default:0"`
	LifetimeSpend float64 `gorm:"not null;default:0"`
	Version       int64   `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// 关联关系，按 Seq 保持发放顺序
	Grants []PointGrantModel `gorm:"foreignKey:AccountID"`
}

func (CustomerAccountModel) TableName() string {
	return "customer_accounts"
}

// PointGrantModel 对应 point_grants 表。只有 points 和 redeemed 会被更新。
type PointGrantModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	AccountID string    `gorm:"index:idx_grant_account_seq,priority:1;size:64;not null"`
	Seq       int       `gorm:"index:idx_grant_account_seq,priority:2;not null"`
	Points    int64     `gorm:"not null"`
	EarnedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Redeemed  bool      `gorm:"not null;default:false"`
}

func (PointGrantModel) TableName() string {
	return "point_grants"
}

// TransactionModel 对应 loyalty_transactions 表，只追加
type TransactionModel struct {
	ID             string              `gorm:"primaryKey;size:64"`
	AdminID        string              `gorm:"index;size:64;not null"`
	CustomerID     string              `gorm:"index;size:64;not null"`
	Amount         float64             `gorm:"not null"`
	Category       string              `gorm:"size:64;not null"`
	EarnedPoints   int64               `gorm:"not null;default:0"`
	RedeemedPoints int64               `gorm:"not null;default:0"`
	FinalPoints    int64               `gorm:"not null;default:0"`
	Breakdown      domain.Breakdown    `gorm:"serializer:json"`
	Allocations    []domain.Allocation `gorm:"serializer:json"`
	PaymentRef     string              `gorm:"size:128"`
	CreatedAt      time.Time           `gorm:"index"`
}

func (TransactionModel) TableName() string {
	return "loyalty_transactions"
}

// AllModels 返回需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{&PolicyModel{}, &CustomerAccountModel{}, &PointGrantModel{}, &TransactionModel{}}
}
