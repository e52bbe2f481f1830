// internal/service/loyalty/application/dto.go
package application

import (
	"math"
	"strings"
	"time"

	"rewardledger/internal/service/loyalty/domain"
)

// PurchaseRequest 是购买用例的输入数据，来自 HTTP 或 Kafka
type PurchaseRequest struct {
	CustomerID   string  `json:"customerId"`
	AdminID      string  `json:"adminId"`
	Amount       float64 `json:"amount"`
	Category     string  `json:"category"`
	RedeemPoints int64   `json:"redeemPoints"`
	PaymentRef   string  `json:"paymentRef"`
}

// Validate 在获取任何锁、读取任何状态之前做参数校验
func (r *PurchaseRequest) Validate() error {
	r.Category = strings.TrimSpace(r.Category)
	switch {
	case r.CustomerID == "":
		return domain.Validationf("customerId is required")
	case r.AdminID == "":
		return domain.Validationf("adminId is required")
	case !(r.Amount > 0):
		return domain.Validationf("amount must be > 0")
	case math.IsInf(r.Amount, 0) || r.Amount > domain.MaxPurchaseAmount:
		return domain.Validationf("amount must not exceed %.0f", domain.MaxPurchaseAmount)
	case r.Category == "":
		return domain.Validationf("category is required")
	case r.RedeemPoints < 0:
		return domain.Validationf("redeemPoints must be >= 0")
	}
	return nil
}

// ToPurchaseRequest 从Kafka事件转换为应用层请求DTO
func ToPurchaseRequest(event *domain.PurchaseRequested) *PurchaseRequest {
	return &PurchaseRequest{
		CustomerID:   event.CustomerID,
		AdminID:      event.AdminID,
		Amount:       event.Amount,
		Category:     event.Category,
		RedeemPoints: event.RedeemPoints,
		PaymentRef:   event.PaymentRef,
	}
}

// PurchaseResult 是购买用例的输出数据
type PurchaseResult struct {
	TransactionID  string           `json:"transactionId"`
	CustomerID     string           `json:"customerId"`
	EarnedPoints   int64            `json:"earnedPoints"`
	RedeemedPoints int64            `json:"redeemedPoints"`
	Balance        int64            `json:"pointsBalance"`
	Tier           domain.Tier      `json:"tier"`
	PreviousTier   domain.Tier      `json:"previousTier"`
	Breakdown      domain.Breakdown `json:"pointsBreakdown"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// RegisterCustomerRequest 管理员登记客户
type RegisterCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CustomerProfile 是客户自己或管理员看到的账户视图，余额总是从账本重算
type CustomerProfile struct {
	ID            string      `json:"id"`
	AdminID       string      `json:"adminId"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Tier          domain.Tier `json:"tier"`
	PointsBalance int64       `json:"pointsBalance"`
	LifetimeSpend float64     `json:"lifetimeSpend"`
	ExpiringSoon  int64       `json:"expiringSoon"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func toProfile(a *domain.CustomerAccount, expiring int64) *CustomerProfile {
	return &CustomerProfile{
		ID:            a.ID,
		AdminID:       a.AdminID,
		Name:          a.Name,
		Email:         a.Email,
		Tier:          a.Tier,
		PointsBalance: a.PointsBalance,
		LifetimeSpend: a.LifetimeSpend,
		ExpiringSoon:  expiring,
		CreatedAt:     a.CreatedAt,
	}
}

// TierInfo 当前等级及其权益，以及距离下一等级还差多少积分
type TierInfo struct {
	Tier          domain.Tier `json:"tier"`
	Multiplier    float64     `json:"multiplier"`
	Benefits      string      `json:"benefits,omitempty"`
	PointsBalance int64       `json:"pointsBalance"`
	NextTier      domain.Tier `json:"nextTier,omitempty"`
	PointsToNext  int64       `json:"pointsToNext,omitempty"`
}

// History 是交易流水（新的在前）加上当前余额和等级
type History struct {
	CustomerID    string                `json:"customerId"`
	PointsBalance int64                 `json:"pointsBalance"`
	Tier          domain.Tier           `json:"tier"`
	Transactions  []*domain.Transaction `json:"transactions"`
}

// ExpiringPoints 某客户在预警窗口内即将过期的积分
type ExpiringPoints struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Points     int64  `json:"expiringPoints"`
	WithinDays int    `json:"withinDays"`
}

// LeaderboardEntry 消费排行榜的一行
type LeaderboardEntry struct {
	CustomerID  string  `json:"customerId"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	TotalSpent  float64 `json:"totalSpent"`
	TotalPoints int64   `json:"totalPoints"`
}

// PolicySummary 商户维度的积分发放/核销汇总
type PolicySummary struct {
	PolicyName       string `json:"policyName"`
	CustomerCount    int    `json:"customerCount"`
	TransactionCount int    `json:"transactionCount"`
	TotalIssued      int64  `json:"totalPointsIssued"`
	TotalRedeemed    int64  `json:"totalPointsRedeemed"`
	Outstanding      int64  `json:"outstandingPoints"`
}
