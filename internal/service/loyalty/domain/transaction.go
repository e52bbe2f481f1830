// internal/service/loyalty/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction 是一次购买事件的审计记录，创建后不可修改，只追加
type Transaction struct {
	ID             string       `json:"id"`
	AdminID        string       `json:"adminId"`
	CustomerID     string       `json:"customerId"`
	Amount         float64      `json:"amount"`
	Category       string       `json:"category"`
	EarnedPoints   int64        `json:"earnedPoints"`
	RedeemedPoints int64        `json:"redeemedPoints"`
	FinalPoints    int64        `json:"finalPoints"` // 事件处理后的余额快照
	Breakdown      Breakdown    `json:"pointsBreakdown"`
	Allocations    []Allocation `json:"allocations,omitempty"`
	PaymentRef     string       `json:"paymentRef,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// NewTransaction 用账户的最终状态生成审计记录
func NewTransaction(account *CustomerAccount, amount float64, category string, breakdown Breakdown, redeemed int64, allocations []Allocation, paymentRef string, now time.Time) *Transaction {
	return &Transaction{
		ID:             uuid.NewString(),
		AdminID:        account.AdminID,
		CustomerID:     account.ID,
		Amount:         amount,
		Category:       category,
		EarnedPoints:   breakdown.EarnedPoints,
		RedeemedPoints: redeemed,
		FinalPoints:    account.PointsBalance,
		Breakdown:      breakdown,
		Allocations:    allocations,
		PaymentRef:     paymentRef,
		CreatedAt:      now,
	}
}

// TransactionRecorded 是交易落库后发布到消息队列的领域事件
type TransactionRecorded struct {
	EventID        string    `json:"eventId"`
	TransactionID  string    `json:"transactionId"`
	AdminID        string    `json:"adminId"`
	CustomerID     string    `json:"customerId"`
	EarnedPoints   int64     `json:"earnedPoints"`
	RedeemedPoints int64     `json:"redeemedPoints"`
	Balance        int64     `json:"balance"`
	Tier           Tier      `json:"tier"`
	PreviousTier   Tier      `json:"previousTier"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PurchaseRequested 是从上游（支付完成后）投递到消息队列的购买事件
type PurchaseRequested struct {
	EventID      string  `json:"eventId"`
	CustomerID   string  `json:"customerId"`
	AdminID      string  `json:"adminId"`
	Amount       float64 `json:"amount"`
	Category     string  `json:"category"`
	RedeemPoints int64   `json:"redeemPoints"`
	PaymentRef   string  `json:"paymentRef"`
}
