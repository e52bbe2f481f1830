// internal/service/loyalty/domain/state.go
package domain

// PurchaseState 定义了一次购买事件的处理阶段
type PurchaseState string

const (
	StateValidated           PurchaseState = "VALIDATED"
	StatePointsComputed      PurchaseState = "POINTS_COMPUTED"
	StateGranted             PurchaseState = "GRANTED"
	StateRedeemed            PurchaseState = "REDEEMED"
	StateBalanceRecalculated PurchaseState = "BALANCE_RECALCULATED"
	StateTierResolved        PurchaseState = "TIER_RESOLVED"
	StatePersisted           PurchaseState = "PERSISTED"
	StateRejected            PurchaseState = "REJECTED"
)
