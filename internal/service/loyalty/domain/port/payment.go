package port

import (
	"context"
	"errors"
)

// ErrPaymentNotConfirmed 表示支付服务明确拒绝了该支付凭证
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")

// PaymentVerifier 是支付确认服务的出站端口。
// 确认通过后支付本身与积分计算无关。
type PaymentVerifier interface {
	Confirm(ctx context.Context, customerID, paymentRef string, amount float64) error
}
