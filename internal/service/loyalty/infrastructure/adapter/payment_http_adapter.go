package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"rewardledger/internal/pkg/httpclient"
	"rewardledger/internal/service/loyalty/domain/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentVerifier 接口，向支付服务确认支付凭证
type PaymentHTTPAdapter struct {
	client   *httpclient.Client
	endpoint string
}

func NewPaymentHTTPAdapter(client *httpclient.Client, endpoint string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, endpoint: endpoint}
}

type confirmPaymentRequest struct {
	CustomerID string  `json:"customer_id"`
	PaymentRef string  `json:"payment_ref"`
	Amount     float64 `json:"amount"`
}

// Confirm 支付服务返回 200 视为已确认；402/404/409 视为明确拒绝，其余错误原样返回
func (a *PaymentHTTPAdapter) Confirm(ctx context.Context, customerID, paymentRef string, amount float64) error {
	if paymentRef == "" {
		return port.ErrPaymentNotConfirmed
	}
	err := a.client.PostJSON(ctx, a.endpoint, confirmPaymentRequest{
		CustomerID: customerID,
		PaymentRef: paymentRef,
		Amount:     amount,
	})
	if err == nil {
		return nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusPaymentRequired, http.StatusNotFound, http.StatusConflict:
			return fmt.Errorf("%w: %s", port.ErrPaymentNotConfirmed, paymentRef)
		}
	}
	return fmt.Errorf("payment service error: %w", err)
}

// StaticPaymentVerifier 用于本地开发和测试，所有支付都视为已确认
type StaticPaymentVerifier struct{}

func (StaticPaymentVerifier) Confirm(context.Context, string, string, float64) error {
	return nil
}
