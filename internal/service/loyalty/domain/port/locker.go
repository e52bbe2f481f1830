package port

import "context"

// CustomerLocker 是客户级互斥的出站端口。
// 同一客户的购买事件在 grant+redeem+recalculate+persist 期间必须串行，不同客户互不影响。
type CustomerLocker interface {
	// Lock 阻塞直到获得锁或 ctx 结束，返回的 unlock 必须被调用。
	Lock(ctx context.Context, customerID string) (unlock func(), err error)
}
