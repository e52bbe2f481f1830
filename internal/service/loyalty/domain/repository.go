// internal/service/loyalty/domain/repository.go
package domain

import "context"

// PolicyRepository 定义了积分策略的持久化接口，每个商户最多一份策略。
type PolicyRepository interface {
	// FindByAdmin 找不到时返回 ErrNotFound
	FindByAdmin(ctx context.Context, adminID string) (*PolicySnapshot, error)
	Save(ctx context.Context, policy *PolicySnapshot) error
	Delete(ctx context.Context, adminID string) error
}

// AccountRepository 定义了客户账户聚合（含积分明细）的持久化接口。
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*CustomerAccount, error)
	ListByAdmin(ctx context.Context, adminID string) ([]*CustomerAccount, error)
	Create(ctx context.Context, account *CustomerAccount) error

	// Save 以 account.Version 做比较交换，成功后版本号加一；
	// 版本不匹配时返回 ErrConcurrentModification。
	Save(ctx context.Context, account *CustomerAccount) error
}

// TransactionRepository 提供交易记录的只读查询，结果按时间倒序。
type TransactionRepository interface {
	ListByCustomer(ctx context.Context, customerID string) ([]*Transaction, error)
	ListByAdmin(ctx context.Context, adminID string) ([]*Transaction, error)
}

// PurchaseRepository 在一个存储事务里同时写入账户和新的交易记录，
// 保证余额和明细不会出现部分可见。
type PurchaseRepository interface {
	CommitPurchase(ctx context.Context, account *CustomerAccount, txn *Transaction) error
}
