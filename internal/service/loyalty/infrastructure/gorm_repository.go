package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rewardledger/internal/service/loyalty/domain"
)

// GormPolicyRepository 是 PolicyRepository 的 GORM 实现
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository 创建一个新的策略仓储实例
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

func (r *GormPolicyRepository) FindByAdmin(ctx context.Context, adminID string) (*domain.PolicySnapshot, error) {
	var model PolicyModel
	err := r.db.WithContext(ctx).Where("admin_id = ?", adminID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("no reward policy for admin %s", adminID)
		}
		return nil, domain.Persistence(err, "load policy")
	}
	return ToDomainPolicy(&model), nil
}

// Save 按 admin_id 做 upsert
func (r *GormPolicyRepository) Save(ctx context.Context, policy *domain.PolicySnapshot) error {
	model := FromDomainPolicy(policy)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domain.Persistence(err, "save policy")
	}
	policy.CreatedAt = model.CreatedAt
	policy.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormPolicyRepository) Delete(ctx context.Context, adminID string) error {
	res := r.db.WithContext(ctx).Where("admin_id = ?", adminID).Delete(&PolicyModel{})
	if res.Error != nil {
		return domain.Persistence(res.Error, "delete policy")
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("no reward policy for admin %s", adminID)
	}
	return nil
}

// GormAccountRepository 同时实现了 AccountRepository 和 PurchaseRepository，
// 因为购买事件需要在同一个数据库事务里写入账户、明细和交易记录。
type GormAccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormAccountRepository 创建一个新的账户仓储实例
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db, now: time.Now}
}

func orderedGrants(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id string) (*domain.CustomerAccount, error) {
	var model CustomerAccountModel
	err := r.db.WithContext(ctx).Preload("Grants", orderedGrants).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundf("customer %s", id)
		}
		return nil, domain.Persistence(err, "load account")
	}
	return ToDomainAccount(&model), nil
}

func (r *GormAccountRepository) ListByAdmin(ctx context.Context, adminID string) ([]*domain.CustomerAccount, error) {
	var models []*CustomerAccountModel
	err := r.db.WithContext(ctx).Preload("Grants", orderedGrants).
		Where("admin_id = ?", adminID).Order("created_at ASC, id ASC").Find(&models).Error
	if err != nil {
		return nil, domain.Persistence(err, "list accounts")
	}
	accounts := make([]*domain.CustomerAccount, len(models))
	for i, m := range models {
		accounts[i] = ToDomainAccount(m)
	}
	return accounts, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, account *domain.CustomerAccount) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(FromDomainAccount(account)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.Validationf("customer email %s already registered", account.Email)
			}
			return err
		}
		return upsertGrants(tx, account)
	})
	if err != nil {
		return domain.Persistence(err, "create account")
	}
	return nil
}

func (r *GormAccountRepository) Save(ctx context.Context, account *domain.CustomerAccount) error {
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveAccount(tx, account, now)
	})
	if err != nil {
		return domain.Persistence(err, "save account")
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}

// CommitPurchase 在一个事务中写入账户、积分明细和交易记录，任一步失败全部回滚
func (r *GormAccountRepository) CommitPurchase(ctx context.Context, account *domain.CustomerAccount, txn *domain.Transaction) error {
	now := r.now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAccount(tx, account, now); err != nil {
			return err
		}
		return tx.Create(FromDomainTransaction(txn)).Error
	})
	if err != nil {
		return domain.Persistence(err, "commit purchase")
	}
	account.Version++
	account.UpdatedAt = now
	return nil
}

// saveAccount 以版本号做比较交换，然后 upsert 全部明细
func saveAccount(tx *gorm.DB, account *domain.CustomerAccount, now time.Time) error {
	res := tx.Model(&CustomerAccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"name":           account.Name,
			"email":          account.Email,
			"tier":           string(account.Tier),
			"points_balance": account.PointsBalance,
			"lifetime_spend": account.LifetimeSpend,
			"version":        account.Version + 1,
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}
	return upsertGrants(tx, account)
}

func upsertGrants(tx *gorm.DB, account *domain.CustomerAccount) error {
	if account.Ledger == nil || account.Ledger.Len() == 0 {
		return nil
	}
	grants := FromDomainGrants(account.ID, account.Ledger)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "redeemed"}),
	}).CreateInBatches(grants, 200).Error
}

// GormTransactionRepository 是 TransactionRepository 的 GORM 实现
type GormTransactionRepository struct {
	db *gorm.DB
}

func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Transaction, error) {
	return r.list(ctx, "customer_id = ?", customerID)
}

func (r *GormTransactionRepository) ListByAdmin(ctx context.Context, adminID string) ([]*domain.Transaction, error) {
	return r.list(ctx, "admin_id = ?", adminID)
}

func (r *GormTransactionRepository) list(ctx context.Context, where string, arg string) ([]*domain.Transaction, error) {
	var models []*TransactionModel
	err := r.db.WithContext(ctx).Where(where, arg).Order("created_at DESC, id DESC").Find(&models).Error
	if err != nil {
		return nil, domain.Persistence(err, "list transactions")
	}
	txns := make([]*domain.Transaction, len(models))
	for i, m := range models {
		txns[i] = ToDomainTransaction(m)
	}
	return txns, nil
}
