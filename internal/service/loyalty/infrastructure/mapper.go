package infrastructure

import "rewardledger/internal/service/loyalty/domain"

// --- 类型转换函数 ---

// ToDomainPolicy 将数据库模型转换为领域模型
func ToDomainPolicy(m *PolicyModel) *domain.PolicySnapshot {
	if m == nil {
		return nil
	}
	p := domain.PolicySnapshot{
		AdminID:          m.AdminID,
		Name:             m.Name,
		Description:      m.Description,
		BasePointsPer100: m.BasePointsPer100,
		CategoryRules:    m.CategoryRules,
		SpendThresholds:  m.SpendThresholds,
		TierRules:        m.TierRules,
		PointsExpiryDays: m.PointsExpiryDays,
		RedemptionRate:   m.RedemptionRate,
		MinRedeemPoints:  m.MinRedeemPoints,
		EarnRule:         m.EarnRule,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}.Snapshot()
	return &p
}

// FromDomainPolicy 将领域模型转换为数据库模型
func FromDomainPolicy(p *domain.PolicySnapshot) *PolicyModel {
	if p == nil {
		return nil
	}
	cp := p.Snapshot()
	return &PolicyModel{
		AdminID:          cp.AdminID,
		Name:             cp.Name,
		Description:      cp.Description,
		BasePointsPer100: cp.BasePointsPer100,
		CategoryRules:    cp.CategoryRules,
		SpendThresholds:  cp.SpendThresholds,
		TierRules:        cp.TierRules,
		PointsExpiryDays: cp.PointsExpiryDays,
		RedemptionRate:   cp.RedemptionRate,
		MinRedeemPoints:  cp.MinRedeemPoints,
		EarnRule:         cp.EarnRule,
		CreatedAt:        cp.CreatedAt,
		UpdatedAt:        cp.UpdatedAt,
	}
}

// ToDomainAccount 组装账户聚合，grants 须已按 Seq 排序
func ToDomainAccount(m *CustomerAccountModel) *domain.CustomerAccount {
	if m == nil {
		return nil
	}
	grants := make([]domain.PointGrant, len(m.Grants))
	for i, g := range m.Grants {
		grants[i] = domain.PointGrant{
			ID:        g.ID,
			Points:    g.Points,
			EarnedAt:  g.EarnedAt,
			ExpiresAt: g.ExpiresAt,
			Redeemed:  g.Redeemed,
		}
	}
	return &domain.CustomerAccount{
		ID:            m.ID,
		AdminID:       m.AdminID,
		Name:          m.Name,
		Email:         m.Email,
		Tier:          domain.Tier(m.Tier),
		PointsBalance: m.PointsBalance,
		LifetimeSpend: m.LifetimeSpend,
		Ledger:        domain.NewLedger(grants),
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomainAccount 只转换账户本身的列，明细由 FromDomainGrants 单独转换
func FromDomainAccount(a *domain.CustomerAccount) *CustomerAccountModel {
	return &CustomerAccountModel{
		ID:            a.ID,
		AdminID:       a.AdminID,
		Name:          a.Name,
		Email:         a.Email,
		Tier:          string(a.Tier),
		PointsBalance: a.PointsBalance,
		LifetimeSpend: a.LifetimeSpend,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// FromDomainGrants 用账本中的位置作为 Seq，账本只追加所以位置稳定
func FromDomainGrants(accountID string, ledger *domain.Ledger) []PointGrantModel {
	grants := ledger.Grants()
	models := make([]PointGrantModel, len(grants))
	for i, g := range grants {
		models[i] = PointGrantModel{
			ID:        g.ID,
			AccountID: accountID,
			Seq:       i,
			Points:    g.Points,
			EarnedAt:  g.EarnedAt,
			ExpiresAt: g.ExpiresAt,
			Redeemed:  g.Redeemed,
		}
	}
	return models
}

func ToDomainTransaction(m *TransactionModel) *domain.Transaction {
	if m == nil {
		return nil
	}
	return &domain.Transaction{
		ID:             m.ID,
		AdminID:        m.AdminID,
		CustomerID:     m.CustomerID,
		Amount:         m.Amount,
		Category:       m.Category,
		EarnedPoints:   m.EarnedPoints,
		RedeemedPoints: m.RedeemedPoints,
		FinalPoints:    m.FinalPoints,
		Breakdown:      m.Breakdown,
		Allocations:    m.Allocations,
		PaymentRef:     m.PaymentRef,
		CreatedAt:      m.CreatedAt,
	}
}

func FromDomainTransaction(t *domain.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:             t.ID,
		AdminID:        t.AdminID,
		CustomerID:     t.CustomerID,
		Amount:         t.Amount,
		Category:       t.Category,
		EarnedPoints:   t.EarnedPoints,
		RedeemedPoints: t.RedeemedPoints,
		FinalPoints:    t.FinalPoints,
		Breakdown:      t.Breakdown,
		Allocations:    t.Allocations,
		PaymentRef:     t.PaymentRef,
		CreatedAt:      t.CreatedAt,
	}
}
