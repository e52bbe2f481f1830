package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCustomerAccount(t *testing.T) {
	a, err := NewCustomerAccount("admin-1", "  Bob ", "Bob@Example.COM", t0)
	require.NoError(t, err)
	require.Equal(t, "Bob", a.Name)
	require.Equal(t, "bob@example.com", a.Email)
	require.Equal(t, TierNone, a.Tier)
	require.NotNil(t, a.Ledger)
	require.True(t, a.BelongsTo("admin-1"))
	require.False(t, a.BelongsTo("admin-2"))

	_, err = NewCustomerAccount("", "Bob", "bob@example.com", t0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecalculateBalance_IdempotentAndReportsDrift(t *testing.T) {
	a, err := NewCustomerAccount("admin-1", "Bob", "bob@example.com", t0)
	require.NoError(t, err)
	_, _ = a.Ledger.Grant(30, 2, t0)

	require.True(t, a.RecalculateBalance(t0))
	require.False(t, a.RecalculateBalance(t0))
	require.Equal(t, int64(30), a.PointsBalance)

	require.True(t, a.RecalculateBalance(t0.AddDate(0, 0, 2)))
	require.Equal(t, int64(0), a.PointsBalance)
}

func TestSetTier(t *testing.T) {
	a, err := NewCustomerAccount("admin-1", "Bob", "bob@example.com", t0)
	require.NoError(t, err)

	require.NoError(t, a.SetTier(TierGold))
	require.Equal(t, TierGold, a.Tier)
	require.ErrorIs(t, a.SetTier(TierNone), ErrValidation)
	require.ErrorIs(t, a.SetTier("Bronze"), ErrValidation)
}

func TestAccountClone_DiscardingLeavesOriginal(t *testing.T) {
	a, err := NewCustomerAccount("admin-1", "Bob", "bob@example.com", t0)
	require.NoError(t, err)
	_, _ = a.Ledger.Grant(10, 5, t0)
	a.RecalculateBalance(t0)

	cp := a.Clone()
	_, _ = cp.Ledger.Grant(90, 5, t0)
	cp.RecalculateBalance(t0)
	cp.LifetimeSpend = 42

	require.Equal(t, int64(10), a.PointsBalance)
	require.Equal(t, 1, a.Ledger.Len())
	require.Zero(t, a.LifetimeSpend)
}
