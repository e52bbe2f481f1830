package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLedgerGrant_MonotonicBalance(t *testing.T) {
	l := NewLedger(nil)
	before := l.AvailableBalance(t0)

	g, err := l.Grant(40, 30, t0)
	require.NoError(t, err)
	require.Equal(t, int64(40), g.Points)
	require.Equal(t, t0.AddDate(0, 0, 30), g.ExpiresAt)
	require.False(t, g.Redeemed)
	require.NotEmpty(t, g.ID)

	require.Equal(t, before+40, l.AvailableBalance(t0))
}

func TestLedgerGrant_RejectsInvalidInput(t *testing.T) {
	l := NewLedger(nil)

	_, err := l.Grant(0, 10, t0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = l.Grant(-5, 10, t0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = l.Grant(5, -1, t0)
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, l.Len())
}

func TestLedgerAvailableBalance_ExpiryIsStrict(t *testing.T) {
	l := NewLedger(nil)
	g, err := l.Grant(10, 1, t0)
	require.NoError(t, err)

	require.Equal(t, int64(10), l.AvailableBalance(g.ExpiresAt.Add(-time.Nanosecond)))
	require.Equal(t, int64(0), l.AvailableBalance(g.ExpiresAt))
	require.Equal(t, int64(0), l.AvailableBalance(g.ExpiresAt.Add(time.Hour)))
}

func TestLedgerGrant_ZeroDayExpiryIsImmediatelyUnavailable(t *testing.T) {
	l := NewLedger(nil)
	_, err := l.Grant(10, 0, t0)
	require.NoError(t, err)
	require.Equal(t, int64(0), l.AvailableBalance(t0))
	require.Equal(t, 1, l.Len())
}

func TestLedgerGrant_CalendarDaysAcrossMonthEnd(t *testing.T) {
	l := NewLedger(nil)
	jan31 := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	g, err := l.Grant(1, 1, jan31)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), g.ExpiresAt)
}

func TestLedgerExpiringWithin(t *testing.T) {
	l := NewLedger(nil)
	_, _ = l.Grant(100, 10, t0)
	_, _ = l.Grant(50, 5, t0)
	_, _ = l.Grant(25, 60, t0)

	require.Equal(t, int64(0), l.ExpiringWithin(4, t0))
	require.Equal(t, int64(50), l.ExpiringWithin(5, t0))
	require.Equal(t, int64(150), l.ExpiringWithin(30, t0))

	// 已过期的不计入
	later := t0.AddDate(0, 0, 6)
	require.Equal(t, int64(100), l.ExpiringWithin(30, later))
}

func TestLedgerGrants_ReturnsCopies(t *testing.T) {
	l := NewLedger(nil)
	_, _ = l.Grant(10, 5, t0)

	grants := l.Grants()
	grants[0].Points = 999
	grants[0].Redeemed = true

	require.Equal(t, int64(10), l.AvailableBalance(t0))
}

func TestLedgerClone_IsIndependent(t *testing.T) {
	l := NewLedger(nil)
	_, _ = l.Grant(10, 5, t0)

	cp := l.Clone()
	_, err := Redeem(cp, 10, t0)
	require.NoError(t, err)
	_, _ = cp.Grant(7, 5, t0)

	require.Equal(t, int64(10), l.AvailableBalance(t0))
	require.Equal(t, 1, l.Len())
	require.Equal(t, int64(7), cp.AvailableBalance(t0))
}
