package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePolicy() PolicySnapshot {
	return PolicySnapshot{
		AdminID:          "admin-1",
		Name:             "default",
		BasePointsPer100: 10,
		CategoryRules: []CategoryRule{
			{Category: "Electronics", PointsPer100: 15, MinAmount: 100, BonusPoints: 5},
		},
		SpendThresholds: []SpendThreshold{
			{MinAmount: 500, BonusPoints: 20},
			{MinAmount: 1000, BonusPoints: 50},
		},
		TierRules: []TierRule{
			{TierName: TierSilver, MinPoints: 100, Multiplier: 1.2},
			{TierName: TierGold, MinPoints: 500, Multiplier: 1.5},
		},
		PointsExpiryDays: 365,
	}
}

func TestComputeEarnedPoints_ElectronicsGoldScenario(t *testing.T) {
	b := ComputeEarnedPoints(600, "Electronics", TierGold, samplePolicy())

	require.Equal(t, int64(60), b.BasePoints)
	require.Equal(t, int64(95), b.CategoryPoints)
	require.Equal(t, 1.5, b.TierMultiplier)
	require.Equal(t, int64(20), b.ThresholdBonus)
	// floor(95*1.5)=142, +20
	require.Equal(t, int64(162), b.EarnedPoints)
}

func TestComputeEarnedPoints_GroceryGoldScenario(t *testing.T) {
	policy := PolicySnapshot{
		BasePointsPer100: 5,
		CategoryRules:    []CategoryRule{{Category: "grocery", PointsPer100: 10, MinAmount: 200, BonusPoints: 20}},
		SpendThresholds:  []SpendThreshold{{MinAmount: 500, BonusPoints: 50}},
		TierRules:        []TierRule{{TierName: TierGold, MinPoints: 1000, Multiplier: 1.5}},
	}

	b := ComputeEarnedPoints(600, "grocery", TierGold, policy)

	require.Equal(t, Breakdown{
		BasePoints:     30,
		CategoryPoints: 80,
		TierMultiplier: 1.5,
		ThresholdBonus: 50,
		EarnedPoints:   170,
	}, b)
}

func TestComputeEarnedPoints_SaturatesInsteadOfOverflowing(t *testing.T) {
	b := ComputeEarnedPoints(1e21, "Books", TierNone, samplePolicy())
	require.Equal(t, MaxPointsPerPurchase, b.BasePoints)
	require.Equal(t, MaxPointsPerPurchase, b.EarnedPoints)

	p := samplePolicy()
	p.TierRules = []TierRule{{TierName: TierGold, MinPoints: 0, Multiplier: 1e300}}
	p.SpendThresholds = []SpendThreshold{{MinAmount: 0, BonusPoints: math.MaxInt64}}
	b = ComputeEarnedPoints(600, "Electronics", TierGold, p)
	require.Equal(t, MaxPointsPerPurchase, b.ThresholdBonus)
	require.Equal(t, MaxPointsPerPurchase, b.EarnedPoints)
}

func TestComputeEarnedPoints_CategoryBelowMinAmountFallsBackToBase(t *testing.T) {
	b := ComputeEarnedPoints(99.99, "Electronics", TierNone, samplePolicy())

	require.Equal(t, int64(9), b.BasePoints)
	require.Equal(t, int64(9), b.CategoryPoints)
	require.Equal(t, 1.0, b.TierMultiplier)
	require.Equal(t, int64(9), b.EarnedPoints)
}

func TestComputeEarnedPoints_UnknownCategoryUsesBase(t *testing.T) {
	b := ComputeEarnedPoints(250, "Groceries", TierSilver, samplePolicy())

	require.Equal(t, int64(25), b.CategoryPoints)
	require.Equal(t, int64(30), b.EarnedPoints)
}

func TestComputeEarnedPoints_ThresholdsAreAdditive(t *testing.T) {
	b := ComputeEarnedPoints(1000, "Books", TierNone, samplePolicy())

	require.Equal(t, int64(70), b.ThresholdBonus)
	require.Equal(t, int64(100+70), b.EarnedPoints)
}

func TestComputeEarnedPoints_TierWithoutRuleUsesMultiplierOne(t *testing.T) {
	b := ComputeEarnedPoints(100, "Books", TierPlatinum, samplePolicy())

	require.Equal(t, 1.0, b.TierMultiplier)
	require.Equal(t, int64(10), b.EarnedPoints)
}

func TestComputeEarnedPoints_IsPure(t *testing.T) {
	p := samplePolicy()
	first := ComputeEarnedPoints(777, "Electronics", TierSilver, p)
	second := ComputeEarnedPoints(777, "Electronics", TierSilver, p)
	require.Equal(t, first, second)
	require.Equal(t, samplePolicy(), p)
}
