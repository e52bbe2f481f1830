package rule

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
)

func TestCELRuleEngine_Evaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	rule := `amount >= 50.0 && category != "GiftCards" && tier in ["", "Silver", "Gold"]`

	ok, err := engine.Evaluate(rule, port.EarnFact{Amount: 80, Category: "Books", Tier: domain.TierSilver})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.Evaluate(rule, port.EarnFact{Amount: 80, Category: "GiftCards", Tier: domain.TierNone})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.Evaluate(rule, port.EarnFact{Amount: 10, Category: "Books", Tier: domain.TierGold})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.Evaluate(rule, port.EarnFact{Amount: 80, Category: "Books", Tier: domain.TierPlatinum})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCELRuleEngine_Validate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	require.NoError(t, engine.Validate(`category == "Electronics"`))
	require.Error(t, engine.Validate(`amount +`))
	require.Error(t, engine.Validate(`amount * 2.0`))
	require.Error(t, engine.Validate(`unknown_var > 1`))
}
