package interfaces

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"rewardledger/internal/pkg/config"
	"rewardledger/internal/pkg/metrics"
	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/infrastructure"
	"rewardledger/internal/service/loyalty/infrastructure/adapter"
	"rewardledger/internal/service/loyalty/infrastructure/rule"
)

const testAdmin = "admin-1"

func newTestHandler(t *testing.T) *LoyaltyHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := infrastructure.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", Path: dsn})
	require.NoError(t, err)
	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	tracer := noop.NewTracerProvider().Tracer("test")

	accounts := infrastructure.NewGormAccountRepository(db)
	txns := infrastructure.NewGormTransactionRepository(db)
	policies := infrastructure.NewGormPolicyRepository(db)

	locker := adapter.NewMemoryLocker()
	purchases := application.NewPurchaseService(application.PurchaseDeps{
		Policies:  application.NewPolicyLoader(policies),
		Accounts:  accounts,
		Purchases: accounts,
		Locker:    locker,
		Payments:  adapter.StaticPaymentVerifier{},
		Publisher: adapter.NoopPublisher{},
		Rules:     rules,
		Metrics:   metrics.NewRecorder(prometheus.NewRegistry()),
	}, tracer, 5*time.Second)

	return NewLoyaltyHandler(
		purchases,
		application.NewPolicyService(policies, accounts, txns, rules, tracer),
		application.NewCustomerService(accounts, txns, policies, locker, tracer, 30, 5),
		tracer,
	)
}

func httpDo(t *testing.T, h http.Handler, method, path, id string, role domain.Role, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.Header.Set(HeaderPrincipalID, id)
		req.Header.Set(HeaderPrincipalRole, string(role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func samplePolicyBody() map[string]interface{} {
	return map[string]interface{}{
		"policyName":       "standard",
		"basePointsPer100": 10,
		"categoryRules": []map[string]interface{}{
			{"category": "Electronics", "pointsPer100": 15, "minAmount": 100, "bonusPoints": 5},
		},
		"spendThresholds": []map[string]interface{}{{"minAmount": 500, "bonusPoints": 20}},
		"tierRules": []map[string]interface{}{
			{"tierName": "Silver", "minPoints": 100, "multiplier": 1.2},
			{"tierName": "Gold", "minPoints": 500, "multiplier": 1.5},
		},
		"pointsExpiryDays": 30,
	}
}

func TestPurchaseFlow(t *testing.T) {
	r := newTestHandler(t).Router()

	rec := httpDo(t, r, http.MethodPut, "/api/policy", testAdmin, domain.RoleAdmin, samplePolicyBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httpDo(t, r, http.MethodPost, "/api/customers", testAdmin, domain.RoleAdmin, map[string]string{"name": "Ann", "email": "ann@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created application.CustomerProfile
	decode(t, rec, &created)
	require.NotEmpty(t, created.ID)

	rec = httpDo(t, r, http.MethodPost, "/api/transactions", created.ID, domain.RoleCustomer, map[string]interface{}{
		"adminId": testAdmin, "amount": 600, "category": "Electronics", "paymentRef": "p-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res application.PurchaseResult
	decode(t, rec, &res)
	require.Equal(t, int64(115), res.EarnedPoints)
	require.Equal(t, int64(115), res.Balance)
	require.Equal(t, domain.TierSilver, res.Tier)

	rec = httpDo(t, r, http.MethodPost, "/api/transactions", created.ID, domain.RoleCustomer, map[string]interface{}{
		"adminId": testAdmin, "amount": 10, "category": "Books", "redeemPoints": 1000,
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = httpDo(t, r, http.MethodGet, "/api/me", created.ID, domain.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile application.CustomerProfile
	decode(t, rec, &profile)
	require.Equal(t, int64(115), profile.PointsBalance)
	require.Equal(t, domain.TierSilver, profile.Tier)

	rec = httpDo(t, r, http.MethodGet, "/api/me/tier", created.ID, domain.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info application.TierInfo
	decode(t, rec, &info)
	require.Equal(t, domain.TierGold, info.NextTier)

	rec = httpDo(t, r, http.MethodGet, "/api/transactions/history", created.ID, domain.RoleCustomer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist application.History
	decode(t, rec, &hist)
	require.Len(t, hist.Transactions, 1)

	rec = httpDo(t, r, http.MethodGet, "/api/customers/top", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []application.LeaderboardEntry
	decode(t, rec, &board)
	require.Len(t, board, 1)
	require.Equal(t, 600.0, board[0].TotalSpent)

	rec = httpDo(t, r, http.MethodGet, "/api/policy/summary", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary application.PolicySummary
	decode(t, rec, &summary)
	require.Equal(t, int64(115), summary.TotalIssued)

	rec = httpDo(t, r, http.MethodPut, "/api/customers/"+created.ID+"/tier", testAdmin, domain.RoleAdmin, map[string]string{"tier": "Gold"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &profile)
	require.Equal(t, domain.TierGold, profile.Tier)

	rec = httpDo(t, r, http.MethodGet, "/api/customers/"+created.ID+"/history", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPolicyEndpoints(t *testing.T) {
	r := newTestHandler(t).Router()

	rec := httpDo(t, r, http.MethodGet, "/api/policy", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httpDo(t, r, http.MethodPut, "/api/policy", testAdmin, domain.RoleAdmin, samplePolicyBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpDo(t, r, http.MethodPut, "/api/policy/expiry", testAdmin, domain.RoleAdmin, map[string]int{"pointsExpiryDays": 90})
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.PolicySnapshot
	decode(t, rec, &p)
	require.Equal(t, 90, p.PointsExpiryDays)

	rec = httpDo(t, r, http.MethodPut, "/api/policy/expiry", testAdmin, domain.RoleAdmin, map[string]int{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httpDo(t, r, http.MethodPost, "/api/policy/category", testAdmin, domain.RoleAdmin, map[string]interface{}{"category": "Books", "pointsPer100": 12})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpDo(t, r, http.MethodPost, "/api/policy/threshold", testAdmin, domain.RoleAdmin, map[string]interface{}{"minAmount": 1000, "bonusPoints": 50})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpDo(t, r, http.MethodPost, "/api/policy/tier", testAdmin, domain.RoleAdmin, map[string]interface{}{"tierName": "Platinum", "minPoints": 2000, "multiplier": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/policy/tier", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tiers struct {
		TierRules []domain.TierRule `json:"tierRules"`
	}
	decode(t, rec, &tiers)
	require.Len(t, tiers.TierRules, 3)

	rec = httpDo(t, r, http.MethodDelete, "/api/policy", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = httpDo(t, r, http.MethodDelete, "/api/policy", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccessControlAndErrors(t *testing.T) {
	r := newTestHandler(t).Router()

	rec := httpDo(t, r, http.MethodGet, "/api/policy", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/policy", testAdmin, "superuser", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/policy", "cust-1", domain.RoleCustomer, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/me", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httpDo(t, r, http.MethodPost, "/api/transactions", "cust-1", domain.RoleCustomer, "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httpDo(t, r, http.MethodPost, "/api/transactions", "cust-1", domain.RoleCustomer, map[string]interface{}{
		"adminId": testAdmin, "amount": 0, "category": "Books",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/me", "cust-unknown", domain.RoleCustomer, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httpDo(t, r, http.MethodGet, "/api/customers/nobody/history", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httpDo(t, r, http.MethodPut, "/api/customers/nobody/tier", testAdmin, domain.RoleAdmin, map[string]string{"tier": "Bronze"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRoutes(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httpDo(t, mux, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httpDo(t, mux, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httpDo(t, mux, http.MethodGet, "/api/customers", testAdmin, domain.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
