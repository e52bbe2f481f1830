package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"rewardledger/internal/pkg/config"
	"rewardledger/internal/pkg/metrics"
	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
	"rewardledger/internal/service/loyalty/domain/port"
	"rewardledger/internal/service/loyalty/infrastructure"
	"rewardledger/internal/service/loyalty/infrastructure/adapter"
	"rewardledger/internal/service/loyalty/infrastructure/rule"
)

const adminID = "admin-1"

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.TransactionRecorded
	err    error
}

func (p *capturePublisher) PublishTransaction(_ context.Context, e *domain.TransactionRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) all() []*domain.TransactionRecorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.TransactionRecorded(nil), p.events...)
}

type stubPayments struct {
	declined map[string]bool
}

func (s stubPayments) Confirm(_ context.Context, _ string, ref string, _ float64) error {
	if s.declined[ref] {
		return port.ErrPaymentNotConfirmed
	}
	return nil
}

type fixture struct {
	accounts  *infrastructure.GormAccountRepository
	txns      *infrastructure.GormTransactionRepository
	policies  *infrastructure.GormPolicyRepository
	publisher *capturePublisher
	recorder  *metrics.Recorder
	deps      application.PurchaseDeps

	purchases     *application.PurchaseService
	policyService *application.PolicyService
	customers     *application.CustomerService

	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := infrastructure.OpenDatabase(config.DatabaseConfig{Driver: "sqlite", Path: dsn})
	require.NoError(t, err)

	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	tracer := noop.NewTracerProvider().Tracer("test")

	f := &fixture{
		accounts:  infrastructure.NewGormAccountRepository(db),
		txns:      infrastructure.NewGormTransactionRepository(db),
		policies:  infrastructure.NewGormPolicyRepository(db),
		publisher: &capturePublisher{},
		recorder:  metrics.NewRecorder(prometheus.NewRegistry()),
		clock:     t0,
	}
	f.deps = application.PurchaseDeps{
		Policies:  application.NewPolicyLoader(f.policies),
		Accounts:  f.accounts,
		Purchases: f.accounts,
		Locker:    adapter.NewMemoryLocker(),
		Payments:  stubPayments{declined: map[string]bool{"declined": true}},
		Publisher: f.publisher,
		Rules:     rules,
		Metrics:   f.recorder,
	}
	f.purchases = application.NewPurchaseService(f.deps, tracer, 5*time.Second)
	f.purchases.SetClock(f.now)
	f.policyService = application.NewPolicyService(f.policies, f.accounts, f.txns, rules, tracer)
	f.customers = application.NewCustomerService(f.accounts, f.txns, f.policies, f.deps.Locker, tracer, 30, 5)
	f.customers.SetClock(f.now)
	f.customers.SetLockWait(100 * time.Millisecond)
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func standardPolicy() domain.PolicySnapshot {
	return domain.PolicySnapshot{
		Name:             "standard",
		BasePointsPer100: 10,
		CategoryRules: []domain.CategoryRule{
			{Category: "Electronics", PointsPer100: 15, MinAmount: 100, BonusPoints: 5},
		},
		SpendThresholds: []domain.SpendThreshold{{MinAmount: 500, BonusPoints: 20}},
		TierRules: []domain.TierRule{
			{TierName: domain.TierSilver, MinPoints: 100, Multiplier: 1.2, Benefits: "birthday gift"},
			{TierName: domain.TierGold, MinPoints: 500, Multiplier: 1.5},
		},
		PointsExpiryDays: 30,
	}
}

func (f *fixture) withPolicy(t *testing.T, p domain.PolicySnapshot) {
	t.Helper()
	_, err := f.policyService.UpsertPolicy(context.Background(), adminID, p)
	require.NoError(t, err)
}

func (f *fixture) register(t *testing.T, admin, email string) string {
	t.Helper()
	profile, err := f.customers.RegisterCustomer(context.Background(), admin, application.RegisterCustomerRequest{Name: email, Email: email})
	require.NoError(t, err)
	return profile.ID
}

func (f *fixture) buy(customerID string, amount float64, category string, redeem int64) (*application.PurchaseResult, error) {
	return f.purchases.ProcessPurchase(context.Background(), &application.PurchaseRequest{
		CustomerID:   customerID,
		AdminID:      adminID,
		Amount:       amount,
		Category:     category,
		RedeemPoints: redeem,
		PaymentRef:   "pay-" + customerID,
	})
}

func (f *fixture) stored(t *testing.T, customerID string) *domain.CustomerAccount {
	t.Helper()
	a, err := f.accounts.FindByID(context.Background(), customerID)
	require.NoError(t, err)
	return a
}
