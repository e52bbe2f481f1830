package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rewardledger/internal/service/loyalty/application"
	"rewardledger/internal/service/loyalty/domain"
)

// gatedPolicyRepo 在 release 关闭前阻塞 FindByAdmin，并尊重传入的 ctx
type gatedPolicyRepo struct {
	domain.PolicyRepository
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedPolicyRepo) FindByAdmin(ctx context.Context, adminID string) (*domain.PolicySnapshot, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
		return &domain.PolicySnapshot{AdminID: adminID, Name: "gated"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPolicyLoader_CancelledCallerDoesNotFailOthers(t *testing.T) {
	repo := &gatedPolicyRepo{started: make(chan struct{}), release: make(chan struct{})}
	loader := application.NewPolicyLoader(repo)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := loader.Snapshot(ctxA, adminID)
		errA <- err
	}()
	<-repo.started

	type result struct {
		policy domain.PolicySnapshot
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		p, err := loader.Snapshot(context.Background(), adminID)
		resB <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(repo.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		require.Equal(t, "gated", r.policy.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never returned")
	}
}

func TestPolicyLoader_ReturnsIndependentCopies(t *testing.T) {
	f := newFixture(t)
	f.withPolicy(t, standardPolicy())
	loader := application.NewPolicyLoader(f.policies)

	a, err := loader.Snapshot(context.Background(), adminID)
	require.NoError(t, err)
	a.TierRules[0].Multiplier = 99

	b, err := loader.Snapshot(context.Background(), adminID)
	require.NoError(t, err)
	require.Equal(t, 1.2, b.TierRules[0].Multiplier)
}
