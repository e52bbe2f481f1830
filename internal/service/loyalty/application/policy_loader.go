package application

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"rewardledger/internal/service/loyalty/domain"
)

const defaultPolicyLoadTimeout = 5 * time.Second

// PolicyLoader 合并同一商户的并发策略读取。
// 每个调用方都拿到自己的深拷贝，后续修改互不影响。
type PolicyLoader struct {
	repo        domain.PolicyRepository
	group       singleflight.Group
	loadTimeout time.Duration
}

func NewPolicyLoader(repo domain.PolicyRepository) *PolicyLoader {
	return &PolicyLoader{repo: repo, loadTimeout: defaultPolicyLoadTimeout}
}

// Snapshot 返回商户当前策略的快照，找不到时返回 ErrNotFound。
// 共享的读取不绑定任何一个调用方的 ctx：某个调用方取消只影响它自己。
func (l *PolicyLoader) Snapshot(ctx context.Context, adminID string) (domain.PolicySnapshot, error) {
	ch := l.group.DoChan(adminID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
		defer cancel()
		return l.repo.FindByAdmin(loadCtx, adminID)
	})

	select {
	case <-ctx.Done():
		return domain.PolicySnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.PolicySnapshot{}, res.Err
		}
		return res.Val.(*domain.PolicySnapshot).Snapshot(), nil
	}
}
