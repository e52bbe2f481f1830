package adapter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"rewardledger/internal/pkg/zookeeper"
)

// ZookeeperLocker 是 port.CustomerLocker 的 ZooKeeper 实现，基于临时顺序节点排队，
// 会话断开时节点自动删除，不会出现死锁。
type ZookeeperLocker struct {
	conn *zookeeper.Conn
}

func NewZookeeperLocker(conn *zookeeper.Conn) *ZookeeperLocker {
	return &ZookeeperLocker{conn: conn}
}

func (a *ZookeeperLocker) Lock(ctx context.Context, customerID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(a.conn, "customer-"+customerID)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			zlog.Error().Err(err).Str("customer_id", customerID).Msg("failed to release zookeeper lock")
		}
	}, nil
}
