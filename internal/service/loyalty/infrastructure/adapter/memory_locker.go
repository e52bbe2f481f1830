package adapter

import (
	"context"
	"sync"
)

// MemoryLocker 是单实例部署下的客户锁实现，每个客户一个带引用计数的互斥量。
// 多实例部署时应换成 RedisLocker 或 ZookeeperLocker。
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*customerLock
}

type customerLock struct {
	ch   chan struct{} // 容量为 1 的信号量，可以和 ctx 一起 select
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*customerLock)}
}

func (m *MemoryLocker) Lock(ctx context.Context, customerID string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[customerID]
	if !ok {
		l = &customerLock{ch: make(chan struct{}, 1)}
		m.locks[customerID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(customerID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.release(customerID, l)
		})
	}, nil
}

// release 减少引用计数，没有等待者时回收条目
func (m *MemoryLocker) release(customerID string, l *customerLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, customerID)
	}
}
