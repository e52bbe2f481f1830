package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"rewardledger/internal/pkg/redis"
)

const (
	acquireLockScriptName = "acquire_customer_lock"
	releaseLockScriptName = "release_customer_lock"
	lockRetryInterval     = 20 * time.Millisecond
)

// RedisLocker 是 port.CustomerLocker 的 Redis 实现。
// 锁值是每次加锁生成的随机 token，释放时由 Lua 脚本校验，避免误删别人的锁。
type RedisLocker struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisLocker 创建锁适配器，并在创建时加载所需的 Lua 脚本
func NewRedisLocker(redisClient *redis.Client, ttl time.Duration) (*RedisLocker, error) {
	if err := redisClient.LoadScriptFromContent(acquireLockScriptName, acquireLockScript); err != nil {
		return nil, fmt.Errorf("failed to load acquire lock script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseLockScriptName, releaseLockScript); err != nil {
		return nil, fmt.Errorf("failed to load release lock script: %w", err)
	}
	return &RedisLocker{redisClient: redisClient, ttl: ttl}, nil
}

func customerLockKey(customerID string) string {
	return fmt.Sprintf("loyalty:lock:customer:{%s}", customerID)
}

func (a *RedisLocker) Lock(ctx context.Context, customerID string) (func(), error) {
	key := customerLockKey(customerID)
	token := uuid.NewString()
	keys := []string{key}

	for {
		result, err := a.redisClient.RunScript(ctx, acquireLockScriptName, keys, token, a.ttl.Milliseconds())
		if err != nil {
			return nil, fmt.Errorf("redis locker failed to run script: %w", err)
		}
		code, ok := result.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected result type from Lua script: %T", result)
		}
		if code == 1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on customer %s: %w", customerID, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	return func() {
		// 使用独立的 context，即使业务 ctx 已取消也要尝试释放
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := a.redisClient.RunScript(releaseCtx, releaseLockScriptName, keys, token); err != nil {
			zlog.Error().Err(err).Str("customer_id", customerID).Msg("failed to release customer lock; it will expire by ttl")
		}
	}, nil
}

// KEYS[1]: 锁的 Key, 例如: loyalty:lock:customer:{c-123}
// ARGV[1]: 本次加锁的 token
// ARGV[2]: 过期时间（毫秒）
var acquireLockScript = `
if redis.call('set', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
    return 1
end
return 0
`

// 只有 token 匹配时才删除，返回 1 表示释放成功
var releaseLockScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
