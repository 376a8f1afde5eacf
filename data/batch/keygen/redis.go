package keygen

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"batchinsert/errors"
)

// IRedisCounter RedisAllocator 依赖的最小 Redis 能力
//
// *redis.Client、*redis.ClusterClient 均满足该接口。
type IRedisCounter interface {
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
}

// RedisAllocator 通过 INCRBY 一次预留连续的 ID 段
//
// 每个类型一个计数器，键为 prefix + 类型名。
type RedisAllocator struct {
	client IRedisCounter
	prefix string
}

// NewRedisAllocator 创建分配器，prefix 为空时使用 "batch:seq:"
func NewRedisAllocator(client IRedisCounter, prefix string) *RedisAllocator {
	if prefix == "" {
		prefix = "batch:seq:"
	}
	return &RedisAllocator{client: client, prefix: prefix}
}

// Allocate 实现 IAllocator，返回 last-n+1..last
func (a *RedisAllocator) Allocate(ctx context.Context, key string, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}

	last, err := a.client.IncrBy(ctx, a.prefix+key, int64(n)).Result()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeDatabase, fmt.Sprintf("reserve %d ids for %s", n, key))
	}

	ids := make([]int64, n)
	first := last - int64(n) + 1
	for i := range ids {
		ids[i] = first + int64(i)
	}
	return ids, nil
}
