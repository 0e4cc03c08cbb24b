package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// EnvRedisAddr 集成测试使用的 Redis 地址
const EnvRedisAddr = "PAYGATE_TEST_REDIS_ADDR"

// NewRedisClient 返回连接到 PAYGATE_TEST_REDIS_ADDR 的客户端，使用 DB 1 避免与默认的 DB 0 冲突
//
// 环境变量未设置时跳过测试。生命周期由 t.Cleanup 管理。
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		t.Skip(EnvRedisAddr + " not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err(), "failed to ping redis at %s", addr)
	return client
}
