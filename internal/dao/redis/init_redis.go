package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"studyhub_server/internal/config"
	"studyhub_server/pkg/constants"
)

// Init 创建 Redis 客户端并检查连通性
// 返回的 client 由调用方在退出时关闭
func Init(ctx context.Context, cfg config.RedisConfig) (*redis.Client, *RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Db,
		PoolSize:     50,
		MinIdleConns: constants.CACHE_WORKER_NUM,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return client, NewRedisCache(client, constants.CACHE_WORKER_NUM, constants.CACHE_TASK_BUFFER), nil
}
