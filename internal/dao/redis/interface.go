// Package redis 定义缓存服务接口及其 Redis 实现
// Service 层依赖接口，缓存不可用时可以整体降级到数据库
package redis

import (
	"context"
	"time"
)

// CacheService 缓存服务接口
type CacheService interface {
	// Set 设置键值对并指定过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)
	// Delete 删除键（不存在时忽略）
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern 删除匹配模式的所有键
	DeleteByPattern(ctx context.Context, pattern string) error
	// Version 读取版本号，不存在时为 0
	Version(ctx context.Context, versionKey string) (int64, error)
	// BumpVersion 版本号加一，之前读到旧版本的写入全部作废
	BumpVersion(ctx context.Context, versionKey string, ttl time.Duration) error
	// SetIfVersion 版本号仍等于 version 时才写入，返回是否写入
	SetIfVersion(ctx context.Context, key, value string, ttl time.Duration, versionKey string, version int64) (bool, error)
}

// AsyncCacheService 在 CacheService 之上提供异步任务提交能力
type AsyncCacheService interface {
	CacheService
	// SubmitTask 提交异步缓存任务，队列满时同步执行
	SubmitTask(action func())
}
