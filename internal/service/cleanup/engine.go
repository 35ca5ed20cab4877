// Package cleanup 学习小组消息的保留策略
// 被动过期、数量上限和总大小上限由 Engine 按小组执行，Scheduler 负责周期触发
// 数据库事件只兜底删除清理任务漏掉的过期行
package cleanup

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/model"
	"studyhub_server/internal/service/chat"
	"studyhub_server/pkg/constants"
)

// CacheInvalidator 小组消息列表缓存失效
type CacheInvalidator interface {
	InvalidateGroup(groupId string)
}

// Report 单个小组一次清理的结果
type Report struct {
	GroupId      string
	Expired      int64
	CountEvicted int64
	SizeEvicted  int64
	FileFailures int
}

// Evicted 本次删除的消息总数
func (r *Report) Evicted() int64 {
	return r.Expired + r.CountEvicted + r.SizeEvicted
}

// CycleReport 一轮清理的汇总
type CycleReport struct {
	Groups       int
	Evicted      int64
	FileFailures int
	Failed       []string // 出错的小组，不影响其他小组
	Duration     time.Duration
}

// Engine 保留策略执行器
type Engine struct {
	repos       *repository.Repositories
	store       storage.Backend
	policy      config.RetentionConfig
	invalidator CacheInvalidator
	events      chat.Publisher
	now         func() time.Time
}

// NewEngine 创建清理引擎，invalidator 与 events 可以为 nil
func NewEngine(
	repos *repository.Repositories,
	store storage.Backend,
	policy config.RetentionConfig,
	invalidator CacheInvalidator,
	events chat.Publisher,
) *Engine {
	if policy.MaxMessageCount <= 0 {
		policy.MaxMessageCount = constants.MAX_MESSAGE_COUNT
	}
	if policy.MaxAggregateSizeMB <= 0 {
		policy.MaxAggregateSizeMB = constants.MAX_AGGREGATE_SIZE_MB
	}
	if policy.MessageTTL <= 0 {
		policy.MessageTTL = constants.MESSAGE_EXPIRY
	}
	return &Engine{
		repos:       repos,
		store:       store,
		policy:      policy,
		invalidator: invalidator,
		events:      events,
		now:         time.Now,
	}
}

// EnforceRetention 对一个小组依次执行被动过期、数量上限和大小上限
func (e *Engine) EnforceRetention(ctx context.Context, groupId string) (*Report, error) {
	report := &Report{GroupId: groupId}

	n, failures, err := e.expire(ctx, groupId)
	report.Expired, report.FileFailures = n, failures
	if err != nil {
		return report, err
	}

	n, failures, err = e.enforceCount(ctx, groupId)
	report.CountEvicted, report.FileFailures = n, report.FileFailures+failures
	if err != nil {
		return report, err
	}

	n, failures, err = e.enforceSize(ctx, groupId)
	report.SizeEvicted, report.FileFailures = n, report.FileFailures+failures
	if err != nil {
		return report, err
	}

	if report.Evicted() > 0 {
		zap.L().Info("retention enforced",
			zap.String("group_id", groupId),
			zap.Int64("expired", report.Expired),
			zap.Int64("count_evicted", report.CountEvicted),
			zap.Int64("size_evicted", report.SizeEvicted),
			zap.Int("file_failures", report.FileFailures))
	}
	return report, nil
}

// expire 删除超过被动过期时间的消息和它们的附件
// 读取侧早已隐藏这些消息，这里保证附件不会留下来继续被下载
func (e *Engine) expire(ctx context.Context, groupId string) (int64, int, error) {
	messages, err := e.repos.Message.ExpiredBefore(groupId, e.now().Add(-e.policy.MessageTTL))
	if err != nil {
		return 0, 0, err
	}
	return e.evict(ctx, groupId, messages)
}

// enforceCount 超出数量上限的部分从最早的开始删
func (e *Engine) enforceCount(ctx context.Context, groupId string) (int64, int, error) {
	count, err := e.repos.Message.CountByGroup(groupId)
	if err != nil {
		return 0, 0, err
	}
	excess := count - e.policy.MaxMessageCount
	if excess <= 0 {
		return 0, 0, nil
	}
	return e.evictOldest(ctx, groupId, int(excess))
}

// enforceSize 估算总大小超限时按平均大小推算要删的条数，留 10% 余量
func (e *Engine) enforceSize(ctx context.Context, groupId string) (int64, int, error) {
	count, err := e.repos.Message.CountByGroup(groupId)
	if err != nil || count == 0 {
		return 0, 0, err
	}
	total, err := e.repos.Message.SumEstimatedSize(groupId)
	if err != nil {
		return 0, 0, err
	}
	limit := e.policy.MaxAggregateBytes()
	if total <= limit {
		return 0, 0, nil
	}

	avg := float64(total) / float64(count)
	toRemove := int64(math.Ceil((float64(total) - constants.SIZE_HEADROOM*float64(limit)) / avg))
	if toRemove > count {
		toRemove = count
	}
	return e.evictOldest(ctx, groupId, int(toRemove))
}

// evictOldest 删除最早的 n 条
func (e *Engine) evictOldest(ctx context.Context, groupId string, n int) (int64, int, error) {
	messages, err := e.repos.Message.OldestN(groupId, n)
	if err != nil {
		return 0, 0, err
	}
	return e.evict(ctx, groupId, messages)
}

// evict 先尽力删附件，再批量删消息记录
func (e *Engine) evict(ctx context.Context, groupId string, messages []model.Message) (int64, int, error) {
	if len(messages) == 0 {
		return 0, 0, nil
	}

	failures := e.ReleaseAttachments(ctx, groupId, messages)

	ids := make([]uint, 0, len(messages))
	uuids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
		uuids = append(uuids, m.Uuid)
	}
	deleted, err := e.repos.Message.DeleteByIds(ids)
	if err != nil {
		return 0, failures, err
	}

	if e.invalidator != nil {
		e.invalidator.InvalidateGroup(groupId)
	}
	chat.Notify(ctx, e.events, chat.GroupEvent{
		Type:       chat.EventMessagesEvicted,
		GroupId:    groupId,
		MessageIds: uuids,
	})
	return deleted, failures, nil
}

// ReleaseAttachments 逐个删除附件，失败只记日志，返回失败个数
// 小组解散时也复用这里
func (e *Engine) ReleaseAttachments(ctx context.Context, groupId string, messages []model.Message) int {
	failures := 0
	for _, m := range messages {
		if !m.HasAttachment() {
			continue
		}
		if err := e.store.Delete(ctx, m.Locator); err != nil {
			failures++
			zap.L().Warn("delete attachment failed",
				zap.String("group_id", groupId),
				zap.String("message_id", m.Uuid),
				zap.String("locator", m.Locator),
				zap.Error(err))
		}
	}
	return failures
}

// RunCycle 顺序处理全部小组，单个小组出错只记录不中断
func (e *Engine) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	var cycle CycleReport

	groupIds, err := e.repos.Group.FindAllUuids()
	if err != nil {
		zap.L().Error("list groups for cleanup failed", zap.Error(err))
		cycle.Duration = time.Since(start)
		return cycle
	}

	for _, groupId := range groupIds {
		if ctx.Err() != nil {
			zap.L().Warn("cleanup cycle interrupted", zap.Int("remaining", len(groupIds)-cycle.Groups))
			break
		}
		cycle.Groups++
		report, err := e.enforceIsolated(ctx, groupId)
		if report != nil {
			cycle.Evicted += report.Evicted()
			cycle.FileFailures += report.FileFailures
		}
		if err != nil {
			cycle.Failed = append(cycle.Failed, groupId)
			zap.L().Error("enforce retention failed", zap.String("group_id", groupId), zap.Error(err))
		}
	}

	cycle.Duration = time.Since(start)
	zap.L().Info("cleanup cycle finished",
		zap.Int("groups", cycle.Groups),
		zap.Int64("evicted", cycle.Evicted),
		zap.Int("file_failures", cycle.FileFailures),
		zap.Int("failed_groups", len(cycle.Failed)),
		zap.Duration("cost", cycle.Duration))
	return cycle
}

// enforceIsolated panic 也只算这个小组失败
func (e *Engine) enforceIsolated(ctx context.Context, groupId string) (report *Report, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("retention panic: %v", rec)
		}
	}()
	return e.EnforceRetention(ctx, groupId)
}
