package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"studyhub_server/internal/infrastructure/logger"
)

const jobName = "study-group-retention"

// Scheduler 周期触发清理，由进程生命周期管理
// 同一进程内不会重叠执行；多进程部署时各自运行，没有分布式互斥
type Scheduler struct {
	scheduler gocron.Scheduler
	engine    *Engine
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler 创建调度器并登记清理任务，Start 后立即执行一次，之后每 interval 执行
func NewScheduler(engine *Engine, interval time.Duration) (*Scheduler, error) {
	if engine == nil {
		return nil, errors.New("nil cleanup engine")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid cleanup interval %s", interval)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logger.NewGocronLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{scheduler: s, engine: engine, interval: interval, ctx: ctx, cancel: cancel}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { sch.RunOnce() }),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}
	return sch, nil
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.scheduler.Start()
	zap.L().Info("cleanup scheduler started", zap.Duration("interval", s.interval))
}

// RunOnce 同步执行一轮清理，测试和运维手动触发时使用
func (s *Scheduler) RunOnce() CycleReport {
	return s.engine.RunCycle(s.ctx)
}

// Stop 取消正在执行的一轮并等待任务退出
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	zap.L().Info("cleanup scheduler stopped")
	return nil
}
