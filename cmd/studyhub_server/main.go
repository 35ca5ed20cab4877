package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studyhub_server/internal/config"
	dao "studyhub_server/internal/dao/mysql"
	myredis "studyhub_server/internal/dao/redis"
	"studyhub_server/internal/handler"
	"studyhub_server/internal/https_server"
	"studyhub_server/internal/infrastructure/logger"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/service"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/cleanup"
	"studyhub_server/pkg/constants"
	"studyhub_server/pkg/util/jwt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("logger initialized", zap.String("app", conf.MainConfig.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		zap.L().Fatal("server exited with error", zap.Error(err))
	}
	zap.L().Info("server stopped")
}

func run(ctx context.Context, conf *config.Config) error {
	// 3. JWT 与参数校验翻译
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	if err := handler.InitTrans("en"); err != nil {
		return err
	}

	// 4. 数据库
	repos, err := dao.Init(conf.MysqlConfig, conf.RetentionConfig)
	if err != nil {
		return err
	}
	zap.L().Info("mysql initialized")

	// 5. Redis 不可用时不缓存，直接查库
	var cache myredis.AsyncCacheService
	redisClient, redisCache, err := myredis.Init(ctx, conf.RedisConfig)
	if err != nil {
		zap.L().Warn("redis unavailable, message list cache disabled", zap.Error(err))
	} else {
		cache = redisCache
		defer func() { _ = redisClient.Close() }()
		// 停机期间数据库可能已被过期事件改写，旧的列表缓存全部作废
		if err := redisCache.DeleteByPattern(ctx, constants.GROUP_MESSAGE_CACHE+"*"); err != nil {
			zap.L().Warn("flush message list cache failed", zap.Error(err))
		}
		zap.L().Info("redis initialized")
	}

	// 6. 文件存储，启动时选定一次
	store, err := storage.New(ctx, conf.StorageConfig)
	if err != nil {
		return err
	}
	zap.L().Info("storage initialized", zap.String("backend", string(store.Kind())))

	// 7. 实时推送
	hub := chat.NewHub()
	broker, err := chat.NewMessageBroker(conf.KafkaConfig, hub)
	if err != nil {
		return err
	}

	// 8. Service 层 (依赖注入)
	svc := service.NewServices(service.Dependencies{
		Repos:         repos,
		Storage:       store,
		Cache:         cache,
		Events:        broker,
		Retention:     conf.RetentionConfig,
		MaxUploadSize: conf.StorageConfig.MaxUploadSize,
	})

	// 9. 清理任务
	scheduler, err := cleanup.NewScheduler(svc.Cleanup, conf.RetentionConfig.CleanupInterval)
	if err != nil {
		return err
	}
	scheduler.Start()

	// 10. HTTP 服务
	engine := https_server.Init(conf.MainConfig, handler.NewHandlers(svc, hub, conf.StorageConfig.MaxUploadSize))
	srv := https_server.NewServer(conf.MainConfig, engine)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return broker.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down")
		return shutdown(srv, scheduler, broker, hub)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdown 依次关闭 HTTP、清理任务、消息代理和剩余的 websocket 连接
func shutdown(srv *http.Server, scheduler *cleanup.Scheduler, broker chat.MessageBroker, hub *chat.Hub) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := scheduler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := broker.Close(); err != nil {
		errs = append(errs, err)
	}
	hub.CloseAll()
	return errors.Join(errs...)
}
