package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyhub_server/internal/config"
)

// New 按配置解析出唯一的存储后端，只在启动时调用一次
// 云后端未配置时直接报错，除非开启 fallbackToLocal
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	local := NewLocalBackend(cfg.Local.RootDir)

	var (
		backend Backend
		err     error
	)
	switch Kind(strings.ToLower(cfg.Backend)) {
	case "", KindLocal:
		return local, nil
	case KindCloudinary:
		backend, err = NewCloudinaryBackend(cfg.Cloudinary)
	case KindS3:
		backend, err = NewS3Backend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if !backend.IsConfigured() {
		if !cfg.FallbackToLocal {
			return nil, fmt.Errorf("%s: %w", backend.Kind(), ErrNotConfigured)
		}
		zap.L().Warn("cloud storage not configured, falling back to local disk",
			zap.String("backend", string(backend.Kind())),
			zap.String("root", cfg.Local.RootDir))
		return local, nil
	}

	zap.L().Info("storage backend ready", zap.String("backend", string(backend.Kind())))
	return backend, nil
}
