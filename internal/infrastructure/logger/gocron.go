package logger

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// gocronLogger 把 gocron 的 key/value 日志转成 zap 字段
type gocronLogger struct {
	lg *zap.Logger
}

// NewGocronLogger 返回写入全局 zap Logger 的 gocron.Logger
func NewGocronLogger() gocron.Logger {
	return &gocronLogger{lg: zap.L().Named("scheduler")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.lg.Debug(msg, toFields(args)...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.lg.Info(msg, toFields(args)...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.lg.Warn(msg, toFields(args)...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.lg.Error(msg, toFields(args)...) }

func toFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields = append(fields, zap.Any("extra", args[i]))
			break
		}
		key := fmt.Sprint(args[i])
		if err, ok := args[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
