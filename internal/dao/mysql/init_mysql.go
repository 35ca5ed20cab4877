// Package mysql 建立 MySQL 连接、迁移表结构并初始化 Repository 层
package mysql

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/model"
)

const expiryEventName = "ev_study_message_expiry"

// Init 连接数据库并完成迁移
// retention 用于安装消息过期事件
func Init(cfg config.MysqlConfig, retention config.RetentionConfig) (*repository.Repositories, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := Migrate(db, retention); err != nil {
		return nil, err
	}
	return repository.NewRepositories(db), nil
}

// Migrate 自动迁移表结构；MySQL 下额外安装消息过期事件
func Migrate(db *gorm.DB, retention config.RetentionConfig) error {
	err := db.AutoMigrate(
		&model.UserInfo{},
		&model.GroupInfo{},
		&model.GroupMember{},
		&model.Message{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Dialector.Name() != "mysql" {
		return nil
	}
	if err := installExpiryEvent(db, ExpiryEventHorizon(retention)); err != nil {
		// 没有 EVENT 权限或 event_scheduler 关闭时，读取侧的时间过滤仍然生效
		zap.L().Warn("install message expiry event failed", zap.Error(err))
	}
	return nil
}

// ExpiryEventHorizon 事件比被动过期晚两个清理周期才删行
// 过期行先由清理任务连同附件一起删除，事件只兜底清理任务停摆的情况
func ExpiryEventHorizon(retention config.RetentionConfig) time.Duration {
	return retention.MessageTTL + 2*retention.CleanupInterval
}

// installExpiryEvent 由数据库每分钟删除超过 ttl 的消息
func installExpiryEvent(db *gorm.DB, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		return fmt.Errorf("invalid message ttl %s", ttl)
	}
	if err := db.Exec("DROP EVENT IF EXISTS " + expiryEventName).Error; err != nil {
		return err
	}
	stmt := fmt.Sprintf(
		"CREATE EVENT %s ON SCHEDULE EVERY 1 MINUTE DO DELETE FROM message WHERE created_at < NOW(3) - INTERVAL %d SECOND",
		expiryEventName, seconds,
	)
	if err := db.Exec(stmt).Error; err != nil {
		return err
	}
	zap.L().Info("message expiry event installed", zap.Duration("ttl", ttl))
	return nil
}
