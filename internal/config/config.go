// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库

	"studyhub_server/pkg/constants"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName  string `toml:"appName"`  // 应用名称，用于日志标识等
	Host     string `toml:"host"`     // 服务器监听地址，如 "0.0.0.0"
	Port     int    `toml:"port"`     // 服务器监听端口，如 8000
	Mode     string `toml:"mode"`     // 运行模式：dev / release
	ForceTLS bool   `toml:"forceTLS"` // http 请求重定向到 https；由 Nginx 终止 TLS 时保持 false
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // 消息模式："channel" 或 "kafka"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	ChatTopic   string        `toml:"chatTopic"`   // 群聊事件主题
	GroupID     string        `toml:"groupId"`     // 消费者组，每个进程应不同（广播语义）
	Timeout     time.Duration `toml:"timeout"`     // 写超时
}

// LocalStorageConfig 本地磁盘存储配置
type LocalStorageConfig struct {
	RootDir string `toml:"rootDir"` // 群聊文件根目录，按群 ID 分子目录
}

// CloudinaryConfig Cloudinary 存储配置
type CloudinaryConfig struct {
	CloudName string `toml:"cloudName"`
	APIKey    string `toml:"apiKey"`
	APISecret string `toml:"apiSecret"`
	Folder    string `toml:"folder"` // 上传目录（命名空间）
}

// S3Config S3 / MinIO 存储配置，下载走预签名链接
type S3Config struct {
	Region       string `toml:"region"`
	Bucket       string `toml:"bucket"`
	Prefix       string `toml:"prefix"`
	BaseEndpoint string `toml:"baseEndpoint"` // MinIO 等兼容服务地址，留空使用 AWS
	AccessKey    string `toml:"accessKey"`
	SecretKey    string `toml:"secretKey"`
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Backend         string             `toml:"backend"`         // local / cloudinary / s3
	FallbackToLocal bool               `toml:"fallbackToLocal"` // 云存储未配置时是否降级到本地
	MaxUploadSize   int64              `toml:"maxUploadSize"`   // 单个上传文件最大字节数
	Local           LocalStorageConfig `toml:"local"`
	Cloudinary      CloudinaryConfig   `toml:"cloudinary"`
	S3              S3Config           `toml:"s3"`
}

// RetentionConfig 群聊消息保留策略
type RetentionConfig struct {
	MaxMessageCount    int64         `toml:"maxMessageCount"`    // 每群最多保留消息数
	MaxAggregateSizeMB float64       `toml:"maxAggregateSizeMB"` // 每群消息总大小上限（MB）
	MessageTTL         time.Duration `toml:"messageTTL"`         // 被动过期时间
	CleanupInterval    time.Duration `toml:"cleanupInterval"`    // 清理任务间隔
}

// MaxAggregateBytes 将 MB 上限换算为字节
func (r RetentionConfig) MaxAggregateBytes() int64 {
	return int64(r.MaxAggregateSizeMB * 1024 * 1024)
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，需与签发方一致
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	StorageConfig   `toml:"storageConfig"`
	RetentionConfig `toml:"retentionConfig"`
	JWTConfig       `toml:"jwtConfig"`
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件，缺失项使用默认值
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // 忽略加载错误，使用默认值
		config.ApplyDefaults()
	}
	return config
}

// ApplyDefaults 填充缺省配置，并读取云存储相关环境变量
func (c *Config) ApplyDefaults() {
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.MainConfig.Mode == "" {
		c.MainConfig.Mode = "dev"
	}
	if c.KafkaConfig.MessageMode == "" {
		c.KafkaConfig.MessageMode = "channel"
	}
	if c.KafkaConfig.ChatTopic == "" {
		c.KafkaConfig.ChatTopic = "study_group_events"
	}
	if c.KafkaConfig.Timeout == 0 {
		c.KafkaConfig.Timeout = 5 * time.Second
	}

	if c.StorageConfig.Backend == "" {
		c.StorageConfig.Backend = "local"
	}
	if c.StorageConfig.MaxUploadSize <= 0 {
		c.StorageConfig.MaxUploadSize = constants.FILE_MAX_SIZE
	}
	if c.StorageConfig.Local.RootDir == "" {
		c.StorageConfig.Local.RootDir = "uploads/study-groups"
	}
	if c.StorageConfig.Cloudinary.Folder == "" {
		c.StorageConfig.Cloudinary.Folder = "study-groups"
	}
	if c.StorageConfig.S3.Prefix == "" {
		c.StorageConfig.S3.Prefix = "study-groups"
	}
	if c.StorageConfig.S3.AccessKey == "" {
		c.StorageConfig.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if c.StorageConfig.S3.SecretKey == "" {
		c.StorageConfig.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	if c.RetentionConfig.MaxMessageCount <= 0 {
		c.RetentionConfig.MaxMessageCount = constants.MAX_MESSAGE_COUNT
	}
	if c.RetentionConfig.MaxAggregateSizeMB <= 0 {
		c.RetentionConfig.MaxAggregateSizeMB = constants.MAX_AGGREGATE_SIZE_MB
	}
	if c.RetentionConfig.MessageTTL <= 0 {
		c.RetentionConfig.MessageTTL = constants.MESSAGE_EXPIRY
	}
	if c.RetentionConfig.CleanupInterval <= 0 {
		c.RetentionConfig.CleanupInterval = constants.CLEANUP_INTERVAL
	}

	if c.JWTConfig.AccessTokenExpiry == 0 {
		c.JWTConfig.AccessTokenExpiry = 60
	}
}
