package constants

import "time"

const (
	CHANNEL_SIZE          = 100              // 通道大小
	FILE_MAX_SIZE         = 50 << 20         // 上传文件最大大小（字节）
	REDIS_TIMEOUT         = 1                // redis 消息列表缓存 timeout (分钟)
	CACHE_WORKER_NUM      = 15               // 缓存 Worker 数量
	CACHE_TASK_BUFFER     = 3000             // 缓存任务缓冲区大小
	MESSAGE_EXPIRY        = 24 * time.Hour   // 消息被动过期时间
	MAX_MESSAGE_COUNT     = 5000             // 每个群最多保留消息条数
	MAX_AGGREGATE_SIZE_MB = 5                // 每个群消息总大小上限（MB）
	CLEANUP_INTERVAL      = time.Hour        // 清理任务执行间隔
	SIGNED_URL_TTL        = time.Hour        // 签名下载链接有效期
	SIZE_HEADROOM         = 0.9              // 按大小清理时保留的余量系数
	GROUP_MESSAGE_CACHE   = "group_messagelist_"
	GROUP_MESSAGE_VERSION = "group_messagever_" // 群消息缓存版本号，失效时自增
)
