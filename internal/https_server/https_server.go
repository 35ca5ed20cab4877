// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"studyhub_server/internal/config"
	"studyhub_server/internal/handler"
	"studyhub_server/internal/infrastructure/logger"
	"studyhub_server/internal/infrastructure/middleware"
	"studyhub_server/internal/router"
)

// Init 创建 Gin 引擎并注册中间件和路由
// 配置顺序：
//  1. 日志和恢复中间件
//  2. 安全响应头（可选 https 重定向）
//  3. CORS 跨域规则
//  4. 业务路由
func Init(cfg config.MainConfig, handlers *handler.Handlers) *gin.Engine {
	if cfg.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))
	engine.Use(middleware.SecureHeaders(cfg.Host, cfg.Port, cfg.ForceTLS, cfg.Mode == "dev"))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	engine.Use(cors.New(corsConfig))

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}

// NewServer 包装为 http.Server，便于优雅关闭
// 下载大文件时不设置写超时
func NewServer(cfg config.MainConfig, engine http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
