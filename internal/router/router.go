// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub_server/internal/handler"
	"studyhub_server/internal/infrastructure/middleware"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// /api 下的路由都需要 JWT 认证
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api", middleware.JWTAuth())
	groups := api.Group("/study-groups")
	rt.RegisterGroupRoutes(groups)     // 小组管理
	rt.RegisterMessageRoutes(groups)   // 聊天消息与附件
	rt.RegisterWebSocketRoutes(groups) // 实时推送
}
