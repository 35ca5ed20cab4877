// Package router 提供 HTTP 路由注册
// 本文件定义 WebSocket 路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes 注册小组实时推送入口
// 请求示例: ws://host:port/api/study-groups/G123/ws?token=xxx
func (rt *Router) RegisterWebSocketRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/ws", rt.handlers.Ws.Connect)
}
