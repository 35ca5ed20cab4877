// Package router 提供 HTTP 路由注册
// 本文件定义小组消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息和附件下载路由
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/messages", rt.handlers.Message.ListMessages) // 聊天记录
	rg.POST("/:id/messages", rt.handlers.Message.PostMessage) // 发送消息（multipart）

	// 附件下载，路径即消息里的 fileUrl
	rg.GET("/files/:groupId/:filename", rt.handlers.Message.DownloadAttachment)
}
