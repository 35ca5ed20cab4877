// Package handler 提供 HTTP 请求处理器
// 本文件处理小组 WebSocket 连接
package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyhub_server/internal/infrastructure/middleware"
	"studyhub_server/internal/service"
	"studyhub_server/internal/service/chat"
)

// WsHandler 小组实时推送
type WsHandler struct {
	members service.MembershipChecker
	hub     *chat.Hub
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(members service.MembershipChecker, hub *chat.Hub) *WsHandler {
	return &WsHandler{members: members, hub: hub}
}

// Connect 升级为 WebSocket 并订阅小组事件
// GET /api/study-groups/:id/ws?token=xxx
// 只有小组成员可以连接；连接建立后只推送，不接收客户端消息
func (h *WsHandler) Connect(c *gin.Context) {
	userId, groupId := middleware.CurrentUserID(c), c.Param("id")
	if err := h.members.AssertMember(userId, groupId); err != nil {
		HandleError(c, err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, userId, groupId); err != nil {
		// upgrader 已经写过错误响应
		zap.L().Warn("websocket upgrade failed",
			zap.String("group_id", groupId),
			zap.String("user_id", userId),
			zap.Error(err))
	}
}
