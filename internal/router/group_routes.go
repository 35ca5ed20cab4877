// Package router 提供 HTTP 路由注册
// 本文件定义学习小组相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterGroupRoutes 注册学习小组路由
func (rt *Router) RegisterGroupRoutes(rg *gin.RouterGroup) {
	rg.POST("", rt.handlers.Group.CreateGroup)          // 创建小组
	rg.GET("/mine", rt.handlers.Group.LoadMyGroups)     // 我加入的小组
	rg.GET("/:id", rt.handlers.Group.GetGroup)          // 小组详情
	rg.POST("/:id/join", rt.handlers.Group.JoinGroup)   // 加入
	rg.POST("/:id/leave", rt.handlers.Group.LeaveGroup) // 退出（最后一人退出时解散）
	rg.DELETE("/:id", rt.handlers.Group.DeleteGroup)    // 创建者解散
}
