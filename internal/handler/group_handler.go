// Package handler 提供 HTTP 请求处理器
// 本文件处理学习小组相关的 API 请求
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/infrastructure/middleware"
	"studyhub_server/internal/service"
)

// GroupHandler 学习小组请求处理器
// 通过构造函数注入 GroupService，遵循依赖倒置原则
type GroupHandler struct {
	groupSvc service.GroupService
}

// NewGroupHandler 创建学习小组处理器实例
func NewGroupHandler(groupSvc service.GroupService) *GroupHandler {
	return &GroupHandler{groupSvc: groupSvc}
}

// CreateGroup 创建小组
// POST /api/study-groups
// 请求体: request.CreateStudyGroupRequest
// 响应: 201 respond.StudyGroupRespond
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req request.CreateStudyGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.groupSvc.CreateGroup(middleware.CurrentUserID(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusCreated, data)
}

// LoadMyGroups 当前用户加入的小组
// GET /api/study-groups/mine
// 响应: []respond.StudyGroupRespond
func (h *GroupHandler) LoadMyGroups(c *gin.Context) {
	data, err := h.groupSvc.LoadMyGroups(middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// GetGroup 小组详情
// GET /api/study-groups/:id
func (h *GroupHandler) GetGroup(c *gin.Context) {
	data, err := h.groupSvc.GetGroup(c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// JoinGroup 加入小组
// POST /api/study-groups/:id/join
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	data, err := h.groupSvc.JoinGroup(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// LeaveGroup 退出小组
// POST /api/study-groups/:id/leave
// 响应: respond.LeaveStudyGroupRespond（deleted=true 表示小组已解散）
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	data, err := h.groupSvc.LeaveGroup(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusOK, data)
}

// DeleteGroup 创建者解散小组
// DELETE /api/study-groups/:id
// 响应: 204
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	if err := h.groupSvc.DeleteGroup(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, http.StatusNoContent, nil)
}
