// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
package service

import (
	"context"

	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/dto/respond"
	"studyhub_server/internal/infrastructure/storage"
)

// GroupService 学习小组业务接口
type GroupService interface {
	// CreateGroup 创建小组，创建者成为第一个成员
	CreateGroup(userId string, req request.CreateStudyGroupRequest) (*respond.StudyGroupRespond, error)
	// LoadMyGroups 当前用户加入的小组
	LoadMyGroups(userId string) ([]respond.StudyGroupRespond, error)
	// GetGroup 小组详情
	GetGroup(groupId string) (*respond.StudyGroupRespond, error)
	// JoinGroup 加入小组（幂等）
	JoinGroup(userId, groupId string) (*respond.StudyGroupRespond, error)
	// LeaveGroup 退出小组，必要时转移创建者或解散
	LeaveGroup(ctx context.Context, userId, groupId string) (*respond.LeaveStudyGroupRespond, error)
	// DeleteGroup 创建者解散小组
	DeleteGroup(ctx context.Context, userId, groupId string) error
}

// MessageService 小组聊天业务接口
type MessageService interface {
	// PostMessage 发送消息，content 与 upload 至少一个
	PostMessage(ctx context.Context, userId, groupId string, req request.PostMessageRequest, upload *request.Upload) (*respond.MessageRespond, error)
	// ListMessages 按创建时间升序返回小组消息
	ListMessages(ctx context.Context, userId, groupId string) ([]respond.MessageRespond, error)
	// DownloadAttachment 打开附件（流或重定向）
	DownloadAttachment(ctx context.Context, userId, groupId, fileName string) (*storage.Content, error)
	// InvalidateGroup 删除小组消息列表缓存
	InvalidateGroup(groupId string)
}

// MembershipChecker websocket 握手前的成员校验
type MembershipChecker interface {
	AssertMember(userId, groupId string) error
}
