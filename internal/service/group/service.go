// Package group 学习小组：创建、加入、退出、解散
// 不变式：创建者始终是成员；成员为空的小组连同消息和附件一起删除
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/dto/request"
	"studyhub_server/internal/dto/respond"
	"studyhub_server/internal/model"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/guard"
	"studyhub_server/pkg/errorx"
	"studyhub_server/pkg/util/random"
)

// AttachmentReleaser 删除附件文件（尽力而为）
type AttachmentReleaser interface {
	ReleaseAttachments(ctx context.Context, groupId string, messages []model.Message) int
}

// CacheInvalidator 小组消息列表缓存失效
type CacheInvalidator interface {
	InvalidateGroup(groupId string)
}

// groupInfoService 学习小组业务逻辑实现
// 通过构造函数注入 Repository、附件清理和推送依赖
type groupInfoService struct {
	repos       *repository.Repositories
	guard       *guard.Guard
	releaser    AttachmentReleaser
	invalidator CacheInvalidator
	events      chat.Publisher
}

// NewGroupService 构造函数，invalidator 与 events 可以为 nil
func NewGroupService(
	repos *repository.Repositories,
	g *guard.Guard,
	releaser AttachmentReleaser,
	invalidator CacheInvalidator,
	events chat.Publisher,
) *groupInfoService {
	return &groupInfoService{
		repos:       repos,
		guard:       g,
		releaser:    releaser,
		invalidator: invalidator,
		events:      events,
	}
}

// CreateGroup 创建小组，创建者同时成为第一个成员
func (g *groupInfoService) CreateGroup(userId string, req request.CreateStudyGroupRequest) (*respond.StudyGroupRespond, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "group name is required")
	}
	if req.Semester < 1 || req.Semester > 8 {
		return nil, errorx.New(errorx.CodeInvalidParam, "semester must be between 1 and 8")
	}

	group := model.GroupInfo{
		Uuid:        fmt.Sprintf("G%s", random.GetNowAndLenRandomString(11)),
		Name:        name,
		Description: req.Description,
		SubjectId:   req.SubjectId,
		Semester:    req.Semester,
		CreatorId:   userId,
		MemberCnt:   1,
	}

	err := g.repos.Transaction(func(txRepos *repository.Repositories) error {
		if err := txRepos.Group.Create(&group); err != nil {
			zap.L().Error(err.Error())
			return errorx.ErrServerBusy
		}
		if err := txRepos.GroupMember.Create(&model.GroupMember{GroupUuid: group.Uuid, UserUuid: userId}); err != nil {
			zap.L().Error(err.Error())
			return errorx.ErrServerBusy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("study group created", zap.String("group_id", group.Uuid), zap.String("creator", userId))
	rsp := toRespond(&group, []string{userId})
	return &rsp, nil
}

// LoadMyGroups 当前用户加入的全部小组
func (g *groupInfoService) LoadMyGroups(userId string) ([]respond.StudyGroupRespond, error) {
	groupIds, err := g.repos.GroupMember.FindGroupUuidsByUser(userId)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	if len(groupIds) == 0 {
		return []respond.StudyGroupRespond{}, nil
	}
	groups, err := g.repos.Group.FindByUuids(groupIds)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	rspList := make([]respond.StudyGroupRespond, 0, len(groups))
	for i := range groups {
		rspList = append(rspList, toRespond(&groups[i], nil))
	}
	return rspList, nil
}

// GetGroup 小组详情（含成员列表）
func (g *groupInfoService) GetGroup(groupId string) (*respond.StudyGroupRespond, error) {
	group, err := g.guard.AssertExists(groupId)
	if err != nil {
		return nil, hideDBError(err)
	}
	return g.detail(group)
}

// JoinGroup 加入小组，已是成员时直接返回
func (g *groupInfoService) JoinGroup(userId, groupId string) (*respond.StudyGroupRespond, error) {
	group, err := g.guard.AssertExists(groupId)
	if err != nil {
		return nil, hideDBError(err)
	}

	err = g.repos.Transaction(func(txRepos *repository.Repositories) error {
		exists, err := txRepos.GroupMember.Exists(groupId, userId)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := txRepos.GroupMember.Create(&model.GroupMember{GroupUuid: groupId, UserUuid: userId}); err != nil {
			return err
		}
		return txRepos.Group.IncrementMemberCount(groupId)
	})
	if err != nil {
		zap.L().Error("join group failed", zap.String("group_id", groupId), zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	group, err = g.repos.Group.FindByUuid(groupId)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	return g.detail(group)
}

// LeaveGroup 退出小组
// 最后一名成员退出时解散小组并级联删除消息和附件；创建者退出时转移给最早加入的成员
func (g *groupInfoService) LeaveGroup(ctx context.Context, userId, groupId string) (*respond.LeaveStudyGroupRespond, error) {
	if _, err := g.guard.AssertMember(userId, groupId); err != nil {
		return nil, hideDBError(err)
	}

	rsp := &respond.LeaveStudyGroupRespond{GroupId: groupId}
	var attachments []model.Message
	err := g.repos.Transaction(func(txRepos *repository.Repositories) error {
		group, err := txRepos.Group.FindByUuid(groupId)
		if err != nil {
			return err
		}
		n, err := txRepos.GroupMember.Delete(groupId, userId)
		if err != nil {
			return err
		}
		if n == 0 {
			return errorx.ErrForbidden
		}

		remaining, err := txRepos.GroupMember.FindByGroupUuid(groupId)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			rsp.Deleted = true
			attachments, err = purge(txRepos, groupId)
			return err
		}

		if err := txRepos.Group.DecrementMemberCount(groupId); err != nil {
			return err
		}
		rsp.CreatorId = group.CreatorId
		if group.CreatorId == userId {
			rsp.CreatorId = remaining[0].UserUuid
			return txRepos.Group.UpdateCreator(groupId, rsp.CreatorId)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errorx.ErrForbidden) {
			return nil, err
		}
		zap.L().Error("leave group failed", zap.String("group_id", groupId), zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	if rsp.Deleted {
		g.afterPurge(ctx, groupId, attachments)
		return rsp, nil
	}
	zap.L().Info("member left group",
		zap.String("group_id", groupId),
		zap.String("user_id", userId),
		zap.String("creator", rsp.CreatorId))
	chat.Notify(ctx, g.events, chat.GroupEvent{Type: chat.EventMemberLeft, GroupId: groupId, UserId: userId})
	return rsp, nil
}

// DeleteGroup 创建者解散小组，级联删除消息和附件
func (g *groupInfoService) DeleteGroup(ctx context.Context, userId, groupId string) error {
	group, err := g.guard.AssertExists(groupId)
	if err != nil {
		return hideDBError(err)
	}
	if group.CreatorId != userId {
		return errorx.ErrNotGroupCreator
	}

	var attachments []model.Message
	err = g.repos.Transaction(func(txRepos *repository.Repositories) error {
		var err error
		attachments, err = purge(txRepos, groupId)
		return err
	})
	if err != nil {
		zap.L().Error("delete group failed", zap.String("group_id", groupId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	g.afterPurge(ctx, groupId, attachments)
	return nil
}

// purge 在事务内删除小组、成员和全部消息，返回需要删除文件的附件
// 文件在事务提交之后才删，事务回滚时文件保持不动
func purge(txRepos *repository.Repositories, groupId string) ([]model.Message, error) {
	attachments, err := txRepos.Message.FindAttachmentsByGroup(groupId)
	if err != nil {
		return nil, err
	}
	if _, err := txRepos.Message.DeleteByGroup(groupId); err != nil {
		return nil, err
	}
	if err := txRepos.GroupMember.DeleteByGroupUuid(groupId); err != nil {
		return nil, err
	}
	if err := txRepos.Group.Delete(groupId); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (g *groupInfoService) afterPurge(ctx context.Context, groupId string, attachments []model.Message) {
	failures := 0
	if g.releaser != nil && len(attachments) > 0 {
		failures = g.releaser.ReleaseAttachments(ctx, groupId, attachments)
	}
	if g.invalidator != nil {
		g.invalidator.InvalidateGroup(groupId)
	}
	chat.Notify(ctx, g.events, chat.GroupEvent{Type: chat.EventGroupDeleted, GroupId: groupId})
	zap.L().Info("study group deleted",
		zap.String("group_id", groupId),
		zap.Int("attachments", len(attachments)),
		zap.Int("file_failures", failures))
}

func (g *groupInfoService) detail(group *model.GroupInfo) (*respond.StudyGroupRespond, error) {
	members, err := g.repos.GroupMember.FindByGroupUuid(group.Uuid)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserUuid)
	}
	rsp := toRespond(group, ids)
	return &rsp, nil
}

func toRespond(group *model.GroupInfo, members []string) respond.StudyGroupRespond {
	rsp := respond.StudyGroupRespond{
		Id:          group.Uuid,
		Name:        group.Name,
		Description: group.Description,
		SubjectId:   group.SubjectId,
		Semester:    group.Semester,
		CreatorId:   group.CreatorId,
		Members:     members,
		MemberCnt:   group.MemberCnt,
		CreatedAt:   group.CreatedAt,
	}
	if members != nil {
		rsp.MemberCnt = len(members)
	}
	return rsp
}

// hideDBError 非业务错误统一返回服务繁忙
func hideDBError(err error) error {
	switch errorx.GetCode(err) {
	case errorx.CodeNotFound, errorx.CodeForbidden, errorx.CodeInvalidParam:
		return err
	}
	return errorx.ErrServerBusy
}
