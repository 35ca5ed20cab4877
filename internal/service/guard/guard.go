// Package guard 学习小组的成员校验
// 每次都重新读取成员关系，不做缓存（成员随时可能退出）
package guard

import (
	"go.uber.org/zap"

	"studyhub_server/internal/dao/mysql/repository"
	"studyhub_server/internal/model"
	"studyhub_server/pkg/errorx"
)

// Guard 成员校验
type Guard struct {
	repos *repository.Repositories
}

// New 创建 Guard
func New(repos *repository.Repositories) *Guard {
	return &Guard{repos: repos}
}

// AssertExists 小组存在则返回小组，否则 NotFound
func (g *Guard) AssertExists(groupId string) (*model.GroupInfo, error) {
	if groupId == "" {
		return nil, errorx.ErrGroupNotFound
	}
	group, err := g.repos.Group.FindByUuid(groupId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrGroupNotFound
		}
		zap.L().Error("load group failed", zap.String("group_id", groupId), zap.Error(err))
		return nil, err
	}
	return group, nil
}

// AssertMember 先校验小组存在（NotFound），再精确匹配成员关系（Forbidden）
func (g *Guard) AssertMember(userId, groupId string) (*model.GroupInfo, error) {
	group, err := g.AssertExists(groupId)
	if err != nil {
		return nil, err
	}
	if userId == "" {
		return nil, errorx.ErrForbidden
	}
	ok, err := g.repos.GroupMember.Exists(groupId, userId)
	if err != nil {
		zap.L().Error("check membership failed",
			zap.String("group_id", groupId),
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, errorx.ErrForbidden
	}
	return group, nil
}
