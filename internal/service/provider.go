// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"studyhub_server/internal/config"
	"studyhub_server/internal/dao/mysql/repository"
	myredis "studyhub_server/internal/dao/redis"
	"studyhub_server/internal/infrastructure/storage"
	"studyhub_server/internal/service/chat"
	"studyhub_server/internal/service/cleanup"
	"studyhub_server/internal/service/group"
	"studyhub_server/internal/service/guard"
	"studyhub_server/internal/service/message"
)

// Dependencies Service 层需要的外部依赖
// Cache 与 Events 可以为 nil
type Dependencies struct {
	Repos         *repository.Repositories
	Storage       storage.Backend
	Cache         myredis.AsyncCacheService
	Events        chat.Publisher
	Retention     config.RetentionConfig
	MaxUploadSize int64
}

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过此结构访问各个 Service
type Services struct {
	Group   GroupService
	Message MessageService
	Members MembershipChecker
	Cleanup *cleanup.Engine
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 成员校验只依赖 Repository
//  2. 消息服务负责消息列表缓存，清理引擎和小组服务通过它让缓存失效
//  3. 清理引擎同时负责解散小组时的附件删除
func NewServices(deps Dependencies) *Services {
	g := guard.New(deps.Repos)
	messageSvc := message.NewMessageService(deps.Repos, g, deps.Storage, deps.Cache, deps.Events, deps.Retention, deps.MaxUploadSize)
	engine := cleanup.NewEngine(deps.Repos, deps.Storage, deps.Retention, messageSvc, deps.Events)
	groupSvc := group.NewGroupService(deps.Repos, g, engine, messageSvc, deps.Events)

	return &Services{
		Group:   groupSvc,
		Message: messageSvc,
		Members: memberChecker{g},
		Cleanup: engine,
	}
}

// memberChecker 只暴露成员校验结果
type memberChecker struct {
	guard *guard.Guard
}

func (m memberChecker) AssertMember(userId, groupId string) error {
	_, err := m.guard.AssertMember(userId, groupId)
	return err
}
