// Package repository 数据访问层
// 接口集中定义在本文件，实现分散在各 *_repository.go 中
package repository

import (
	"time"

	"studyhub_server/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户只读访问（用户资料由认证服务维护）
type UserRepository interface {
	// FindByUuid 根据 UUID 查找用户
	FindByUuid(uuid string) (*model.UserInfo, error)
	// Create 写入用户（同步账号、测试数据）
	Create(user *model.UserInfo) error
}

// GroupRepository 学习小组
type GroupRepository interface {
	FindByUuid(uuid string) (*model.GroupInfo, error)
	FindByUuids(uuids []string) ([]model.GroupInfo, error)
	// FindAllUuids 清理任务用来遍历全部小组
	FindAllUuids() ([]string, error)
	Create(group *model.GroupInfo) error
	// UpdateCreator 转移创建者
	UpdateCreator(uuid, creatorId string) error
	IncrementMemberCount(uuid string) error
	DecrementMemberCount(uuid string) error
	// Delete 删除小组记录（消息与附件由调用方级联）
	Delete(uuid string) error
}

// GroupMemberRepository 小组成员关系
type GroupMemberRepository interface {
	// Exists 精确匹配成员关系，不做缓存
	Exists(groupUuid, userUuid string) (bool, error)
	// FindByGroupUuid 按加入顺序返回成员
	FindByGroupUuid(groupUuid string) ([]model.GroupMember, error)
	// FindGroupUuidsByUser 用户加入的全部小组
	FindGroupUuidsByUser(userUuid string) ([]string, error)
	Create(member *model.GroupMember) error
	// Delete 移除单个成员，返回实际删除行数
	Delete(groupUuid, userUuid string) (int64, error)
	DeleteByGroupUuid(groupUuid string) error
}

// MessageWithSender 消息 + 发送者展示信息
type MessageWithSender struct {
	model.Message
	SenderName string
	SenderUid  string
}

// MessageRepository 小组消息
type MessageRepository interface {
	// Create 追加一条消息
	Create(message *model.Message) error
	// ListByGroup 按创建时间升序（同一时间按插入顺序）返回 since 之后的消息，带发送者信息
	ListByGroup(groupUuid string, since time.Time) ([]MessageWithSender, error)
	// CountByGroup 小组当前消息数
	CountByGroup(groupUuid string) (int64, error)
	// SumEstimatedSize 小组消息估算总字节数
	SumEstimatedSize(groupUuid string) (int64, error)
	// OldestN 最早的 n 条消息，只取 id/uuid/locator
	OldestN(groupUuid string, n int) ([]model.Message, error)
	// ExpiredBefore 创建时间不晚于 before 的消息，只查 id/uuid/locator
	ExpiredBefore(groupUuid string, before time.Time) ([]model.Message, error)
	// DeleteByIds 批量删除，返回删除条数
	DeleteByIds(ids []uint) (int64, error)
	// FindAttachmentsByGroup 小组内带附件的消息（级联删除用）
	FindAttachmentsByGroup(groupUuid string) ([]model.Message, error)
	// DeleteByGroup 删除小组全部消息
	DeleteByGroup(groupUuid string) (int64, error)
}

// Repositories 聚合所有 Repository，作为 Service 层的依赖入口
type Repositories struct {
	db          *gorm.DB
	User        UserRepository
	Group       GroupRepository
	GroupMember GroupMemberRepository
	Message     MessageRepository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		User:        NewUserRepository(db),
		Group:       NewGroupRepository(db),
		GroupMember: NewGroupMemberRepository(db),
		Message:     NewMessageRepository(db),
	}
}

// Transaction 在事务中执行 fn，返回错误即回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB 底层连接，供迁移和健康检查使用
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
