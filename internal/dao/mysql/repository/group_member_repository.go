package repository

import (
	"studyhub_server/internal/model"

	"gorm.io/gorm"
)

type groupMemberRepository struct {
	db *gorm.DB
}

// NewGroupMemberRepository 创建 GroupMemberRepository 实例
func NewGroupMemberRepository(db *gorm.DB) GroupMemberRepository {
	return &groupMemberRepository{db: db}
}

// Exists 检查用户是否在小组中
func (r *groupMemberRepository) Exists(groupUuid, userUuid string) (bool, error) {
	var cnt int64
	if err := r.db.Model(&model.GroupMember{}).
		Where("group_uuid = ? AND user_uuid = ?", groupUuid, userUuid).
		Count(&cnt).Error; err != nil {
		return false, wrapDBErrorf(err, "查询成员关系 group_uuid=%s user_uuid=%s", groupUuid, userUuid)
	}
	return cnt > 0, nil
}

// FindByGroupUuid 按加入顺序返回小组成员
func (r *groupMemberRepository) FindByGroupUuid(groupUuid string) ([]model.GroupMember, error) {
	var members []model.GroupMember
	if err := r.db.Where("group_uuid = ?", groupUuid).Order("id ASC").Find(&members).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询小组成员 group_uuid=%s", groupUuid)
	}
	return members, nil
}

// FindGroupUuidsByUser 用户加入的所有小组
func (r *groupMemberRepository) FindGroupUuidsByUser(userUuid string) ([]string, error) {
	var uuids []string
	if err := r.db.Model(&model.GroupMember{}).Where("user_uuid = ?", userUuid).
		Order("id ASC").Pluck("group_uuid", &uuids).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户所在小组 user_uuid=%s", userUuid)
	}
	return uuids, nil
}

// Create 添加成员
func (r *groupMemberRepository) Create(member *model.GroupMember) error {
	if err := r.db.Create(member).Error; err != nil {
		return wrapDBError(err, "添加小组成员")
	}
	return nil
}

// Delete 移除成员（物理删除）
func (r *groupMemberRepository) Delete(groupUuid, userUuid string) (int64, error) {
	res := r.db.Where("group_uuid = ? AND user_uuid = ?", groupUuid, userUuid).Delete(&model.GroupMember{})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "移除小组成员 group_uuid=%s user_uuid=%s", groupUuid, userUuid)
	}
	return res.RowsAffected, nil
}

// DeleteByGroupUuid 清空小组成员
func (r *groupMemberRepository) DeleteByGroupUuid(groupUuid string) error {
	if err := r.db.Where("group_uuid = ?", groupUuid).Delete(&model.GroupMember{}).Error; err != nil {
		return wrapDBErrorf(err, "清空小组成员 group_uuid=%s", groupUuid)
	}
	return nil
}
