package repository

import (
	"studyhub_server/internal/model"

	"gorm.io/gorm"
)

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建 GroupRepository 实例
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// FindByUuid 根据 UUID 查找小组，已删除的视为不存在
func (r *groupRepository) FindByUuid(uuid string) (*model.GroupInfo, error) {
	var group model.GroupInfo
	if err := r.db.First(&group, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询小组 uuid=%s", uuid)
	}
	return &group, nil
}

// FindByUuids 批量查找小组，按创建时间倒序
func (r *groupRepository) FindByUuids(uuids []string) ([]model.GroupInfo, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	var groups []model.GroupInfo
	if err := r.db.Where("uuid IN ?", uuids).Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, wrapDBError(err, "批量查询小组")
	}
	return groups, nil
}

// FindAllUuids 返回所有未删除小组的 UUID
func (r *groupRepository) FindAllUuids() ([]string, error) {
	var uuids []string
	if err := r.db.Model(&model.GroupInfo{}).Order("id ASC").Pluck("uuid", &uuids).Error; err != nil {
		return nil, wrapDBError(err, "查询全部小组")
	}
	return uuids, nil
}

// Create 创建小组
func (r *groupRepository) Create(group *model.GroupInfo) error {
	if err := r.db.Create(group).Error; err != nil {
		return wrapDBError(err, "创建小组")
	}
	return nil
}

// UpdateCreator 转移创建者
func (r *groupRepository) UpdateCreator(uuid, creatorId string) error {
	if err := r.db.Model(&model.GroupInfo{}).Where("uuid = ?", uuid).
		Update("creator_id", creatorId).Error; err != nil {
		return wrapDBErrorf(err, "转移小组创建者 uuid=%s", uuid)
	}
	return nil
}

// IncrementMemberCount 成员数 +1
func (r *groupRepository) IncrementMemberCount(uuid string) error {
	if err := r.db.Model(&model.GroupInfo{}).Where("uuid = ?", uuid).
		Update("member_cnt", gorm.Expr("member_cnt + ?", 1)).Error; err != nil {
		return wrapDBErrorf(err, "增加成员数 uuid=%s", uuid)
	}
	return nil
}

// DecrementMemberCount 成员数 -1，不会减到负数
func (r *groupRepository) DecrementMemberCount(uuid string) error {
	if err := r.db.Model(&model.GroupInfo{}).Where("uuid = ? AND member_cnt > 0", uuid).
		Update("member_cnt", gorm.Expr("member_cnt - ?", 1)).Error; err != nil {
		return wrapDBErrorf(err, "减少成员数 uuid=%s", uuid)
	}
	return nil
}

// Delete 软删除小组
func (r *groupRepository) Delete(uuid string) error {
	if err := r.db.Where("uuid = ?", uuid).Delete(&model.GroupInfo{}).Error; err != nil {
		return wrapDBErrorf(err, "删除小组 uuid=%s", uuid)
	}
	return nil
}
