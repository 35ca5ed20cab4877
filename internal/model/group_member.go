package model

import "time"

// GroupMember 小组成员关联表
// 自增 ID 即加入顺序，创建者转移时取最早加入的成员
type GroupMember struct {
	ID        uint      `gorm:"primarykey"`
	GroupUuid string    `gorm:"column:group_uuid;type:char(20);uniqueIndex:idx_group_user;not null;comment:小组ID"`
	UserUuid  string    `gorm:"column:user_uuid;type:char(20);uniqueIndex:idx_group_user;index;not null;comment:用户ID"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (GroupMember) TableName() string {
	return "group_member"
}
