package model

import "gorm.io/gorm"

// GroupInfo 学习小组
// 不变式：创建者必须在成员中；成员为空时小组被删除
type GroupInfo struct {
	gorm.Model
	Uuid        string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:小组唯一id"`
	Name        string `gorm:"column:name;type:varchar(50);not null;comment:小组名称"`
	Description string `gorm:"column:description;type:varchar(500);comment:小组简介"`
	SubjectId   string `gorm:"column:subject_id;index;type:varchar(40);comment:所属科目"`
	Semester    int8   `gorm:"column:semester;not null;comment:学期 1-8"`
	CreatorId   string `gorm:"column:creator_id;index;type:char(20);not null;comment:创建者uuid"`
	MemberCnt   int    `gorm:"column:member_cnt;default:1;comment:成员数"`
}

func (GroupInfo) TableName() string {
	return "group_info"
}
