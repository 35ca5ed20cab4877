// Package model 定义数据库实体模型
package model

import "gorm.io/gorm"

// UserInfo 用户信息
// 账号的注册、登录、资料维护由认证服务负责，本服务只读取展示字段
type UserInfo struct {
	gorm.Model

	// Uuid 用户唯一标识，即 JWT 中的 user_id
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:用户唯一id"`

	// Name 显示名称
	Name string `gorm:"column:name;type:varchar(50);not null;comment:姓名"`

	// Uid 学号，消息中与姓名一起展示
	Uid string `gorm:"column:uid;index;type:varchar(20);not null;comment:学号"`

	Email  string `gorm:"column:email;type:varchar(100);comment:邮箱"`
	Avatar string `gorm:"column:avatar;type:varchar(255);comment:头像"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}
