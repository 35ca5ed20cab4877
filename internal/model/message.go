package model

import "time"

// Message 小组聊天消息
// 消息只写一次，不做软删除：由保留策略、过期事件或小组解散整体删除
// 附件字段要么全空，要么 FileUrl/FileName/FileType/Locator 同时存在
type Message struct {
	ID uint `gorm:"primarykey"`

	// Uuid 对外暴露的消息 ID（M 开头）
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(20);not null;comment:消息uuid"`

	GroupUuid string `gorm:"column:group_uuid;type:char(20);not null;index:idx_group_created,priority:1;comment:小组uuid"`
	SendId    string `gorm:"column:send_id;index;type:char(20);not null;comment:发送者uuid"`

	// Content 可以为空串，但不能与附件同时缺失
	Content string `gorm:"column:content;type:text;not null;comment:消息内容"`

	// FileUrl 客户端下载路径 /api/study-groups/files/<groupId>/<fileName>
	FileUrl  string `gorm:"column:file_url;type:varchar(512);comment:附件下载地址"`
	FileName string `gorm:"column:file_name;type:varchar(255);comment:原始文件名"`
	FileType string `gorm:"column:file_type;type:varchar(100);comment:MIME类型"`
	FileSize int64  `gorm:"column:file_size;comment:附件字节数"`

	// Locator 存储后端中的删除键
	Locator string `gorm:"column:locator;type:varchar(512);comment:存储定位符"`

	// EstimatedSize 追加时对外 JSON 表示的字节数，按大小清理时直接 SUM
	EstimatedSize int64 `gorm:"column:estimated_size;not null;default:0;comment:估算大小"`

	CreatedAt time.Time `gorm:"column:created_at;index:idx_group_created,priority:2;index"`
}

func (Message) TableName() string {
	return "message"
}

// HasAttachment 是否携带附件
func (m *Message) HasAttachment() bool {
	return m.Locator != ""
}
