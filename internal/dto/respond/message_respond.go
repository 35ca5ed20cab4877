package respond

import "time"

// MessageSender 消息发送者展示信息
type MessageSender struct {
	Id   string `json:"_id"`
	Name string `json:"name"`
	Uid  string `json:"uid"`
}

// MessageRespond 小组消息对外表示
// 使用位置:
//   - internal/service/message/service.go: PostMessage / ListMessages
//   - internal/service/chat: 推送给 websocket 客户端
//
// 附件三个字段要么同时出现，要么都省略
type MessageRespond struct {
	Id        string        `json:"_id"`
	Group     string        `json:"group"`
	Sender    MessageSender `json:"sender"`
	Content   string        `json:"content"`
	FileUrl   string        `json:"fileUrl,omitempty"`
	FileName  string        `json:"fileName,omitempty"`
	FileType  string        `json:"fileType,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}
