package request

import "io"

// PostMessageRequest 发送小组消息
// multipart 表单（也接受只带 content 的 JSON）：content 与 file 至少要有一个
type PostMessageRequest struct {
	Content string `json:"content" form:"content"`
}

// Upload 已经从请求中取出的附件
// Reader 需要可 Seek，存储层要先嗅探类型再回到开头
type Upload struct {
	Name   string
	Size   int64
	Reader io.ReadSeeker
}
