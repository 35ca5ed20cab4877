// Package chat 学习小组的实时推送
// broker.go
// 核心职责：定义小组事件和消息代理接口
// 业务层只发布事件；代理负责把事件送到每个进程的 Hub，再由 Hub 推给本机 websocket
package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"studyhub_server/internal/dto/respond"
)

// EventType 小组事件类型
type EventType string

const (
	EventMessageCreated  EventType = "message.created"
	EventMessagesEvicted EventType = "messages.evicted"
	EventMemberLeft      EventType = "member.left"
	EventGroupDeleted    EventType = "group.deleted"
)

// GroupEvent 推送给小组在线成员的事件
type GroupEvent struct {
	Type       EventType               `json:"type"`
	GroupId    string                  `json:"groupId"`
	Message    *respond.MessageRespond `json:"message,omitempty"`
	MessageIds []string                `json:"messageIds,omitempty"`
	UserId     string                  `json:"userId,omitempty"`
	At         time.Time               `json:"at"`
}

// ErrBrokerClosed 代理已关闭
var ErrBrokerClosed = errors.New("message broker closed")

// Publisher 发布小组事件
type Publisher interface {
	Publish(ctx context.Context, event GroupEvent) error
}

// MessageBroker 定义消息代理接口
// 支持两种实现：KafkaBroker (多进程), ChannelBroker (单机)
type MessageBroker interface {
	Publisher
	// Start 阻塞消费事件并交给 Hub，ctx 取消后返回
	Start(ctx context.Context) error
	// Close 关闭代理资源
	Close() error
}

// Notify 尽力发布：publisher 为空时忽略，失败只记日志
// 推送丢失不影响消息本身，客户端下次拉列表即可补齐
func Notify(ctx context.Context, p Publisher, event GroupEvent) {
	if p == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	if err := p.Publish(ctx, event); err != nil {
		zap.L().Warn("publish group event failed",
			zap.String("type", string(event.Type)),
			zap.String("group_id", event.GroupId),
			zap.Error(err))
	}
}
