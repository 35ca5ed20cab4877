// channel_broker.go
// 核心职责：单机模式下的消息代理
// 不依赖外部消息队列，事件经过带缓冲的 channel 直接交给本机 Hub
package chat

import (
	"context"
	"errors"
	"sync"

	"studyhub_server/pkg/constants"
)

// errTransmitFull 转发通道已满
var errTransmitFull = errors.New("event channel is full")

// ChannelBroker 基于 channel 的代理
type ChannelBroker struct {
	// Transmit 事件转发通道
	Transmit chan GroupEvent

	hub       *Hub
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelBroker 创建单机代理
func NewChannelBroker(hub *Hub) *ChannelBroker {
	return &ChannelBroker{
		Transmit: make(chan GroupEvent, constants.CHANNEL_SIZE),
		hub:      hub,
		done:     make(chan struct{}),
	}
}

// Publish 投递到转发通道，通道满时直接丢弃，不阻塞请求
func (b *ChannelBroker) Publish(ctx context.Context, event GroupEvent) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.Transmit <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errTransmitFull
	}
}

// Start 主循环：从 Transmit 取事件广播给本机连接
func (b *ChannelBroker) Start(ctx context.Context) error {
	for {
		select {
		case event := <-b.Transmit:
			b.hub.Broadcast(event)
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		}
	}
}

// Close 停止主循环，之后的 Publish 返回 ErrBrokerClosed
func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
