// server.go
// 核心职责：按 messageMode 选择消息代理
package chat

import (
	"fmt"

	"studyhub_server/internal/config"
)

// NewMessageBroker "channel"（默认）使用单机代理，"kafka" 使用 Kafka 代理
func NewMessageBroker(cfg config.KafkaConfig, hub *Hub) (MessageBroker, error) {
	switch cfg.MessageMode {
	case "", "channel":
		return NewChannelBroker(hub), nil
	case "kafka":
		if cfg.HostPort == "" {
			return nil, fmt.Errorf("kafka mode requires kafkaConfig.hostPort")
		}
		return NewKafkaBroker(cfg, hub), nil
	default:
		return nil, fmt.Errorf("unknown message mode %q", cfg.MessageMode)
	}
}
