// kafka_broker.go
// 核心职责：多进程模式下的消息代理
// 1. 生产者：按小组 ID 作为 key 写入 Kafka，保证同组事件有序
// 2. 消费者：每个进程使用独立的消费者组，读到全部事件后推给本机 Hub
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"studyhub_server/internal/config"
)

// kafkaWriter kafka.Writer 中用到的部分
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaReader kafka.Reader 中用到的部分
type kafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaBroker 基于 Kafka 的代理
type KafkaBroker struct {
	Producer kafkaWriter
	Consumer kafkaReader
	hub      *Hub
	// retryDelay 读取失败后的等待时间
	retryDelay time.Duration
}

// NewKafkaBroker 按配置创建生产者和消费者
func NewKafkaBroker(cfg config.KafkaConfig, hub *Hub) *KafkaBroker {
	brokers := strings.Split(cfg.HostPort, ",")
	groupID := cfg.GroupID
	if groupID == "" {
		// 广播语义：每个进程一个消费者组
		host, _ := os.Hostname()
		groupID = "studyhub-" + host
	}
	return &KafkaBroker{
		Producer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  cfg.ChatTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           cfg.Timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		Consumer: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          cfg.ChatTopic,
			GroupID:        groupID,
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		}),
		hub:        hub,
		retryDelay: time.Second,
	}
}

// Publish 写入 Kafka，key 为小组 ID
func (k *KafkaBroker) Publish(ctx context.Context, event GroupEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.Producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.GroupId),
		Value: data,
	})
}

// Start 消费循环，读取失败时等待后重试，ctx 取消后退出
func (k *KafkaBroker) Start(ctx context.Context) error {
	for {
		msg, err := k.Consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			zap.L().Error("kafka read failed", zap.Error(err))
			select {
			case <-time.After(k.retryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		var event GroupEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			zap.L().Error("decode group event failed",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		k.hub.Broadcast(event)
	}
}

// Close 关闭生产者和消费者
func (k *KafkaBroker) Close() error {
	return errors.Join(k.Producer.Close(), k.Consumer.Close())
}
