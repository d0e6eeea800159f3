// Package events 发布目录变更事件（更新、删除），供下游同步使用。
// 发布失败不影响命令结果，由调用方记录日志。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	whoisredis "whois/internal/redis"

	"github.com/go-redis/redis/v8"
)

// 事件类型
const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// Event 目录变更事件
type Event struct {
	Op        string `json:"op"`
	Login     string `json:"login"`
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewEvent 创建事件，时间戳为当前时间
func NewEvent(op, login, field, value string) Event {
	return Event{Op: op, Login: login, Field: field, Value: value, Timestamp: time.Now().Unix()}
}

// Publisher 变更事件发布接口
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher 不发布任何事件（EVENTS_BACKEND=none）
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// RedisStreamPublisher 通过 XADD 写入 Redis Streams
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisStreamPublisher 创建 Redis Streams 发布器
func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	if _, err := whoisredis.PublishJSONToStream(ctx, p.client, p.stream, ev); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}
	return nil
}

// Close Redis 客户端由创建方关闭
func (p *RedisStreamPublisher) Close() error { return nil }

// MessagePublisher MQTT 客户端的发布能力（便于测试替换）
type MessagePublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// MQTTPublisher 以 JSON 发布到 <topic>/<op>
type MQTTPublisher struct {
	client MessagePublisher
	topic  string
	qos    byte
}

// NewMQTTPublisher 创建 MQTT 发布器
func NewMQTTPublisher(client MessagePublisher, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

func (p *MQTTPublisher) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.client.Publish(p.topic+"/"+ev.Op, p.qos, false, payload)
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect()
	return nil
}
