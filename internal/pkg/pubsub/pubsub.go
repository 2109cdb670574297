package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionEvents = "subscription_events"
)

// 事件类型
const (
	EventRedeemed   = "redeemed"
	EventGranted    = "granted"
	EventUpdated    = "updated"
	EventCancelled  = "cancelled"
	EventSuperseded = "superseded"
	EventExpired    = "expired"
)

// SubscriptionEvent 订阅状态变更事件
type SubscriptionEvent struct {
	Type               string `json:"type"`
	UserID             int64  `json:"user_id"`
	UserSubscriptionID int64  `json:"user_subscription_id"`
	SubscriptionID     int64  `json:"subscription_id,omitempty"`
	Status             int    `json:"status"`
	Timestamp          int64  `json:"timestamp"`
	Message            string `json:"message,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish 发布订阅事件；nil 发布者直接忽略
func (p *Publisher) Publish(ctx context.Context, evt *SubscriptionEvent) error {
	if p == nil || p.client == nil {
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription event: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubscriptionEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*SubscriptionEvent)) error {
	ps := s.client.Subscribe(ctx, ChannelSubscriptionEvents)
	defer ps.Close()

	// 确认订阅建立
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var evt SubscriptionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue // 忽略解析错误
			}

			handler(&evt)
		}
	}
}
