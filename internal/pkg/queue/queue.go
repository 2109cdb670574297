package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultUsageQueue 订阅消费记录队列
const DefaultUsageQueue = "subscription:usage_logs"

type Queue struct {
	client    *redis.Client
	queueName string
}

// UsageMessage 一次订阅额度消费
type UsageMessage struct {
	UserID             int64  `json:"user_id"`
	UserSubscriptionID int64  `json:"user_subscription_id"`
	Quota              int64  `json:"quota"`
	ModelName          string `json:"model_name"`
	TokenName          string `json:"token_name"`
	Group              string `json:"group"`
	CreatedAt          int64  `json:"created_at"`
}

func NewQueue(client *redis.Client, queueName string) *Queue {
	if queueName == "" {
		queueName = DefaultUsageQueue
	}
	return &Queue{
		client:    client,
		queueName: queueName,
	}
}

// Push 将消费记录加入队列
func (q *Queue) Push(ctx context.Context, msg *UsageMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return q.client.LPush(ctx, q.queueName, data).Err()
}

// Pop 从队列获取消费记录（阻塞）
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*UsageMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时，无消息
		}
		return nil, fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var msg UsageMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	return &msg, nil
}

// Length 获取队列长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
