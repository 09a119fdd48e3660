package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisQueue 基于Redis列表的邮件发件箱，由外部邮件服务消费
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// MailMessage 队列中的邮件消息
type MailMessage struct {
	MessageID    string                 `json:"message_id"`
	RestaurantID uint                   `json:"restaurant_id"`
	To           string                 `json:"to"`
	Subject      string                 `json:"subject"`
	Template     string                 `json:"template"` // 邮件模板名称
	Data         map[string]interface{} `json:"data"`
	Created      int64                  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisClient 创建Redis客户端
func NewRedisClient(config *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "mesa"
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// EnqueueMail 将邮件加入发件箱，返回消息ID
func (q *RedisQueue) EnqueueMail(ctx context.Context, message *MailMessage) (string, error) {
	if message.To == "" {
		return "", errors.New("收件人不能为空")
	}
	if message.MessageID == "" {
		message.MessageID = uuid.New().String()
	}
	if message.Created == 0 {
		message.Created = time.Now().Unix()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("序列化邮件消息失败: %v", err)
	}

	// 左侧入队，消费者从右侧取出
	if err := q.client.LPush(ctx, q.getMailKey(), data).Err(); err != nil {
		return "", fmt.Errorf("邮件入队失败: %v", err)
	}

	return message.MessageID, nil
}

// DequeueMail 取出一封邮件，队列为空时在timeout后返回 nil
func (q *RedisQueue) DequeueMail(ctx context.Context, timeout time.Duration) (*MailMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.getMailKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("邮件出队失败: %v", err)
	}

	// BRPop 返回 [key, value]
	var message MailMessage
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("解析邮件消息失败: %v", err)
	}
	return &message, nil
}

// Len 发件箱长度
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.getMailKey()).Result()
}

// getMailKey 获取发件箱键名
func (q *RedisQueue) getMailKey() string {
	return fmt.Sprintf("%s:queue:mail", q.prefix)
}

// GetClient 获取Redis客户端（用于高级操作）
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}
