package database

import (
	"sync"

	"mesa/pkg/config"
	"mesa/pkg/queue"

	"github.com/go-redis/redis/v8"
)

var (
	redisClient    *redis.Client
	redisQueue     *queue.RedisQueue
	redisQueueOnce sync.Once
)

// GetRedisClient 获取Redis客户端单例
func GetRedisClient() *redis.Client {
	redisQueueOnce.Do(func() {
		cfg := config.GetConfig()
		redisClient = queue.NewRedisClient(&queue.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		redisQueue = queue.NewRedisQueue(redisClient, cfg.Redis.Prefix)
	})
	return redisClient
}

// GetRedisQueue 获取邮件发件箱单例
func GetRedisQueue() *queue.RedisQueue {
	GetRedisClient()
	return redisQueue
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
