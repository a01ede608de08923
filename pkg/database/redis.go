package database

import (
	"context"
	"time"

	"healthtrack-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB 是全局的 Redis 客户端，用于 token 黑名单和补写任务的重试计数。
var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
