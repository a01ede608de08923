// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthtrack-go/internal/config"
	"healthtrack-go/pkg/log"
	"healthtrack-go/pkg/tasks"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一条补写任务的最大处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.AssessmentRepairTask) error
}

// Producer 向补写主题发送任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishRepair 发送一个评估补写任务，以记录 ID 作为消息 key。
func (p *Producer) PublishRepair(ctx context.Context, task tasks.AssessmentRepairTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.EntryID),
		Value: taskBytes,
	})
}

// Close 关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func brokers(cfg config.KafkaConfig) []string {
	return strings.Split(cfg.Brokers, ",")
}

func attemptsKey(entryID string) string {
	return fmt.Sprintf("kafka:attempts:%s", entryID)
}

// StartConsumer 启动一个 Kafka 消费者来处理补写任务，ctx 取消时退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		handleMessage(ctx, r, rdb, processor, m)
	}
}

// committer 是 *kafka.Reader 的子集，便于测试。
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// retryInterval 是进程内重试的初始退避间隔。
var retryInterval = 500 * time.Millisecond

// handleMessage 在进程内按指数退避重试补写任务，最多 maxAttempts 次。
// 成功或耗尽次数后提交 offset；ctx 取消时不提交，重启后由 Kafka 重新投递。
// rdb 非空时以 Redis 计数累计跨重启的尝试次数。
func handleMessage(ctx context.Context, r committer, rdb *redis.Client, processor TaskProcessor, m kafka.Message) {
	var task tasks.AssessmentRepairTask
	if err := json.Unmarshal(m.Value, &task); err != nil || task.EntryID == "" {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		commit(ctx, r, m)
		return
	}

	local := 0
	operation := func() error {
		local++
		attempt := recordAttempt(ctx, rdb, task.EntryID, local)
		if attempt > maxAttempts {
			return backoff.Permanent(fmt.Errorf("已达到最大尝试次数 %d", maxAttempts))
		}
		err := processor.Process(ctx, task)
		if err == nil {
			return nil
		}
		log.Warnf("补写任务第 %d 次处理失败: entry=%s, Error: %v", attempt, task.EntryID, err)
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, maxAttempts-1), ctx)

	err := backoff.Retry(operation, policy)
	if ctx.Err() != nil {
		log.Infof("消费者停止，补写任务未提交: entry=%s", task.EntryID)
		return
	}
	if err != nil {
		log.Errorf("补写任务多次失败，提交 offset 终止重试，记录保持无评估状态: entry=%s, Error: %v", task.EntryID, err)
	} else {
		log.Infof("补写任务处理成功: entry=%s", task.EntryID)
	}
	if rdb != nil {
		_ = rdb.Del(ctx, attemptsKey(task.EntryID)).Err()
	}
	commit(ctx, r, m)
}

// recordAttempt 返回本次尝试的序号，Redis 不可用时退回进程内计数。
func recordAttempt(ctx context.Context, rdb *redis.Client, entryID string, local int) int {
	if rdb == nil {
		return local
	}
	n, err := rdb.Incr(ctx, attemptsKey(entryID)).Result()
	if err != nil {
		log.Warnf("记录补写尝试次数失败: entry=%s, Error: %v", entryID, err)
		return local
	}
	_ = rdb.Expire(ctx, attemptsKey(entryID), 24*time.Hour).Err()
	return int(n)
}

func commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
