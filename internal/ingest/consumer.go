package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
	"resume-ranker-go/internal/storage"
)

// Consumer 从RabbitMQ消费解析完成的简历事件并写入向量缓存。
// 载荷先过schema校验: 结构非法的消息归档到死信队列后Ack, 避免毒消息
// 循环; 写冲突和存储故障Nack重回队列, 由下一次投递重试。
type Consumer struct {
	mq    *storage.RabbitMQ
	store storage.VectorCacheStore
	cfg   *config.RabbitMQConfig

	stops []chan<- struct{}
}

// NewConsumer 创建摄入消费者
func NewConsumer(mq *storage.RabbitMQ, store storage.VectorCacheStore, cfg *config.RabbitMQConfig) *Consumer {
	return &Consumer{mq: mq, store: store, cfg: cfg}
}

// Start 声明拓扑并启动消费。workers决定并行消费者数量。
func (c *Consumer) Start(ctx context.Context) error {
	if c.mq == nil {
		return fmt.Errorf("RabbitMQ未初始化")
	}

	if err := c.mq.EnsureExchange(c.cfg.ResumeEventsExchange, "topic", true); err != nil {
		return err
	}
	if err := c.mq.EnsureQueue(c.cfg.ParsedResumeQueue, true); err != nil {
		return err
	}
	if err := c.mq.BindQueue(c.cfg.ParsedResumeQueue, c.cfg.ResumeEventsExchange, c.cfg.ParsedRoutingKey); err != nil {
		return err
	}
	if err := c.mq.EnsureQueue(c.deadLetterQueue(), true); err != nil {
		return err
	}
	if err := c.mq.BindQueue(c.deadLetterQueue(), c.cfg.ResumeEventsExchange, c.deadLetterRoutingKey()); err != nil {
		return err
	}

	workers := c.cfg.ConsumerWorkers
	if workers <= 0 {
		workers = 1
	}
	prefetch := c.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}

	for i := 0; i < workers; i++ {
		stop, err := c.mq.StartConsumer(c.cfg.ParsedResumeQueue, prefetch, func(body []byte) bool {
			return c.handleParsedResume(ctx, body)
		})
		if err != nil {
			c.Stop()
			return fmt.Errorf("启动消费者失败: %w", err)
		}
		c.stops = append(c.stops, stop)
	}

	logger.Info().
		Str("queue", c.cfg.ParsedResumeQueue).
		Int("workers", workers).
		Msg("简历摄入消费者已启动")
	return nil
}

// Stop 停止所有消费者
func (c *Consumer) Stop() {
	for _, stop := range c.stops {
		close(stop)
	}
	c.stops = nil
}

func (c *Consumer) deadLetterQueue() string {
	return c.cfg.ParsedResumeQueue + ".dead"
}

func (c *Consumer) deadLetterRoutingKey() string {
	return c.cfg.ParsedRoutingKey + ".dead"
}

// deadLetterEnvelope 归档到死信队列的消息。原始载荷可能不是合法
// JSON, 以字符串整体保留。
type deadLetterEnvelope struct {
	Reason   string    `json:"reason"`
	Payload  string    `json:"payload"`
	Queue    string    `json:"queue"`
	FailedAt time.Time `json:"failed_at"`
}

// handleParsedResume 处理一条解析完成事件, 返回值决定Ack/Nack
func (c *Consumer) handleParsedResume(ctx context.Context, body []byte) bool {
	rec, err := ParseResumePayload(body)
	if err != nil {
		logger.Warn().Err(err).Msg("简历载荷非法, 归档到死信队列")
		envelope := deadLetterEnvelope{
			Reason:   err.Error(),
			Payload:  string(body),
			Queue:    c.cfg.ParsedResumeQueue,
			FailedAt: time.Now().UTC(),
		}
		if perr := c.mq.PublishJSON(ctx, c.cfg.ResumeEventsExchange, c.deadLetterRoutingKey(), envelope, true); perr != nil {
			logger.Error().Err(perr).Msg("死信归档失败, 消息仍然丢弃")
		}
		return true
	}

	created, err := c.store.Upsert(ctx, rec)
	if err != nil {
		if errors.Is(err, storage.ErrCacheWriteConflict) {
			logger.Debug().Str("resume_id", rec.ResumeID).Msg("写冲突, 消息重新入队")
		} else {
			logger.Error().Err(err).Str("resume_id", rec.ResumeID).Msg("简历写入缓存失败, 消息重新入队")
		}
		return false
	}

	logger.Info().
		Str("resume_id", rec.ResumeID).
		Str("fingerprint", rec.Fingerprint).
		Bool("created", created).
		Msg("队列摄入完成")
	return true
}
