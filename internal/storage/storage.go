package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/logger"
)

// Storage 存储管理器, 聚合所有存储相关依赖
type Storage struct {
	// 消息队列
	RabbitMQ *RabbitMQ

	// 向量数据库
	Qdrant *Qdrant

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器。Redis/MySQL/Qdrant是排序核心的硬依赖,
// 任何一个初始化失败整体失败; RabbitMQ只在配置了URL时初始化,
// 失败降级为仅HTTP摄入。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var hardErrors []string

	storage.Redis, err = NewRedisAdapter(&cfg.Redis)
	if err != nil {
		hardErrors = append(hardErrors, fmt.Sprintf("Redis: %v", err))
	}

	storage.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		hardErrors = append(hardErrors, fmt.Sprintf("MySQL: %v", err))
	}

	storage.Qdrant, err = NewQdrant(&cfg.Qdrant)
	if err != nil {
		hardErrors = append(hardErrors, fmt.Sprintf("Qdrant: %v", err))
	}

	if len(hardErrors) > 0 {
		storage.Close()
		return nil, fmt.Errorf("存储组件初始化失败: %s", strings.Join(hardErrors, "; "))
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败, 队列摄入不可用")
		}
	} else {
		logger.Info().Msg("RabbitMQ未配置, 跳过初始化")
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	// Qdrant走HTTP, 无需显式关闭
}
