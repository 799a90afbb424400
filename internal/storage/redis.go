package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"resume-ranker-go/internal/config"
	"resume-ranker-go/internal/constants"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis连接并Ping校验
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// NewRedisWithClient 用现成的客户端构造适配器, 测试用
func NewRedisWithClient(client *redis.Client, cfg *config.RedisConfig) *Redis {
	return &Redis{Client: client, config: cfg}
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetFingerprintExpireDuration 返回指纹去重记录的过期时间
func (r *Redis) GetFingerprintExpireDuration() time.Duration {
	days := r.config.FingerprintExpireDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndAddFingerprint 原子地检查并登记内容指纹。返回指纹在调用前
// 是否已存在。用Lua脚本避免检查与添加之间的并发窗口。
func (r *Redis) CheckAndAddFingerprint(ctx context.Context, fingerprint string) (exists bool, err error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}

	script := `
		local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
		redis.call('SADD', KEYS[1], ARGV[1])
		redis.call('EXPIRE', KEYS[1], ARGV[2])
		return exists
	`
	expiry := int64(r.GetFingerprintExpireDuration().Seconds())

	res, err := r.Client.Eval(ctx, script, []string{constants.KeyFingerprintSet}, fingerprint, expiry).Result()
	if err != nil {
		return false, fmt.Errorf("执行原子检查和添加指纹失败: %w", err)
	}
	existsVal, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("意外的Redis返回类型: %T", res)
	}
	return existsVal == 1, nil
}

// CheckFingerprintExists 只读地检查指纹是否已登记
func (r *Redis) CheckFingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	return r.Client.SIsMember(ctx, constants.KeyFingerprintSet, fingerprint).Result()
}

// RemoveFingerprint 从去重集合中移除指纹, 删除简历时调用
func (r *Redis) RemoveFingerprint(ctx context.Context, fingerprint string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	pipe := r.Client.Pipeline()
	pipe.SRem(ctx, constants.KeyFingerprintSet, fingerprint)
	pipe.Del(ctx, fmt.Sprintf(constants.KeyFingerprintToResumeID, fingerprint))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("从集合中移除指纹失败: %w", err)
	}
	return nil
}

// MapFingerprintToResumeID 登记指纹到简历ID的映射, 命中去重时用来
// 回答"已存在的是哪一份"
func (r *Redis) MapFingerprintToResumeID(ctx context.Context, fingerprint, resumeID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyFingerprintToResumeID, fingerprint)
	return r.Client.Set(ctx, key, resumeID, r.GetFingerprintExpireDuration()).Err()
}

// GetResumeIDByFingerprint 按指纹查已登记的简历ID, 未命中返回 ErrNotFound
func (r *Redis) GetResumeIDByFingerprint(ctx context.Context, fingerprint string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyFingerprintToResumeID, fingerprint)
	return r.Client.Get(ctx, key).Result()
}

// AcquireLock 尝试获取一个分布式锁, 返回持有者标识; 未抢到返回空串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	return "", nil
}

// ReleaseLock 释放分布式锁, Lua脚本保证只有持有者能删
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}
	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	return false, nil
}

// SetJDVector 将JD向量和模型版本存入Redis HASH, 同一key下便于管理
func (r *Redis) SetJDVector(ctx context.Context, jdID string, vector []float64, modelVersion string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	cacheKey := fmt.Sprintf(constants.KeyJDVector, jdID)
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化向量失败: %w", err)
	}

	pipe := r.Client.Pipeline()
	pipe.HSet(ctx, cacheKey, "vector", vectorJSON)
	pipe.HSet(ctx, cacheKey, "model_version", modelVersion)
	pipe.Expire(ctx, cacheKey, constants.JDVectorCacheDuration)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("设置JD向量缓存失败: %w", err)
	}
	return nil
}

// GetJDVector 从Redis HASH取JD向量和模型版本。模型版本不匹配的缓存
// 由调用方判定失效。
func (r *Redis) GetJDVector(ctx context.Context, jdID string) ([]float64, string, error) {
	if r.Client == nil {
		return nil, "", fmt.Errorf("redis client is not initialized")
	}

	cacheKey := fmt.Sprintf(constants.KeyJDVector, jdID)
	vals, err := r.Client.HMGet(ctx, cacheKey, "vector", "model_version").Result()
	if err != nil {
		return nil, "", err
	}
	if len(vals) < 2 || vals[0] == nil {
		return nil, "", fmt.Errorf("未找到JD向量缓存, jdID=%s: %w", jdID, ErrNotFound)
	}

	vectorJSON, ok := vals[0].(string)
	if !ok || vectorJSON == "" {
		return nil, "", fmt.Errorf("向量缓存格式错误")
	}
	var vector []float64
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, "", fmt.Errorf("反序列化向量失败: %w", err)
	}

	modelVersion, _ := vals[1].(string)
	return vector, modelVersion, nil
}
