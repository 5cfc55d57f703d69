// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docqa-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// HistoryRepository 定义了工作空间问答历史记录的操作接口。
type HistoryRepository interface {
	// AppendExchange 追加一条问答记录，只保留最近 20 条。
	AppendExchange(ctx context.Context, workspaceID string, exchange model.QAExchange) error
	GetHistory(ctx context.Context, workspaceID string) ([]model.QAExchange, error)
}

type redisHistoryRepository struct {
	redisClient *redis.Client
}

// NewHistoryRepository 创建一个新的 HistoryRepository 实例。
func NewHistoryRepository(redisClient *redis.Client) HistoryRepository {
	return &redisHistoryRepository{redisClient: redisClient}
}

// AppendExchange 在 Redis 中追加问答记录。
// 使用 LPUSH + LTRIM 的事务管道保证原子性：并发的两次问答
// 不会互相覆盖丢失记录（读-改-写模式会）。列表头部是最新记录。
func (r *redisHistoryRepository) AppendExchange(ctx context.Context, workspaceID string, exchange model.QAExchange) error {
	jsonData, err := json.Marshal(exchange)
	if err != nil {
		return fmt.Errorf("failed to marshal qa exchange: %w", err)
	}

	key := historyKey(workspaceID)
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, key, jsonData)
	pipe.LTrim(ctx, key, 0, 19) // 保留最近 20 条
	pipe.Expire(ctx, key, 7*24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append qa history: %w", err)
	}
	return nil
}

// GetHistory 从 Redis 获取工作空间的问答历史记录，按时间升序返回。
func (r *redisHistoryRepository) GetHistory(ctx context.Context, workspaceID string) ([]model.QAExchange, error) {
	items, err := r.redisClient.LRange(ctx, historyKey(workspaceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get qa history: %w", err)
	}

	// 列表存储为最新在前，倒序还原为时间先后顺序
	history := make([]model.QAExchange, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var exchange model.QAExchange
		if err := json.Unmarshal([]byte(items[i]), &exchange); err != nil {
			return nil, fmt.Errorf("failed to unmarshal qa history: %w", err)
		}
		history = append(history, exchange)
	}
	return history, nil
}

func historyKey(workspaceID string) string {
	return fmt.Sprintf("workspace:%s:qa_history", workspaceID)
}
