package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"docqa-go/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryRepo(t *testing.T) HistoryRepository {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return NewHistoryRepository(client)
}

func exchange(n int) model.QAExchange {
	return model.QAExchange{
		Question:  fmt.Sprintf("q%d", n),
		Answer:    fmt.Sprintf("a%d", n),
		Timestamp: time.Unix(int64(1700000000+n), 0).UTC(),
	}
}

func TestHistoryEmptyWorkspace(t *testing.T) {
	repo := newTestHistoryRepo(t)

	history, err := repo.GetHistory(context.Background(), "ws-empty")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryAppendAndGetChronological(t *testing.T) {
	repo := newTestHistoryRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AppendExchange(ctx, "ws-1", exchange(i)))
	}

	history, err := repo.GetHistory(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	// 返回顺序为时间先后
	assert.Equal(t, "q0", history[0].Question)
	assert.Equal(t, "q2", history[2].Question)
}

func TestHistoryCappedAtTwenty(t *testing.T) {
	repo := newTestHistoryRepo(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, repo.AppendExchange(ctx, "ws-1", exchange(i)))
	}

	history, err := repo.GetHistory(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, history, 20)
	// 只保留最近 20 条：最老的 5 条被裁掉
	assert.Equal(t, "q5", history[0].Question)
	assert.Equal(t, "q24", history[19].Question)
}

func TestHistoryConcurrentAppendsDropNothing(t *testing.T) {
	repo := newTestHistoryRepo(t)
	ctx := context.Background()

	// 同一工作空间并发追加：原子的 LPUSH 不会丢失任何一条
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, repo.AppendExchange(ctx, "ws-1", exchange(n)))
		}(i)
	}
	wg.Wait()

	history, err := repo.GetHistory(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestHistoryIsolatedPerWorkspace(t *testing.T) {
	repo := newTestHistoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendExchange(ctx, "ws-a", exchange(1)))
	require.NoError(t, repo.AppendExchange(ctx, "ws-b", exchange(2)))

	historyA, err := repo.GetHistory(ctx, "ws-a")
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	assert.Equal(t, "q1", historyA[0].Question)
}
