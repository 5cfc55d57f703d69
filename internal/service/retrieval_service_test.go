package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docqa-go/internal/config"
	"docqa-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 为查询返回固定向量。
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeSearchStore 返回预置的检索结果。
type fakeSearchStore struct {
	matches   []model.QueryMatch
	err       error
	lastTopK  int
	deletedWS []string
}

func (f *fakeSearchStore) UpsertChunks(ctx context.Context, docs []model.EsChunkDocument) error {
	return nil
}

func (f *fakeSearchStore) KNNSearch(ctx context.Context, vector []float32, topK int) ([]model.QueryMatch, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func (f *fakeSearchStore) DeleteByDocumentID(ctx context.Context, documentID string) error {
	return nil
}

func (f *fakeSearchStore) DeleteByWorkspaceID(ctx context.Context, workspaceID string) error {
	f.deletedWS = append(f.deletedWS, workspaceID)
	return nil
}

func testRAGConfig() config.RAGConfig {
	return config.RAGConfig{ChunkSize: 300, CandidateK: 50, MaxPerDocument: 5, ContextSize: 15}
}

func match(chunkID, docID, wsID string, score float64) model.QueryMatch {
	return model.QueryMatch{
		ChunkID:     chunkID,
		DocumentID:  docID,
		WorkspaceID: wsID,
		TextContent: "text of " + chunkID,
		Score:       score,
	}
}

func TestRetrieveFiltersOtherWorkspaces(t *testing.T) {
	store := &fakeSearchStore{matches: []model.QueryMatch{
		match("c1", "d1", "ws-a", 0.9),
		match("c2", "d2", "ws-b", 0.95), // 更高分但属于别的工作空间
		match("c3", "d1", "ws-a", 0.8),
	}}
	svc := NewRetrievalService(&fakeEmbedder{}, store, testRAGConfig())

	results, err := svc.Retrieve(context.Background(), "question", "ws-a")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "ws-a", r.WorkspaceID)
	}
	// 超采样候选数传给了索引
	assert.Equal(t, 50, store.lastTopK)
}

func TestRetrieveEmptyWorkspaceReturnsEmptyNotError(t *testing.T) {
	store := &fakeSearchStore{matches: []model.QueryMatch{
		match("c1", "d1", "ws-other", 0.9),
	}}
	svc := NewRetrievalService(&fakeEmbedder{}, store, testRAGConfig())

	results, err := svc.Retrieve(context.Background(), "question", "ws-empty")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveDiversityCap(t *testing.T) {
	// 文档 d1 有 8 条高分命中，文档 d2 有 2 条较低分命中
	var matches []model.QueryMatch
	for i := 0; i < 8; i++ {
		matches = append(matches, match(fmt.Sprintf("a%d", i), "d1", "ws", 0.9-float64(i)*0.01))
	}
	matches = append(matches, match("b0", "d2", "ws", 0.5))
	matches = append(matches, match("b1", "d2", "ws", 0.4))

	svc := NewRetrievalService(&fakeEmbedder{}, &fakeSearchStore{matches: matches}, testRAGConfig())
	results, err := svc.Retrieve(context.Background(), "question", "ws")
	require.NoError(t, err)

	// d1 被限制到 5 条，d2 的 2 条全部保留
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.DocumentID]++
	}
	assert.Equal(t, 5, counts["d1"])
	assert.Equal(t, 2, counts["d2"])

	// 多样性限制保留的是 d1 相关性最高的前 5 条
	kept := make(map[string]bool)
	for _, r := range results {
		kept[r.ChunkID] = true
	}
	for i := 0; i < 5; i++ {
		assert.True(t, kept[fmt.Sprintf("a%d", i)])
	}
	assert.False(t, kept["a5"])
}

func TestRetrieveThreeDocumentsAllWithinCap(t *testing.T) {
	// 3 个文档共 12 条命中（5+4+3），逐文档上限 5：全部保留
	var matches []model.QueryMatch
	counts := map[string]int{"d1": 5, "d2": 4, "d3": 3}
	score := 1.0
	for _, docID := range []string{"d1", "d2", "d3"} {
		for i := 0; i < counts[docID]; i++ {
			matches = append(matches, match(fmt.Sprintf("%s-c%d", docID, i), docID, "ws", score))
			score -= 0.01
		}
	}

	svc := NewRetrievalService(&fakeEmbedder{}, &fakeSearchStore{matches: matches}, testRAGConfig())
	results, err := svc.Retrieve(context.Background(), "question", "ws")
	require.NoError(t, err)
	require.Len(t, results, 12)

	got := make(map[string]int)
	for _, r := range results {
		got[r.DocumentID]++
	}
	assert.Equal(t, counts, got)
}

func TestRetrieveResultsSortedByScoreDesc(t *testing.T) {
	matches := []model.QueryMatch{
		match("c1", "d1", "ws", 0.3),
		match("c2", "d2", "ws", 0.9),
		match("c3", "d3", "ws", 0.6),
	}
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeSearchStore{matches: matches}, testRAGConfig())

	results, err := svc.Retrieve(context.Background(), "question", "ws")
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRetrieveTruncatesToContextSize(t *testing.T) {
	// 20 个不同文档各一条命中，全部通过多样性限制
	var matches []model.QueryMatch
	for i := 0; i < 20; i++ {
		matches = append(matches, match(fmt.Sprintf("c%d", i), fmt.Sprintf("d%d", i), "ws", 1.0-float64(i)*0.01))
	}
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeSearchStore{matches: matches}, testRAGConfig())

	results, err := svc.Retrieve(context.Background(), "question", "ws")
	require.NoError(t, err)
	assert.Len(t, results, 15)
	// 截断保留的是得分最高的 15 条
	assert.Equal(t, "c0", results[0].ChunkID)
	assert.Equal(t, "c14", results[14].ChunkID)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	embErr := errors.New("embedding service unavailable")
	svc := NewRetrievalService(&fakeEmbedder{err: embErr}, &fakeSearchStore{}, testRAGConfig())

	_, err := svc.Retrieve(context.Background(), "question", "ws")
	require.Error(t, err)
	assert.ErrorIs(t, err, embErr)
}

func TestRetrieveSearchFailure(t *testing.T) {
	searchErr := errors.New("index unavailable")
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeSearchStore{err: searchErr}, testRAGConfig())

	_, err := svc.Retrieve(context.Background(), "question", "ws")
	require.Error(t, err)
	assert.ErrorIs(t, err, searchErr)
}
