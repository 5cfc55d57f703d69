package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docqa-go/internal/config"
	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reindexDocRepo 是内存版的文档仓库，覆盖重建索引所需的全部操作。
type reindexDocRepo struct {
	docs   map[string]*model.Document
	chunks map[string][]*model.Chunk
}

func newReindexDocRepo() *reindexDocRepo {
	return &reindexDocRepo{
		docs:   make(map[string]*model.Document),
		chunks: make(map[string][]*model.Chunk),
	}
}

func (f *reindexDocRepo) Create(doc *model.Document) error {
	f.docs[doc.ID] = doc
	return nil
}

func (f *reindexDocRepo) FindByID(id string) (*model.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, errors.New("document not found")
	}
	return doc, nil
}

func (f *reindexDocRepo) FindByWorkspaceID(workspaceID string) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range f.docs {
		if doc.WorkspaceID == workspaceID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *reindexDocRepo) SetStatus(id, status string) error {
	if doc, ok := f.docs[id]; ok {
		doc.Status = status
	}
	return nil
}

func (f *reindexDocRepo) Delete(id string) error {
	delete(f.docs, id)
	return nil
}

func (f *reindexDocRepo) BatchCreateChunks(chunks []*model.Chunk) error {
	for _, chunk := range chunks {
		f.chunks[chunk.DocumentID] = append(f.chunks[chunk.DocumentID], chunk)
	}
	return nil
}

func (f *reindexDocRepo) FindChunksByDocumentID(documentID string) ([]*model.Chunk, error) {
	return f.chunks[documentID], nil
}

func (f *reindexDocRepo) DeleteChunksByDocumentID(documentID string) error {
	delete(f.chunks, documentID)
	return nil
}

// stubWorkspaceRepo 满足接口即可，重建索引路径不经过它。
type stubWorkspaceRepo struct{}

func (s *stubWorkspaceRepo) Create(workspace *model.Workspace) error { return nil }
func (s *stubWorkspaceRepo) FindByIDAndOwner(id, ownerID string) (*model.Workspace, error) {
	return &model.Workspace{ID: id, OwnerID: ownerID}, nil
}
func (s *stubWorkspaceRepo) FindByOwner(ownerID string) ([]model.Workspace, error) {
	return nil, nil
}
func (s *stubWorkspaceRepo) Update(workspace *model.Workspace) error { return nil }
func (s *stubWorkspaceRepo) Delete(id string) error                  { return nil }

// eventEsStore 按发生顺序记录所有索引操作。
type eventEsStore struct {
	events      []string
	deleteWSErr error
}

func (f *eventEsStore) UpsertChunks(ctx context.Context, docs []model.EsChunkDocument) error {
	if len(docs) > 0 {
		f.events = append(f.events, "upsert:"+docs[0].DocumentID)
	}
	return nil
}

func (f *eventEsStore) KNNSearch(ctx context.Context, vector []float32, topK int) ([]model.QueryMatch, error) {
	return nil, nil
}

func (f *eventEsStore) DeleteByDocumentID(ctx context.Context, documentID string) error {
	f.events = append(f.events, "delete_doc:"+documentID)
	return nil
}

func (f *eventEsStore) DeleteByWorkspaceID(ctx context.Context, workspaceID string) error {
	f.events = append(f.events, "delete_ws:"+workspaceID)
	return f.deleteWSErr
}

func newReindexService(repo *reindexDocRepo, store *eventEsStore) DocumentService {
	embCfg := config.EmbeddingConfig{Model: "test-embedding-model", Dimensions: 2, BatchSize: 10}
	processor := pipeline.NewProcessor(repo, &fakeEmbedder{}, store, embCfg, 50)
	return NewDocumentService(repo, &stubWorkspaceRepo{}, processor, nil, store, config.MinIOConfig{})
}

func seedReindexDoc(repo *reindexDocRepo, id string) {
	repo.docs[id] = &model.Document{
		ID:          id,
		WorkspaceID: "ws-1",
		Title:       id + ".txt",
		TextContent: strings.Repeat("reindex me please ", 10),
		Status:      model.DocumentStatusReady,
	}
}

func TestReindexWorkspacePurgesWorkspaceVectorsFirst(t *testing.T) {
	repo := newReindexDocRepo()
	store := &eventEsStore{}
	seedReindexDoc(repo, "d1")
	seedReindexDoc(repo, "d2")

	err := newReindexService(repo, store).ReindexWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)

	// 整体清空必须发生在任何重摄取之前：只有它能清理
	// 已删除文档残留的孤儿向量
	require.NotEmpty(t, store.events)
	assert.Equal(t, "delete_ws:ws-1", store.events[0])

	// 每个文档都被重摄取并重新写入索引
	upserts := 0
	for _, event := range store.events {
		if strings.HasPrefix(event, "upsert:") {
			upserts++
		}
	}
	assert.Equal(t, 2, upserts)
	assert.Equal(t, model.DocumentStatusReady, repo.docs["d1"].Status)
	assert.Equal(t, model.DocumentStatusReady, repo.docs["d2"].Status)
}

func TestReindexWorkspacePurgeFailurePropagates(t *testing.T) {
	repo := newReindexDocRepo()
	purgeErr := errors.New("index unavailable")
	store := &eventEsStore{deleteWSErr: purgeErr}
	seedReindexDoc(repo, "d1")

	err := newReindexService(repo, store).ReindexWorkspace(context.Background(), "ws-1")
	// 清空失败时报错（驱动 Kafka 重试），且不进行任何重摄取
	require.Error(t, err)
	assert.ErrorIs(t, err, purgeErr)
	for _, event := range store.events {
		assert.False(t, strings.HasPrefix(event, "upsert:"))
	}
}

func TestReindexWorkspaceDocumentFailureReturnsFirstError(t *testing.T) {
	repo := newReindexDocRepo()
	store := &eventEsStore{}
	seedReindexDoc(repo, "d1")
	// 空文档在摄取时失败，但不中断其他文档的重建
	repo.docs["d2"] = &model.Document{
		ID:          "d2",
		WorkspaceID: "ws-1",
		Title:       "d2.txt",
		TextContent: "   ",
		Status:      model.DocumentStatusReady,
	}

	err := newReindexService(repo, store).ReindexWorkspace(context.Background(), "ws-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrEmptyDocument)

	assert.Equal(t, model.DocumentStatusReady, repo.docs["d1"].Status)
	assert.Equal(t, model.DocumentStatusFailed, repo.docs["d2"].Status)
}
