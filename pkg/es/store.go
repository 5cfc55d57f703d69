package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"docqa-go/internal/model"
	"docqa-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

// ErrIndexUnavailable 表示向量索引服务不可用（网络或服务端错误）。
// 调用方可以选择重试整个管道调用。
var ErrIndexUnavailable = errors.New("向量索引服务不可用")

// Store 定义了向量索引客户端的操作接口。
// 上层（摄取管道与检索管道）只依赖这个接口，便于测试时替换。
type Store interface {
	// UpsertChunks 以分块 ID 为键批量写入向量与元数据，重复写入覆盖旧值（幂等）。
	UpsertChunks(ctx context.Context, docs []model.EsChunkDocument) error
	// KNNSearch 对整个索引执行 kNN 相似度检索，按得分降序返回命中。
	KNNSearch(ctx context.Context, vector []float32, topK int) ([]model.QueryMatch, error)
	// DeleteByDocumentID 删除某个文档的全部向量，用于级联删除与重新摄取。
	DeleteByDocumentID(ctx context.Context, documentID string) error
	// DeleteByWorkspaceID 删除某个工作空间的全部向量，用于工作空间删除与重建。
	DeleteByWorkspaceID(ctx context.Context, workspaceID string) error
}

type store struct {
	client    *elasticsearch.Client
	indexName string
}

// NewStore 创建一个新的 Store 实例。
func NewStore(client *elasticsearch.Client, indexName string) Store {
	return &store{client: client, indexName: indexName}
}

// UpsertChunks 使用 Bulk API 在一次请求中写入所有分块向量。
func (s *store) UpsertChunks(ctx context.Context, docs []model.EsChunkDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]map[string]string{
			"index": {"_index": s.indexName, "_id": doc.ChunkID},
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("序列化 bulk 元数据失败: %w", err)
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("序列化分块文档失败: %w", err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		log.Errorf("批量写入向量索引失败: %v", err)
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch bulk 返回错误: %s", res.String())
		return fmt.Errorf("%w: bulk 请求返回 %s", ErrIndexUnavailable, res.Status())
	}

	// Bulk 整体 200 时仍可能存在单条失败，必须逐条检查，
	// 否则可能在向量缺失的情况下将文档标记为 READY。
	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("解析 bulk 响应失败: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, result := range item {
				if result.Error != nil {
					log.Errorf("bulk 单条写入失败: %s: %s", result.Error.Type, result.Error.Reason)
					return fmt.Errorf("%w: %s", ErrIndexUnavailable, result.Error.Reason)
				}
			}
		}
		return fmt.Errorf("%w: bulk 响应包含未知错误", ErrIndexUnavailable)
	}

	return nil
}

// KNNSearch 对共享索引执行 kNN 检索。
// 注意：这里不做工作空间过滤，隔离由检索管道在结果上显式执行。
func (s *store) KNNSearch(ctx context.Context, vector []float32, topK int) ([]model.QueryMatch, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 4,
		},
		"size":    topK,
		"_source": []string{"chunk_id", "document_id", "workspace_id", "text_content"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("序列化 kNN 查询失败: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("向 Elasticsearch 发送 kNN 查询失败: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch kNN 查询返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("%w: 查询返回 %s", ErrIndexUnavailable, res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunkDocument `json:"_source"`
				Score  float64               `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析 kNN 响应失败: %w", err)
	}

	matches := make([]model.QueryMatch, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		matches = append(matches, model.QueryMatch{
			ChunkID:     hit.Source.ChunkID,
			DocumentID:  hit.Source.DocumentID,
			WorkspaceID: hit.Source.WorkspaceID,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
	}
	return matches, nil
}

// DeleteByDocumentID 按 document_id 删除向量。
func (s *store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	return s.deleteByTerm(ctx, "document_id", documentID)
}

// DeleteByWorkspaceID 按 workspace_id 删除向量。
func (s *store) DeleteByWorkspaceID(ctx context.Context, workspaceID string) error {
	return s.deleteByTerm(ctx, "workspace_id", workspaceID)
}

func (s *store) deleteByTerm(ctx context.Context, field, value string) error {
	query := fmt.Sprintf(`{"query":{"term":{"%s":%q}}}`, field, value)
	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		strings.NewReader(query),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		log.Errorf("按 %s=%s 删除向量失败: %v", field, value, err)
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("delete_by_query 返回错误: %s", res.String())
		return fmt.Errorf("%w: delete_by_query 返回 %s", ErrIndexUnavailable, res.Status())
	}
	return nil
}
