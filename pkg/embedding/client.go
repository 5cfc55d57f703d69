// Package embedding 提供了与嵌入模型服务交互的客户端。
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
)

// ErrEmbeddingService 表示嵌入服务调用失败（网络或服务端错误）。
// 该错误可重试，但本客户端不做内部重试，由调用方决定重试策略。
var ErrEmbeddingService = errors.New("嵌入服务调用失败")

// Client 定义了嵌入客户端的操作接口。
type Client interface {
	// CreateEmbedding 将单条文本转换为一个嵌入向量。
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// CreateEmbeddings 将一组文本转换为等长的向量序列，保持输入顺序。
	// 内部按 batch_size 分批调用以遵守外部服务的速率与负载限制。
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient 创建一个新的嵌入客户端实例。
func NewClient(cfg config.EmbeddingConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingResponse 的 embedding 字段用 RawMessage 接收，
// 因为不同提供方返回平铺向量或嵌套的单行矩阵两种形状。
type embeddingResponse struct {
	Data []struct {
		Embedding json.RawMessage `json:"embedding"`
	} `json:"data"`
}

// CreateEmbedding 调用嵌入 API 获取单条文本的向量。
func (c *openAICompatibleClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据")
		return nil, fmt.Errorf("%w: 返回了空向量", ErrEmbeddingService)
	}
	return vectors[0], nil
}

// CreateEmbeddings 分批调用嵌入 API，将结果按输入顺序拼接。
func (c *openAICompatibleClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedBatch 执行一次 API 调用，并把每条结果规范化为平铺的 float32 向量。
func (c *openAICompatibleClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch: %d", c.cfg.Model, len(texts))
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("%w: 返回状态码 %s", ErrEmbeddingService, resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, fmt.Errorf("%w: 解析响应失败: %v", ErrEmbeddingService, err)
	}

	vectors := make([][]float32, 0, len(embeddingResp.Data))
	for i, item := range embeddingResp.Data {
		vector, err := normalizeVector(item.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 条向量形状无法识别: %v", ErrEmbeddingService, i, err)
		}
		vectors = append(vectors, vector)
	}

	log.Infof("[EmbeddingClient] 成功获取 %d 条向量", len(vectors))
	return vectors, nil
}

// normalizeVector 在适配层统一向量形状：
// 平铺的 []float64 直接转换；嵌套的 [][]float64（单行矩阵）展开后转换。
func normalizeVector(raw json.RawMessage) ([]float32, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return toFloat32(flat), nil
	}

	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	var flattened []float64
	for _, row := range nested {
		flattened = append(flattened, row...)
	}
	return toFloat32(flattened), nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
