// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"sort"

	"docqa-go/internal/config"
	"docqa-go/internal/model"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"docqa-go/pkg/log"
)

// RetrievalService 定义了相似度检索操作。
type RetrievalService interface {
	// Retrieve 针对一个问题检索工作空间内最相关的分块，可能返回空序列（不是错误）。
	Retrieve(ctx context.Context, question, workspaceID string) ([]model.QueryMatch, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	esStore         es.Store
	ragCfg          config.RAGConfig
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, esStore es.Store, ragCfg config.RAGConfig) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		esStore:         esStore,
		ragCfg:          ragCfg,
	}
}

// Retrieve 执行检索管道：
// 向量化问题 -> 超采样 kNN 检索 -> 工作空间过滤 -> 文档多样性限制 -> 全局重排 -> 截断。
// 超采样补偿了后续过滤与多样性限制造成的损耗；逐文档上限防止某个
// 分块很多的文档垄断整个上下文。
func (s *retrievalService) Retrieve(ctx context.Context, question, workspaceID string) ([]model.QueryMatch, error) {
	log.Infof("[RetrievalService] 开始检索, workspace: %s, question_len: %d", workspaceID, len(question))

	// 1. 向量化问题
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Infof("[RetrievalService] 问题向量化成功, 维度: %d", len(queryVector))

	// 2. 超采样检索候选集（全工作空间共用一个索引）
	candidates, err := s.esStore.KNNSearch(ctx, queryVector, s.ragCfg.CandidateK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	log.Infof("[RetrievalService] kNN 返回 %d 条候选", len(candidates))

	// 3. 工作空间过滤：绝不信任索引侧的相关性来做隔离
	workspaceMatches := make([]model.QueryMatch, 0, len(candidates))
	for _, match := range candidates {
		if match.WorkspaceID == workspaceID {
			workspaceMatches = append(workspaceMatches, match)
		}
	}
	if len(workspaceMatches) == 0 {
		log.Infof("[RetrievalService] 工作空间 %s 内无命中, 返回空结果", workspaceID)
		return []model.QueryMatch{}, nil
	}

	// 4. 文档多样性限制：每个文档最多保留 MaxPerDocument 条，
	// 保持各组内按首次出现（即相关性）的顺序，不重排后再截断
	perDocument := make(map[string][]model.QueryMatch)
	var documentOrder []string
	for _, match := range workspaceMatches {
		group := perDocument[match.DocumentID]
		if len(group) == 0 {
			documentOrder = append(documentOrder, match.DocumentID)
		}
		if len(group) < s.ragCfg.MaxPerDocument {
			perDocument[match.DocumentID] = append(group, match)
		}
	}

	// 5. 展平后按得分全局降序重排（稳定排序保持同分时的原始相对顺序）
	diverse := make([]model.QueryMatch, 0, len(workspaceMatches))
	for _, documentID := range documentOrder {
		diverse = append(diverse, perDocument[documentID]...)
	}
	sort.SliceStable(diverse, func(i, j int) bool {
		return diverse[i].Score > diverse[j].Score
	})

	// 6. 截断到最终上下文大小
	if len(diverse) > s.ragCfg.ContextSize {
		diverse = diverse[:s.ragCfg.ContextSize]
	}

	log.Infof("[RetrievalService] 检索完成, 返回 %d 条结果", len(diverse))
	return diverse, nil
}
