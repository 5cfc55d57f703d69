// Package pipeline 定义了文档摄取的核心流程。
package pipeline

import (
	"context"
	"fmt"

	"docqa-go/internal/config"
	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"docqa-go/pkg/log"

	"github.com/google/uuid"
)

// Processor 封装了文档摄取的所有依赖和逻辑。
// 每个文档的状态机为 PENDING -> PROCESSING -> {READY | FAILED}，
// 状态只由这里写入；同一文档不会被并发摄取，不同文档互不影响。
type Processor struct {
	docRepo         repository.DocumentRepository
	embeddingClient embedding.Client
	esStore         es.Store
	embeddingCfg    config.EmbeddingConfig
	chunkSize       int
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	docRepo repository.DocumentRepository,
	embeddingClient embedding.Client,
	esStore es.Store,
	embeddingCfg config.EmbeddingConfig,
	chunkSize int,
) *Processor {
	return &Processor{
		docRepo:         docRepo,
		embeddingClient: embeddingClient,
		esStore:         esStore,
		embeddingCfg:    embeddingCfg,
		chunkSize:       chunkSize,
	}
}

// Process 是文档摄取的主函数：分块 -> 向量化 -> 持久化 -> 索引。
// 任何一步失败都会把文档置为 FAILED 并把原始错误返回给调用方；
// 状态写入本身失败只记录日志，不掩盖原始错误。
func (p *Processor) Process(ctx context.Context, documentID string) error {
	log.Infof("[Processor] 开始摄取文档, DocumentID: %s", documentID)

	// 1. 标记为 PROCESSING
	if err := p.docRepo.SetStatus(documentID, model.DocumentStatusProcessing); err != nil {
		log.Errorf("[Processor] 更新文档状态为 PROCESSING 失败, DocumentID: %s, Error: %v", documentID, err)
		return fmt.Errorf("更新文档状态失败: %w", err)
	}

	if err := p.run(ctx, documentID); err != nil {
		// 尽力把文档置为 FAILED；这次写入失败是独立的错误，只记录日志
		if serr := p.docRepo.SetStatus(documentID, model.DocumentStatusFailed); serr != nil {
			log.Errorf("[Processor] 更新文档状态为 FAILED 失败, DocumentID: %s, Error: %v", documentID, serr)
		}
		log.Errorf("[Processor] 文档摄取失败, DocumentID: %s, Error: %v", documentID, err)
		return err
	}

	// 8. 全部分块已持久化且已索引，标记为 READY
	if err := p.docRepo.SetStatus(documentID, model.DocumentStatusReady); err != nil {
		// READY 写入失败时文档停留在 PROCESSING，绝不能出现虚假的 READY
		log.Errorf("[Processor] 更新文档状态为 READY 失败, DocumentID: %s, Error: %v", documentID, err)
		return fmt.Errorf("更新文档状态失败: %w", err)
	}

	log.Infof("[Processor] 文档摄取成功完成, DocumentID: %s", documentID)
	return nil
}

// run 执行状态机的第 2~7 步，任何错误原样上抛。
func (p *Processor) run(ctx context.Context, documentID string) error {
	// 2. 读取文档，获得所属工作空间（检索过滤依赖该元数据）
	log.Infof("[Processor] 步骤1: 读取文档元数据, DocumentID: %s", documentID)
	doc, err := p.docRepo.FindByID(documentID)
	if err != nil {
		return fmt.Errorf("读取文档失败: %w", err)
	}

	// 3. 文本切块
	log.Infof("[Processor] 步骤2: 进行文本分块, targetSize: %d", p.chunkSize)
	chunks := Chunk(doc.TextContent, p.chunkSize)
	log.Infof("[Processor] 步骤2: 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		return ErrEmptyDocument
	}

	// 4. 向量化全部分块，并强制校验数量不变量
	log.Info("[Processor] 步骤3: 开始向量化分块")
	vectors, err := p.embeddingClient.CreateEmbeddings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("向量化分块失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: 分块 %d 个, 向量 %d 个", ErrEmbeddingCountMismatch, len(chunks), len(vectors))
	}
	log.Infof("[Processor] 步骤3: 向量化成功, 共 %d 条向量", len(vectors))

	// 5. 持久化分块记录（重新摄取场景下先清理旧数据，保证幂等）
	log.Info("[Processor] 步骤4: 开始持久化分块记录")
	if err := p.docRepo.DeleteChunksByDocumentID(documentID); err != nil {
		return fmt.Errorf("清理旧分块记录失败: %w", err)
	}
	if err := p.esStore.DeleteByDocumentID(ctx, documentID); err != nil {
		return fmt.Errorf("清理旧向量索引失败: %w", err)
	}

	rows := make([]*model.Chunk, 0, len(chunks))
	for i, chunk := range chunks {
		rows = append(rows, &model.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			Position:    i,
			TextContent: chunk,
			Vector:      model.Vector(vectors[i]),
		})
	}
	if err := p.docRepo.BatchCreateChunks(rows); err != nil {
		return fmt.Errorf("批量保存分块失败: %w", err)
	}
	log.Infof("[Processor] 步骤4: 成功持久化 %d 个分块", len(rows))

	// 6. 回读已持久化的分块，以规范 ID 构建索引条目
	log.Info("[Processor] 步骤5: 回读分块并准备索引条目")
	saved, err := p.docRepo.FindChunksByDocumentID(documentID)
	if err != nil {
		return fmt.Errorf("回读分块失败: %w", err)
	}
	if len(saved) == 0 {
		return fmt.Errorf("分块未成功持久化")
	}

	esDocs := make([]model.EsChunkDocument, 0, len(saved))
	for _, chunk := range saved {
		esDocs = append(esDocs, model.EsChunkDocument{
			ChunkID:      chunk.ID,
			DocumentID:   documentID,
			WorkspaceID:  doc.WorkspaceID,
			TextContent:  chunk.TextContent,
			Vector:       chunk.Vector,
			ModelVersion: p.embeddingCfg.Model,
		})
	}

	// 7. 一次批量调用写入向量索引
	log.Info("[Processor] 步骤6: 批量写入向量索引")
	if err := p.esStore.UpsertChunks(ctx, esDocs); err != nil {
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	log.Infof("[Processor] 步骤6: 成功索引 %d 个分块", len(esDocs))

	return nil
}
