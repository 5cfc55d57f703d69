package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"docqa-go/internal/config"
	"docqa-go/internal/model"
	"docqa-go/internal/pipeline"
	"docqa-go/internal/repository"
	"docqa-go/pkg/es"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/tika"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentService 定义了文档相关的业务操作。
type DocumentService interface {
	// Upload 上传文件、抽取文本并同步执行摄取管道。
	// 即使摄取失败也返回已落库的文档（状态为 FAILED），错误一并返回。
	Upload(ctx context.Context, workspaceID, ownerID, fileName string, fileReader io.Reader, fileSize int64) (*model.Document, error)
	List(workspaceID, ownerID string) ([]model.Document, error)
	Get(id, workspaceID, ownerID string) (*model.Document, error)
	// GetDownloadURL 返回原始文件的预签名下载地址。
	GetDownloadURL(id, workspaceID, ownerID string) (string, error)
	Delete(ctx context.Context, id, workspaceID, ownerID string) error
	// ReindexWorkspace 重建整个工作空间的向量索引（Kafka 消费者入口）。
	ReindexWorkspace(ctx context.Context, workspaceID string) error
}

type documentService struct {
	docRepo       repository.DocumentRepository
	workspaceRepo repository.WorkspaceRepository
	processor     *pipeline.Processor
	tikaClient    *tika.Client
	esStore       es.Store
	minioCfg      config.MinIOConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	workspaceRepo repository.WorkspaceRepository,
	processor *pipeline.Processor,
	tikaClient *tika.Client,
	esStore es.Store,
	minioCfg config.MinIOConfig,
) DocumentService {
	return &documentService{
		docRepo:       docRepo,
		workspaceRepo: workspaceRepo,
		processor:     processor,
		tikaClient:    tikaClient,
		esStore:       esStore,
		minioCfg:      minioCfg,
	}
}

// Upload 执行完整的上传流程：
// 校验归属 -> 上传原始文件到 MinIO -> 抽取文本 -> 落库（PENDING）-> 同步摄取。
// 纯文本和 Markdown 直接读取内容，其余格式交给 Tika 抽取。
func (s *documentService) Upload(ctx context.Context, workspaceID, ownerID, fileName string, fileReader io.Reader, fileSize int64) (*model.Document, error) {
	if _, err := s.workspaceRepo.FindByIDAndOwner(workspaceID, ownerID); err != nil {
		return nil, err
	}

	log.Infof("[DocumentService] 开始上传文档, Workspace: %s, FileName: %s", workspaceID, fileName)

	// 文件内容需要读两次（存储 + 抽取），先整体缓冲
	fileData, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	objectName := "documents/" + documentID + "/" + filepath.Base(fileName)
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, bytes.NewReader(fileData), int64(len(fileData)), detectContentType(fileName)); err != nil {
		return nil, err
	}

	textContent, err := s.extractText(fileData, fileName)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:          documentID,
		WorkspaceID: workspaceID,
		Title:       fileName,
		ObjectName:  objectName,
		TextContent: textContent,
		Status:      model.DocumentStatusPending,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	// 同步摄取：调用方在响应返回时就能拿到终态（READY 或 FAILED）
	if err := s.processor.Process(ctx, doc.ID); err != nil {
		refreshed, findErr := s.docRepo.FindByID(doc.ID)
		if findErr == nil {
			doc = refreshed
		}
		return doc, err
	}

	refreshed, err := s.docRepo.FindByID(doc.ID)
	if err != nil {
		return doc, nil
	}
	return refreshed, nil
}

// List 返回工作空间下的所有文档。
func (s *documentService) List(workspaceID, ownerID string) ([]model.Document, error) {
	if _, err := s.workspaceRepo.FindByIDAndOwner(workspaceID, ownerID); err != nil {
		return nil, err
	}
	return s.docRepo.FindByWorkspaceID(workspaceID)
}

// Get 返回指定文档，文档必须属于该用户的该工作空间。
func (s *documentService) Get(id, workspaceID, ownerID string) (*model.Document, error) {
	if _, err := s.workspaceRepo.FindByIDAndOwner(workspaceID, ownerID); err != nil {
		return nil, err
	}
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	// 文档不在该工作空间内时等同于不存在
	if doc.WorkspaceID != workspaceID {
		return nil, gorm.ErrRecordNotFound
	}
	return doc, nil
}

// GetDownloadURL 返回原始文件的预签名地址，有效期 15 分钟。
func (s *documentService) GetDownloadURL(id, workspaceID, ownerID string) (string, error) {
	doc, err := s.Get(id, workspaceID, ownerID)
	if err != nil {
		return "", err
	}
	return storage.GetPresignedURL(s.minioCfg.BucketName, doc.ObjectName, 15*time.Minute)
}

// Delete 删除文档及其派生数据（分块、向量、原始文件）。
func (s *documentService) Delete(ctx context.Context, id, workspaceID, ownerID string) error {
	doc, err := s.Get(id, workspaceID, ownerID)
	if err != nil {
		return err
	}

	if err := s.docRepo.DeleteChunksByDocumentID(doc.ID); err != nil {
		return err
	}
	if err := s.docRepo.Delete(doc.ID); err != nil {
		return err
	}

	if err := s.esStore.DeleteByDocumentID(ctx, doc.ID); err != nil {
		log.Warnf("[DocumentService] 清理向量索引失败, DocumentID: %s, err: %v", doc.ID, err)
	}
	if doc.ObjectName != "" {
		if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, doc.ObjectName); err != nil {
			log.Warnf("[DocumentService] 删除对象失败, ObjectName: %s, err: %v", doc.ObjectName, err)
		}
	}

	log.Infof("[DocumentService] 删除文档成功, DocumentID: %s", doc.ID)
	return nil
}

// ReindexWorkspace 重建整个工作空间的向量索引：先整体清空工作空间的
// 向量投影，再逐个文档重跑摄取管道。逐文档重摄取只覆盖 document_id
// 命中的条目，已删除文档残留的孤儿向量只有整体清空这一步能清理。
// 单个文档失败不中断整体，但会向上返回错误以触发 Kafka 的重试。
func (s *documentService) ReindexWorkspace(ctx context.Context, workspaceID string) error {
	docs, err := s.docRepo.FindByWorkspaceID(workspaceID)
	if err != nil {
		return err
	}

	log.Infof("[DocumentService] 开始重建索引, Workspace: %s, 文档数: %d", workspaceID, len(docs))

	if err := s.esStore.DeleteByWorkspaceID(ctx, workspaceID); err != nil {
		return fmt.Errorf("清空工作空间向量失败: %w", err)
	}

	var firstErr error
	for _, doc := range docs {
		if err := s.processor.Process(ctx, doc.ID); err != nil {
			log.Errorf("[DocumentService] 重建索引时文档处理失败, DocumentID: %s, err: %v", doc.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// extractText 抽取文件文本：纯文本直接解码，其他格式交给 Tika。
func (s *documentService) extractText(fileData []byte, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".txt" || ext == ".md" {
		return string(fileData), nil
	}
	return s.tikaClient.ExtractText(bytes.NewReader(fileData), fileName)
}

func detectContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
