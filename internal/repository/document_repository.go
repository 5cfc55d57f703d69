// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"docqa-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 定义了文档与分块数据的持久化操作。
// 分块归属于文档：随文档删除而级联删除，重新摄取前会被整体清理。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByWorkspaceID(workspaceID string) ([]model.Document, error)
	// SetStatus 更新文档的生命周期状态。状态流转只允许由摄取管道发起。
	SetStatus(id, status string) error
	Delete(id string) error

	// BatchCreateChunks 批量插入分块记录，避免逐行写入放大延迟。
	BatchCreateChunks(chunks []*model.Chunk) error
	// FindChunksByDocumentID 按 position 升序返回文档的全部分块。
	FindChunksByDocumentID(documentID string) ([]*model.Chunk, error)
	DeleteChunksByDocumentID(documentID string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一个新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据 ID 查找文档。
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByWorkspaceID 返回工作空间下的全部文档，按创建时间倒序。
func (r *documentRepository) FindByWorkspaceID(workspaceID string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("workspace_id = ?", workspaceID).Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// SetStatus 更新文档状态字段。
func (r *documentRepository) SetStatus(id, status string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Update("status", status).Error
}

// Delete 删除文档记录。
func (r *documentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Document{}).Error
}

// BatchCreateChunks 批量创建分块记录。
func (r *documentRepository) BatchCreateChunks(chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

// FindChunksByDocumentID 根据文档 ID 查找所有分块记录，按位置升序。
func (r *documentRepository) FindChunksByDocumentID(documentID string) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	err := r.db.Where("document_id = ?", documentID).Order("position ASC").Find(&chunks).Error
	return chunks, err
}

// DeleteChunksByDocumentID 根据文档 ID 删除所有分块记录。
func (r *documentRepository) DeleteChunksByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}
