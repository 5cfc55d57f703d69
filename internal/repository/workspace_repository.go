// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"docqa-go/internal/model"

	"gorm.io/gorm"
)

// WorkspaceRepository 定义了工作空间数据的持久化操作。
type WorkspaceRepository interface {
	Create(workspace *model.Workspace) error
	// FindByIDAndOwner 查找属于指定用户的工作空间，不存在或不归属该用户时返回 gorm.ErrRecordNotFound。
	FindByIDAndOwner(id, ownerID string) (*model.Workspace, error)
	// FindByOwner 返回用户的全部工作空间（包含文档摘要），按创建时间倒序。
	FindByOwner(ownerID string) ([]model.Workspace, error)
	Update(workspace *model.Workspace) error
	Delete(id string) error
}

type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository 创建一个新的 WorkspaceRepository 实例。
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// Create 在数据库中创建一个新的工作空间记录。
func (r *workspaceRepository) Create(workspace *model.Workspace) error {
	return r.db.Create(workspace).Error
}

// FindByIDAndOwner 根据 ID 与所有者查找工作空间。
func (r *workspaceRepository) FindByIDAndOwner(id, ownerID string) (*model.Workspace, error) {
	var workspace model.Workspace
	err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&workspace).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

// FindByOwner 返回用户的全部工作空间，预加载文档列表。
func (r *workspaceRepository) FindByOwner(ownerID string) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	err := r.db.
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&workspaces).Error
	return workspaces, err
}

// Update 更新一个已存在的工作空间记录。
func (r *workspaceRepository) Update(workspace *model.Workspace) error {
	return r.db.Save(workspace).Error
}

// Delete 删除工作空间记录本身（文档与分块的级联删除由 service 层编排）。
func (r *workspaceRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Workspace{}).Error
}
