package service

import (
	"context"

	"docqa-go/internal/config"
	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/es"
	"docqa-go/pkg/kafka"
	"docqa-go/pkg/log"
	"docqa-go/pkg/storage"
	"docqa-go/pkg/tasks"

	"github.com/google/uuid"
)

// WorkspaceService 定义了工作空间相关的业务操作。
// 所有操作都以 ownerID 作为访问边界，归属不匹配等同于不存在。
type WorkspaceService interface {
	Create(name, ownerID string) (*model.Workspace, error)
	Get(id, ownerID string) (*model.Workspace, error)
	List(ownerID string) ([]model.Workspace, error)
	Rename(id, ownerID, name string) (*model.Workspace, error)
	Delete(ctx context.Context, id, ownerID string) error
	// RequestReindex 将一个重建向量索引的任务投递到 Kafka，由消费者异步执行。
	RequestReindex(id, ownerID string) error
	GetHistory(ctx context.Context, id, ownerID string) ([]model.QAExchange, error)
}

type workspaceService struct {
	workspaceRepo repository.WorkspaceRepository
	docRepo       repository.DocumentRepository
	historyRepo   repository.HistoryRepository
	esStore       es.Store
	minioCfg      config.MinIOConfig
}

// NewWorkspaceService 创建一个新的 WorkspaceService 实例。
func NewWorkspaceService(
	workspaceRepo repository.WorkspaceRepository,
	docRepo repository.DocumentRepository,
	historyRepo repository.HistoryRepository,
	esStore es.Store,
	minioCfg config.MinIOConfig,
) WorkspaceService {
	return &workspaceService{
		workspaceRepo: workspaceRepo,
		docRepo:       docRepo,
		historyRepo:   historyRepo,
		esStore:       esStore,
		minioCfg:      minioCfg,
	}
}

// Create 创建一个新的工作空间。
func (s *workspaceService) Create(name, ownerID string) (*model.Workspace, error) {
	workspace := &model.Workspace{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: ownerID,
	}
	if err := s.workspaceRepo.Create(workspace); err != nil {
		return nil, err
	}
	log.Infof("[WorkspaceService] 创建工作空间成功, WorkspaceID: %s", workspace.ID)
	return workspace, nil
}

// Get 返回指定的工作空间，归属不匹配时返回 gorm.ErrRecordNotFound。
func (s *workspaceService) Get(id, ownerID string) (*model.Workspace, error) {
	return s.workspaceRepo.FindByIDAndOwner(id, ownerID)
}

// List 返回用户拥有的所有工作空间（含文档列表）。
func (s *workspaceService) List(ownerID string) ([]model.Workspace, error) {
	return s.workspaceRepo.FindByOwner(ownerID)
}

// Rename 修改工作空间名称。
func (s *workspaceService) Rename(id, ownerID, name string) (*model.Workspace, error) {
	workspace, err := s.workspaceRepo.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return nil, err
	}
	workspace.Name = name
	if err := s.workspaceRepo.Update(workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

// Delete 级联删除工作空间：分块、文档、向量索引条目和对象存储中的原始文件。
// 数据库是事实来源，先清库再清派生数据；派生清理失败只记日志，
// 因为索引和对象存储都可以从数据库重建或由运维回收。
func (s *workspaceService) Delete(ctx context.Context, id, ownerID string) error {
	workspace, err := s.workspaceRepo.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return err
	}

	docs, err := s.docRepo.FindByWorkspaceID(workspace.ID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := s.docRepo.DeleteChunksByDocumentID(doc.ID); err != nil {
			return err
		}
		if err := s.docRepo.Delete(doc.ID); err != nil {
			return err
		}
		if doc.ObjectName != "" {
			if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, doc.ObjectName); err != nil {
				log.Warnf("[WorkspaceService] 删除对象失败, ObjectName: %s, err: %v", doc.ObjectName, err)
			}
		}
	}

	if err := s.workspaceRepo.Delete(workspace.ID); err != nil {
		return err
	}

	if err := s.esStore.DeleteByWorkspaceID(ctx, workspace.ID); err != nil {
		log.Warnf("[WorkspaceService] 清理向量索引失败, WorkspaceID: %s, err: %v", workspace.ID, err)
	}

	log.Infof("[WorkspaceService] 删除工作空间成功, WorkspaceID: %s, 文档数: %d", workspace.ID, len(docs))
	return nil
}

// RequestReindex 校验归属后投递重建索引任务。
func (s *workspaceService) RequestReindex(id, ownerID string) error {
	workspace, err := s.workspaceRepo.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return err
	}
	task := tasks.WorkspaceReindexTask{
		WorkspaceID: workspace.ID,
		RequestedBy: ownerID,
	}
	if err := kafka.ProduceReindexTask(task); err != nil {
		return err
	}
	log.Infof("[WorkspaceService] 重建索引任务已投递, WorkspaceID: %s", workspace.ID)
	return nil
}

// GetHistory 返回工作空间最近的问答历史。
func (s *workspaceService) GetHistory(ctx context.Context, id, ownerID string) ([]model.QAExchange, error) {
	workspace, err := s.workspaceRepo.FindByIDAndOwner(id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.historyRepo.GetHistory(ctx, workspace.ID)
}
