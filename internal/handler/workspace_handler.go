package handler

import (
	"errors"
	"net/http"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WorkspaceHandler 负责处理工作空间相关的 API 请求。
type WorkspaceHandler struct {
	workspaceService service.WorkspaceService
}

// NewWorkspaceHandler 创建一个新的 WorkspaceHandler 实例。
func NewWorkspaceHandler(workspaceService service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// WorkspaceRequest 定义了创建/重命名工作空间 API 的请求体结构。
type WorkspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create 处理创建工作空间的请求。
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：名称不能为空"})
		return
	}

	workspace, err := h.workspaceService.Create(req.Name, currentUserID(c))
	if err != nil {
		log.Errorf("Create workspace failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "创建工作空间失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "success", "data": workspace})
}

// List 返回当前用户的所有工作空间。
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.workspaceService.List(currentUserID(c))
	if err != nil {
		log.Errorf("List workspaces failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "查询失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": workspaces})
}

// Get 返回单个工作空间的详细信息。
func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.workspaceService.Get(c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": workspace})
}

// Rename 修改工作空间名称。
func (h *WorkspaceHandler) Rename(c *gin.Context) {
	var req WorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：名称不能为空"})
		return
	}

	workspace, err := h.workspaceService.Rename(c.Param("workspaceId"), currentUserID(c), req.Name)
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": workspace})
}

// Delete 级联删除工作空间及其所有文档。
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.workspaceService.Delete(c.Request.Context(), c.Param("workspaceId"), currentUserID(c)); err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "工作空间已删除"})
}

// Reindex 投递一个异步的重建向量索引任务。
func (h *WorkspaceHandler) Reindex(c *gin.Context) {
	if err := h.workspaceService.RequestReindex(c.Param("workspaceId"), currentUserID(c)); err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "重建索引任务已提交"})
}

// GetHistory 返回工作空间最近的问答历史。
func (h *WorkspaceHandler) GetHistory(c *gin.Context) {
	history, err := h.workspaceService.GetHistory(c.Request.Context(), c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": history})
}

// respondWorkspaceError 把 service 层错误映射为 HTTP 响应。
// 归属不匹配与不存在统一返回 404，不暴露工作空间是否存在。
func respondWorkspaceError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "工作空间不存在"})
		return
	}
	log.Errorf("Workspace operation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "操作失败"})
}
