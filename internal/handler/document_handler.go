package handler

import (
	"errors"
	"net/http"

	"docqa-go/internal/pipeline"
	"docqa-go/internal/service"
	"docqa-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DocumentHandler 负责处理文档相关的 API 请求。
type DocumentHandler struct {
	documentService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload 处理文档上传请求（multipart/form-data，字段名为 file）。
// 摄取是同步执行的，响应中的文档状态即为终态。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少上传文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无法读取上传文件"})
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(
		c.Request.Context(),
		c.Param("workspaceId"),
		currentUserID(c),
		fileHeader.Filename,
		file,
		fileHeader.Size,
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "工作空间不存在"})
			return
		}
		// 摄取失败但文档已落库（状态 FAILED）：把文档连同失败原因一起返回
		if doc != nil {
			message := "文档摄取失败"
			if errors.Is(err, pipeline.ErrEmptyDocument) {
				message = "文档未包含可索引的文本内容"
			}
			log.Warnf("Upload: ingestion failed for document %s: %v", doc.ID, err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":    http.StatusUnprocessableEntity,
				"message": message,
				"data":    doc,
			})
			return
		}
		log.Errorf("Upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "上传失败"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "success", "data": doc})
}

// List 返回工作空间下的所有文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documentService.List(c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": docs})
}

// Get 返回单个文档的详细信息。
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documentService.Get(c.Param("documentId"), c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": doc})
}

// Download 返回原始文件的预签名下载地址。
func (h *DocumentHandler) Download(c *gin.Context) {
	url, err := h.documentService.GetDownloadURL(c.Param("documentId"), c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": url}})
}

// Delete 删除文档及其派生数据。
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documentService.Delete(c.Request.Context(), c.Param("documentId"), c.Param("workspaceId"), currentUserID(c)); err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "文档已删除"})
}

func respondDocumentError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文档或工作空间不存在"})
		return
	}
	log.Errorf("Document operation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "操作失败"})
}
