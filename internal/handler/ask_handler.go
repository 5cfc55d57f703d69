package handler

import (
	"errors"
	"net/http"

	"docqa-go/internal/service"
	"docqa-go/pkg/embedding"
	"docqa-go/pkg/es"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AskHandler 负责处理同步问答 API 请求。
type AskHandler struct {
	workspaceService service.WorkspaceService
	answerService    service.AnswerService
}

// NewAskHandler 创建一个新的 AskHandler 实例。
func NewAskHandler(workspaceService service.WorkspaceService, answerService service.AnswerService) *AskHandler {
	return &AskHandler{workspaceService: workspaceService, answerService: answerService}
}

// AskRequest 定义了问答 API 的请求体结构。
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask 处理一次同步问答请求：校验归属 -> 检索 -> 生成。
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：问题不能为空"})
		return
	}

	workspace, err := h.workspaceService.Get(c.Param("workspaceId"), currentUserID(c))
	if err != nil {
		respondWorkspaceError(c, err)
		return
	}

	result, err := h.answerService.Ask(c.Request.Context(), req.Question, workspace.ID)
	if err != nil {
		respondAskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// respondAskError 把问答管道的错误按来源映射为 HTTP 状态码：
// 上游模型服务故障返回 502，向量索引不可用返回 503。
func respondAskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "工作空间不存在"})
	case errors.Is(err, embedding.ErrEmbeddingService):
		log.Errorf("Ask: embedding service failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "嵌入服务暂时不可用"})
	case errors.Is(err, es.ErrIndexUnavailable):
		log.Errorf("Ask: vector index failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "检索服务暂时不可用"})
	case errors.Is(err, llm.ErrSynthesis):
		log.Errorf("Ask: completion failure: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "生成服务暂时不可用"})
	default:
		log.Errorf("Ask failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "问答失败"})
	}
}
