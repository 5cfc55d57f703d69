package handler

import (
	"encoding/json"
	"net/http"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"
	"docqa-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 流式问答连接。
type ChatHandler struct {
	chatService      service.ChatService
	workspaceService service.WorkspaceService
	jwtManager       *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, workspaceService service.WorkspaceService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService:      chatService,
		workspaceService: workspaceService,
		jwtManager:       jwtManager,
	}
}

// chatMessage 是客户端在 WebSocket 上发送的一条提问。
type chatMessage struct {
	WorkspaceID string `json:"workspaceId"`
	Question    string `json:"question"`
}

// Handle 处理一个传入的 WebSocket 连接。
// 浏览器的 WebSocket API 无法携带 Authorization 头，认证 token 放在路径参数中。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %s", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var msg chatMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Question == "" || msg.WorkspaceID == "" {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","content":"无效的消息格式"}`))
			continue
		}

		// 每条消息都重新校验工作空间归属，连接期间权限可能已变化
		if _, err := h.workspaceService.Get(msg.WorkspaceID, claims.UserID); err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","content":"工作空间不存在"}`))
			continue
		}

		if err := h.chatService.StreamAsk(c.Request.Context(), conn, msg.Question, msg.WorkspaceID); err != nil {
			log.Errorf("流式问答失败, workspace: %s, err: %v", msg.WorkspaceID, err)
		}
	}
}
