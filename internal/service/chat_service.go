package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"

	"github.com/gorilla/websocket"
)

// 流式会话中的控制帧事件类型。
const (
	streamEventSources = "sources"
	streamEventToken   = "token"
	streamEventDone    = "done"
	streamEventError   = "error"
)

// StreamEvent 是 WebSocket 会话中的一条 JSON 帧。
// token 帧携带模型增量输出，sources 帧在流开始前携带引用来源。
type StreamEvent struct {
	Type    string             `json:"type"`
	Content string             `json:"content,omitempty"`
	Sources []model.QueryMatch `json:"sources,omitempty"`
}

// ChatService 定义了流式问答操作。
type ChatService interface {
	// StreamAsk 执行检索并把生成结果逐 token 写入 WebSocket 连接。
	StreamAsk(ctx context.Context, conn *websocket.Conn, question, workspaceID string) error
}

type chatService struct {
	retrievalService RetrievalService
	llmClient        llm.Client
	historyRepo      repository.HistoryRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(retrievalService RetrievalService, llmClient llm.Client, historyRepo repository.HistoryRepository) ChatService {
	return &chatService{
		retrievalService: retrievalService,
		llmClient:        llmClient,
		historyRepo:      historyRepo,
	}
}

// eventWriter 把底层模型客户端写出的纯文本增量包装成 token 事件帧，
// 同时累积完整回答用于写入问答历史。
type eventWriter struct {
	conn    *websocket.Conn
	builder strings.Builder
}

func (w *eventWriter) WriteMessage(messageType int, data []byte) error {
	w.builder.Write(data)
	return writeEvent(w.conn, StreamEvent{Type: streamEventToken, Content: string(data)})
}

// StreamAsk 的帧序固定为：sources -> token* -> done。
// 检索结果为空时跳过模型调用，直接把固定话术作为唯一的 token 帧发出。
func (s *chatService) StreamAsk(ctx context.Context, conn *websocket.Conn, question, workspaceID string) error {
	matches, err := s.retrievalService.Retrieve(ctx, question, workspaceID)
	if err != nil {
		writeEvent(conn, StreamEvent{Type: streamEventError, Content: "检索失败"})
		return err
	}

	if err := writeEvent(conn, StreamEvent{Type: streamEventSources, Sources: matches}); err != nil {
		return err
	}

	var answer string
	if len(matches) == 0 {
		answer = emptyWorkspaceAnswer
		if err := writeEvent(conn, StreamEvent{Type: streamEventToken, Content: answer}); err != nil {
			return err
		}
	} else {
		contextParts := make([]string, 0, len(matches))
		for _, match := range matches {
			contextParts = append(contextParts, match.TextContent)
		}
		messages := []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(groundedPromptTemplate, strings.Join(contextParts, "\n\n"), question)},
		}

		writer := &eventWriter{conn: conn}
		if err := s.llmClient.StreamChatMessages(ctx, messages, nil, writer); err != nil {
			writeEvent(conn, StreamEvent{Type: streamEventError, Content: "生成失败"})
			return err
		}
		answer = writer.builder.String()
	}

	if err := writeEvent(conn, StreamEvent{Type: streamEventDone}); err != nil {
		return err
	}

	exchange := model.QAExchange{Question: question, Answer: answer, Timestamp: time.Now()}
	if err := s.historyRepo.AppendExchange(ctx, workspaceID, exchange); err != nil {
		log.Warnf("[ChatService] 问答历史写入失败, workspace: %s, err: %v", workspaceID, err)
	}

	return nil
}

func writeEvent(conn *websocket.Conn, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
