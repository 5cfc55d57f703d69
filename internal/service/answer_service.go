package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/llm"
	"docqa-go/pkg/log"
)

const (
	systemPrompt = "You are a helpful AI assistant."

	// 模型可以回答时使用的归一话术，检索上下文为空时直接短路返回
	emptyWorkspaceAnswer = "I don't have any documents in this workspace to answer your question. Please upload some documents first."

	groundedPromptTemplate = `Answer the question based only on the following context. If the answer is not in the context, say "I don't know based on the provided documents."

Context:
%s

Question: %s`
)

// AnswerResult 是一次问答操作的完整返回。
type AnswerResult struct {
	Answer  string             `json:"answer"`
	Sources []model.QueryMatch `json:"sources"`
}

// AnswerService 定义了端到端问答操作。
type AnswerService interface {
	// Ask 执行检索 + 生成的完整流程。
	Ask(ctx context.Context, question, workspaceID string) (*AnswerResult, error)
	// Synthesize 基于给定的检索结果生成回答，matches 为空时不调用模型。
	Synthesize(ctx context.Context, question string, matches []model.QueryMatch) (string, error)
}

type answerService struct {
	retrievalService RetrievalService
	llmClient        llm.Client
	historyRepo      repository.HistoryRepository
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(retrievalService RetrievalService, llmClient llm.Client, historyRepo repository.HistoryRepository) AnswerService {
	return &answerService{
		retrievalService: retrievalService,
		llmClient:        llmClient,
		historyRepo:      historyRepo,
	}
}

// Ask 先检索再生成，最后尽力追加问答历史（历史写入失败只记日志，不影响返回）。
func (s *answerService) Ask(ctx context.Context, question, workspaceID string) (*AnswerResult, error) {
	log.Infof("[AnswerService] 收到问题, workspace: %s", workspaceID)

	matches, err := s.retrievalService.Retrieve(ctx, question, workspaceID)
	if err != nil {
		return nil, err
	}

	answer, err := s.Synthesize(ctx, question, matches)
	if err != nil {
		return nil, err
	}

	exchange := model.QAExchange{
		Question:  question,
		Answer:    answer,
		Timestamp: time.Now(),
	}
	if err := s.historyRepo.AppendExchange(ctx, workspaceID, exchange); err != nil {
		log.Warnf("[AnswerService] 问答历史写入失败, workspace: %s, err: %v", workspaceID, err)
	}

	return &AnswerResult{Answer: answer, Sources: matches}, nil
}

// Synthesize 将检索结果拼接为受限上下文提示词并调用模型。
// 空检索结果直接返回固定话术，绝不把空上下文交给模型去幻觉。
func (s *answerService) Synthesize(ctx context.Context, question string, matches []model.QueryMatch) (string, error) {
	if len(matches) == 0 {
		return emptyWorkspaceAnswer, nil
	}

	contextParts := make([]string, 0, len(matches))
	for _, match := range matches {
		contextParts = append(contextParts, match.TextContent)
	}
	contextBlock := strings.Join(contextParts, "\n\n")

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(groundedPromptTemplate, contextBlock, question)},
	}

	answer, err := s.llmClient.Complete(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("answer synthesis failed: %w", err)
	}

	log.Infof("[AnswerService] 生成回答成功, answer_len: %d", len(answer))
	return answer, nil
}
