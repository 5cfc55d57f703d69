package service

import (
	"context"
	"errors"
	"testing"

	"docqa-go/internal/model"
	"docqa-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLMClient 记录收到的消息并返回固定回答。
type fakeLLMClient struct {
	answer       string
	err          error
	calls        int
	lastMessages []llm.Message
}

func (f *fakeLLMClient) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLMClient) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.answer))
}

// fakeRetrieval 返回预置的检索结果。
type fakeRetrieval struct {
	matches []model.QueryMatch
	err     error
}

func (f *fakeRetrieval) Retrieve(ctx context.Context, question, workspaceID string) ([]model.QueryMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

// fakeHistoryRepo 在内存中记录问答历史。
type fakeHistoryRepo struct {
	appended []model.QAExchange
	err      error
}

func (f *fakeHistoryRepo) AppendExchange(ctx context.Context, workspaceID string, exchange model.QAExchange) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, exchange)
	return nil
}

func (f *fakeHistoryRepo) GetHistory(ctx context.Context, workspaceID string) ([]model.QAExchange, error) {
	return f.appended, nil
}

func TestSynthesizeEmptyMatchesSkipsModel(t *testing.T) {
	client := &fakeLLMClient{answer: "should not be used"}
	svc := NewAnswerService(&fakeRetrieval{}, client, &fakeHistoryRepo{})

	answer, err := svc.Synthesize(context.Background(), "any question", nil)
	require.NoError(t, err)

	// 空上下文时不调用模型，返回固定话术
	assert.Zero(t, client.calls)
	assert.Equal(t, "I don't have any documents in this workspace to answer your question. Please upload some documents first.", answer)
}

func TestSynthesizePromptContainsContextAndQuestion(t *testing.T) {
	client := &fakeLLMClient{answer: "the grounded answer"}
	svc := NewAnswerService(&fakeRetrieval{}, client, &fakeHistoryRepo{})

	matches := []model.QueryMatch{
		{ChunkID: "c1", TextContent: "Paris is the capital of France."},
		{ChunkID: "c2", TextContent: "France is in Europe."},
	}

	answer, err := svc.Synthesize(context.Background(), "What is the capital of France?", matches)
	require.NoError(t, err)
	assert.Equal(t, "the grounded answer", answer)

	require.Len(t, client.lastMessages, 2)
	assert.Equal(t, "system", client.lastMessages[0].Role)
	assert.Equal(t, "You are a helpful AI assistant.", client.lastMessages[0].Content)

	userPrompt := client.lastMessages[1].Content
	assert.Contains(t, userPrompt, "Paris is the capital of France.")
	assert.Contains(t, userPrompt, "France is in Europe.")
	assert.Contains(t, userPrompt, "What is the capital of France?")
	assert.Contains(t, userPrompt, `say "I don't know based on the provided documents."`)
}

func TestSynthesizeModelFailure(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("upstream 500")}
	svc := NewAnswerService(&fakeRetrieval{}, client, &fakeHistoryRepo{})

	_, err := svc.Synthesize(context.Background(), "q", []model.QueryMatch{{TextContent: "ctx"}})
	require.Error(t, err)
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	matches := []model.QueryMatch{
		{ChunkID: "c1", DocumentID: "d1", WorkspaceID: "ws", TextContent: "relevant text", Score: 0.9},
	}
	client := &fakeLLMClient{answer: "final answer"}
	history := &fakeHistoryRepo{}
	svc := NewAnswerService(&fakeRetrieval{matches: matches}, client, history)

	result, err := svc.Ask(context.Background(), "question", "ws")
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.Answer)
	assert.Equal(t, matches, result.Sources)

	// 问答历史被记录
	require.Len(t, history.appended, 1)
	assert.Equal(t, "question", history.appended[0].Question)
	assert.Equal(t, "final answer", history.appended[0].Answer)
}

func TestAskEmptyWorkspace(t *testing.T) {
	client := &fakeLLMClient{answer: "should not be used"}
	svc := NewAnswerService(&fakeRetrieval{matches: []model.QueryMatch{}}, client, &fakeHistoryRepo{})

	result, err := svc.Ask(context.Background(), "question", "ws-empty")
	require.NoError(t, err)

	// 空工作空间：固定话术、空来源、不调用模型
	assert.Zero(t, client.calls)
	assert.Empty(t, result.Sources)
	assert.Equal(t, "I don't have any documents in this workspace to answer your question. Please upload some documents first.", result.Answer)
}

func TestAskRetrievalFailurePropagates(t *testing.T) {
	retErr := errors.New("search down")
	svc := NewAnswerService(&fakeRetrieval{err: retErr}, &fakeLLMClient{}, &fakeHistoryRepo{})

	_, err := svc.Ask(context.Background(), "question", "ws")
	require.Error(t, err)
	assert.ErrorIs(t, err, retErr)
}

func TestAskHistoryWriteFailureDoesNotFailRequest(t *testing.T) {
	client := &fakeLLMClient{answer: "answer"}
	history := &fakeHistoryRepo{err: errors.New("redis down")}
	svc := NewAnswerService(&fakeRetrieval{matches: []model.QueryMatch{{TextContent: "ctx"}}}, client, history)

	result, err := svc.Ask(context.Background(), "question", "ws")
	require.NoError(t, err)
	assert.Equal(t, "answer", result.Answer)
}
