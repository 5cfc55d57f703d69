package pipeline

import "errors"

// ErrEmptyDocument 表示文档文本没有产生任何分块。
// 这是用户输入问题，不应重试。
var ErrEmptyDocument = errors.New("文档未生成任何文本分块")

// ErrEmbeddingCountMismatch 表示嵌入服务返回的向量数量与分块数量不一致。
// 这是内部不变量被破坏，说明存在逻辑或契约缺陷，永远不应重试。
var ErrEmbeddingCountMismatch = errors.New("向量数量与分块数量不一致")
