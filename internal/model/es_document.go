// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// EsChunkDocument 定义了存储在 Elasticsearch 向量索引中的文档结构。
// 索引是分块数据的派生副本（可重建的缓存），文本的事实来源仍是 chunks 表。
type EsChunkDocument struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	WorkspaceID  string    `json:"workspace_id"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// QueryMatch 是一次相似度检索的单条命中结果，不做持久化。
type QueryMatch struct {
	ChunkID     string  `json:"chunkId"`
	DocumentID  string  `json:"documentId"`
	WorkspaceID string  `json:"workspaceId"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}

// QAExchange 代表存储在 Redis 中的一次问答记录。
type QAExchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}
