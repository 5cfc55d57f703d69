// Package tasks 定义了投递到 Kafka 的任务结构。
package tasks

// WorkspaceReindexTask 代表一次工作空间向量索引重建任务。
// 向量索引只是分块数据的派生缓存，任何时候都可以从 chunks 表重建。
type WorkspaceReindexTask struct {
	WorkspaceID string `json:"workspace_id"`
	RequestedBy string `json:"requested_by"`
}
