// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 文档生命周期状态。状态只由 Ingestion 管道写入，
// 一旦进入 READY/FAILED 不会回退，除非触发重新摄取。
const (
	DocumentStatusPending    = "PENDING"
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusReady      = "READY"
	DocumentStatusFailed     = "FAILED"
)

// Document 对应于数据库中的 'documents' 表。
type Document struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	WorkspaceID string    `gorm:"type:varchar(36);not null;index" json:"workspaceId"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	ObjectName  string    `gorm:"type:varchar(512)" json:"-"`
	TextContent string    `gorm:"type:longtext" json:"-"`
	Status      string    `gorm:"type:varchar(16);not null;default:'PENDING'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// Vector 是嵌入向量在 MySQL 中的 JSON 列表示。
type Vector []float32

// Value 实现 driver.Valuer，将向量序列化为 JSON 写入数据库。
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan 实现 sql.Scanner，从数据库 JSON 列还原向量。
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return errors.New("unsupported vector column type")
	}
}

// Chunk 对应于数据库中的 'chunks' 表。
// 分块一旦创建即不可变，随所属文档级联删除。
type Chunk struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID  string    `gorm:"type:varchar(36);not null;index" json:"documentId"`
	Position    int       `gorm:"not null" json:"position"`
	TextContent string    `gorm:"type:text" json:"textContent"`
	Vector      Vector    `gorm:"type:json" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "chunks"
}
