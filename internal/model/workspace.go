// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Workspace 对应于数据库中的 'workspaces' 表。
// 工作空间是文档的归属边界，检索永远不会跨越它。
type Workspace struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID   string    `gorm:"type:varchar(36);not null;index" json:"ownerId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Documents 是该工作空间下的文档列表（按需 Preload）。
	Documents []Document `gorm:"foreignKey:WorkspaceID" json:"documents,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Workspace) TableName() string {
	return "workspaces"
}
