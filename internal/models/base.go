package models

import (
	"time"
)

// BaseModel 基础模型。所有删除都是物理删除，没有 deleted_at 字段，
// 唯一索引因此不需要考虑已删除的记录。
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
