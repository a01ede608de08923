package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SymptomEntry 对应于 'symptom_entries' 表，记录一次用户提交的症状。
// 创建后 UserID 不再变化。
type SymptomEntry struct {
	ID        string                      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string                      `gorm:"type:uuid;index;not null" json:"userId"`
	Symptoms  datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"symptoms"`
	Notes     *string                     `gorm:"type:text" json:"notes"`
	CreatedAt time.Time                   `gorm:"index" json:"createdAt"`
}

// TableName 指定了 SymptomEntry 结构体对应的数据库表名。
func (SymptomEntry) TableName() string {
	return "symptom_entries"
}

// BeforeCreate 在插入前生成 UUID 主键。
func (e *SymptomEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// NotesText 返回备注文本，未填写时为空字符串。
func (e *SymptomEntry) NotesText() string {
	if e.Notes == nil {
		return ""
	}
	return *e.Notes
}
