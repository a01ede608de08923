// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// EntryDocument 定义了存储在 Elasticsearch 中的症状记录文档结构。
type EntryDocument struct {
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Symptoms  []string  `json:"symptoms"`
	Notes     string    `json:"notes"`
	RiskLevel string    `json:"risk_level,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntryDocument 由症状记录（和可选的评估）构造索引文档。
func NewEntryDocument(entry *SymptomEntry, assessment *RiskAssessment) EntryDocument {
	doc := EntryDocument{
		EntryID:   entry.ID,
		UserID:    entry.UserID,
		Symptoms:  []string(entry.Symptoms),
		Notes:     entry.NotesText(),
		CreatedAt: entry.CreatedAt,
	}
	if assessment != nil {
		doc.RiskLevel = assessment.RiskLevel
	}
	return doc
}

// SearchResponseDTO 定义了返回给前端的搜索结果结构。
type SearchResponseDTO struct {
	EntryID   string    `json:"entryId"`
	Symptoms  []string  `json:"symptoms"`
	Notes     string    `json:"notes"`
	RiskLevel string    `json:"riskLevel,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}
