package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 风险等级取值。
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// MaxConditions 是一次评估中候选病症数量的上限。
const MaxConditions = 3

// Condition 是一个候选病症及其概率（0-100）。
type Condition struct {
	Name        string `json:"name"`
	Probability int    `json:"probability"`
	Explanation string `json:"explanation"`
}

// Prediction 是分析服务返回的结构化风险评估。
type Prediction struct {
	Conditions      []Condition `json:"conditions"`
	RiskLevel       string      `json:"riskLevel"`
	Recommendations []string    `json:"recommendations"`
	Disclaimer      string      `json:"disclaimer"`
}

// RiskAssessment 对应于 'risk_assessments' 表。
// 创建后不可变，随所属 SymptomEntry 级联删除。
type RiskAssessment struct {
	ID             string                         `gorm:"type:uuid;primaryKey" json:"id"`
	SymptomEntryID string                         `gorm:"type:uuid;index;not null" json:"symptomEntryId"`
	UserID         string                         `gorm:"type:uuid;index;not null" json:"userId"`
	Prediction     datatypes.JSONType[Prediction] `gorm:"type:jsonb;not null" json:"prediction"`
	RiskLevel      string                         `gorm:"type:varchar(16);not null" json:"riskLevel"`
	CreatedAt      time.Time                      `json:"createdAt"`
}

// TableName 指定了 RiskAssessment 结构体对应的数据库表名。
func (RiskAssessment) TableName() string {
	return "risk_assessments"
}

// BeforeCreate 在插入前生成 UUID 主键。
func (a *RiskAssessment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ValidRiskLevel 判断风险等级是否在 low/medium/high 之中。
func ValidRiskLevel(level string) bool {
	switch level {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// NewRiskAssessment 根据一次分析结果构造待持久化的评估记录。
func NewRiskAssessment(entry *SymptomEntry, p Prediction) *RiskAssessment {
	return &RiskAssessment{
		SymptomEntryID: entry.ID,
		UserID:         entry.UserID,
		Prediction:     datatypes.NewJSONType(p),
		RiskLevel:      p.RiskLevel,
	}
}
