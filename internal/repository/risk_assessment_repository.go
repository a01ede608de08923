package repository

import (
	"context"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/database"

	"gorm.io/gorm"
)

// RiskAssessmentRepository 接口定义了风险评估的持久化操作。评估创建后不可修改。
type RiskAssessmentRepository interface {
	Create(ctx context.Context, viewer model.Viewer, assessment *model.RiskAssessment) error
	ListOwn(ctx context.Context, viewer model.Viewer) ([]model.RiskAssessment, error)
	ListByEntry(ctx context.Context, viewer model.Viewer, entryID string) ([]model.RiskAssessment, error)
	CountByEntry(ctx context.Context, viewer model.Viewer, entryID string) (int64, error)
}

type riskAssessmentRepository struct {
	db *gorm.DB
}

// NewRiskAssessmentRepository 创建一个新的 RiskAssessmentRepository 实例。
func NewRiskAssessmentRepository(db *gorm.DB) RiskAssessmentRepository {
	return &riskAssessmentRepository{db: db}
}

func (r *riskAssessmentRepository) Create(ctx context.Context, viewer model.Viewer, assessment *model.RiskAssessment) error {
	return database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Create(assessment).Error
	})
}

func (r *riskAssessmentRepository) ListOwn(ctx context.Context, viewer model.Viewer) ([]model.RiskAssessment, error) {
	var assessments []model.RiskAssessment
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Scopes(ownedBy(viewer)).Order("created_at DESC").Find(&assessments).Error
	})
	return assessments, err
}

func (r *riskAssessmentRepository) ListByEntry(ctx context.Context, viewer model.Viewer, entryID string) ([]model.RiskAssessment, error) {
	var assessments []model.RiskAssessment
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Scopes(visibleTo(viewer)).
			Where("symptom_entry_id = ?", entryID).
			Order("created_at DESC").
			Find(&assessments).Error
	})
	return assessments, err
}

func (r *riskAssessmentRepository) CountByEntry(ctx context.Context, viewer model.Viewer, entryID string) (int64, error) {
	var count int64
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Model(&model.RiskAssessment{}).
			Scopes(visibleTo(viewer)).
			Where("symptom_entry_id = ?", entryID).
			Count(&count).Error
	})
	return count, err
}
