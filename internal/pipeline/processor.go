// Package pipeline 定义了后台任务的处理流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"
	"healthtrack-go/pkg/tasks"

	"gorm.io/gorm"
)

// Processor 补写分析成功但写入失败的评估。
type Processor struct {
	entryRepo      repository.SymptomEntryRepository
	assessmentRepo repository.RiskAssessmentRepository
	intake         service.IntakeService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(entryRepo repository.SymptomEntryRepository, assessmentRepo repository.RiskAssessmentRepository, intake service.IntakeService) *Processor {
	return &Processor{
		entryRepo:      entryRepo,
		assessmentRepo: assessmentRepo,
		intake:         intake,
	}
}

// Process 以记录所有者的身份写入评估。
// 记录已被删除或已有评估时视为完成，保证重复投递是幂等的。
func (p *Processor) Process(ctx context.Context, task tasks.AssessmentRepairTask) error {
	log.Infof("[Processor] 开始补写评估, entry: %s, user: %s", task.EntryID, task.UserID)

	if !model.ValidRiskLevel(task.Prediction.RiskLevel) {
		log.Warnf("[Processor] 任务中的风险等级无效，丢弃: %q", task.Prediction.RiskLevel)
		return nil
	}

	viewer := model.Viewer{UserID: task.UserID, Role: model.RolePatient}

	entry, err := p.entryRepo.FindByID(ctx, viewer, task.EntryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[Processor] 记录 %s 已不存在，跳过", task.EntryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("查询症状记录失败: %w", err)
	}

	count, err := p.assessmentRepo.CountByEntry(ctx, viewer, entry.ID)
	if err != nil {
		return fmt.Errorf("查询已有评估失败: %w", err)
	}
	if count > 0 {
		log.Infof("[Processor] 记录 %s 已有评估，跳过", entry.ID)
		return nil
	}

	if _, err := p.intake.SaveAssessment(ctx, viewer, entry, task.Prediction); err != nil {
		return fmt.Errorf("写入评估失败: %w", err)
	}
	log.Infof("[Processor] 评估补写完成, entry: %s", entry.ID)
	return nil
}
