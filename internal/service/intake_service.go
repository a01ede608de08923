package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/pkg/log"
	"healthtrack-go/pkg/tasks"
)

// ErrEntryNotSaved 表示症状记录写入失败，此时不会调用分析服务。
var ErrEntryNotSaved = errors.New("failed to save symptom entry")

// RepairQueue 接收评估补写任务。
type RepairQueue interface {
	PublishRepair(ctx context.Context, task tasks.AssessmentRepairTask) error
}

// AssessmentReadyEvent 是评估写入后推送给用户的通知。
type AssessmentReadyEvent struct {
	Type      string    `json:"type"`
	EntryID   string    `json:"entryId"`
	RiskLevel string    `json:"riskLevel"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier 向在线用户推送事件。
type Notifier interface {
	NotifyAssessmentReady(userID string, event AssessmentReadyEvent)
}

// EntryIndexer 维护症状记录的搜索索引。
type EntryIndexer interface {
	IndexEntry(ctx context.Context, entry *model.SymptomEntry, assessment *model.RiskAssessment) error
	DeleteEntry(ctx context.Context, entryID string) error
}

// SubmissionResult 是一次症状提交的结果。
// AssessmentSaved 为 false 时评估只存在于本次响应中，补写任务已入队。
type SubmissionResult struct {
	Entry           *model.SymptomEntry   `json:"entry"`
	Assessment      *model.RiskAssessment `json:"assessment"`
	Prediction      model.Prediction      `json:"prediction"`
	AssessmentSaved bool                  `json:"assessmentSaved"`
	Fallback        bool                  `json:"fallback"`
}

// IntakeService 编排一次症状提交：写入记录 → 分析 → 写入评估。
type IntakeService interface {
	// Submit 执行提交流程。分析失败时返回的结果中仍带有已写入的 Entry，错误包装分析错误。
	Submit(ctx context.Context, viewer model.Viewer, symptoms []string, notes string) (*SubmissionResult, error)
	// SaveAssessment 写入评估并触发通知与索引，补写任务也经由此处。
	SaveAssessment(ctx context.Context, viewer model.Viewer, entry *model.SymptomEntry, prediction model.Prediction) (*model.RiskAssessment, error)
}

type intakeService struct {
	entryRepo      repository.SymptomEntryRepository
	assessmentRepo repository.RiskAssessmentRepository
	analysis       AnalysisService
	repairs        RepairQueue
	notifier       Notifier
	indexer        EntryIndexer
}

// NewIntakeService 创建一个新的 IntakeService 实例。repairs、notifier、indexer 可为 nil。
func NewIntakeService(
	entryRepo repository.SymptomEntryRepository,
	assessmentRepo repository.RiskAssessmentRepository,
	analysis AnalysisService,
	repairs RepairQueue,
	notifier Notifier,
	indexer EntryIndexer,
) IntakeService {
	return &intakeService{
		entryRepo:      entryRepo,
		assessmentRepo: assessmentRepo,
		analysis:       analysis,
		repairs:        repairs,
		notifier:       notifier,
		indexer:        indexer,
	}
}

func (s *intakeService) Submit(ctx context.Context, viewer model.Viewer, symptoms []string, notes string) (*SubmissionResult, error) {
	symptoms = NormalizeSymptoms(symptoms)
	if len(symptoms) == 0 {
		return nil, ErrNoSymptoms
	}

	// 1. 写入症状记录
	entry := &model.SymptomEntry{Symptoms: symptoms}
	if notes != "" {
		entry.Notes = &notes
	}
	if err := s.entryRepo.Create(ctx, viewer, entry); err != nil {
		log.Errorf("[IntakeService] 写入症状记录失败, user: %s, error: %v", viewer.UserID, err)
		return nil, fmt.Errorf("%w: %v", ErrEntryNotSaved, err)
	}
	log.Infow("[IntakeService] 症状记录已写入", "entryId", entry.ID, "userId", viewer.UserID, "symptoms", len(symptoms))

	// 2. 调用分析服务；失败时保留已写入的记录
	analysis, err := s.analysis.Analyze(ctx, symptoms)
	if err != nil {
		log.Warnf("[IntakeService] 分析失败，记录 %s 暂无评估: %v", entry.ID, err)
		s.index(ctx, entry, nil)
		return &SubmissionResult{Entry: entry}, err
	}

	result := &SubmissionResult{
		Entry:      entry,
		Prediction: analysis.Prediction,
		Fallback:   analysis.Fallback,
	}

	// 3. 写入评估；失败只记录日志并入队补写，不影响本次响应
	assessment, err := s.SaveAssessment(ctx, viewer, entry, analysis.Prediction)
	if err != nil {
		log.Errorf("[IntakeService] 写入评估失败, entry: %s, error: %v", entry.ID, err)
		s.enqueueRepair(ctx, entry, analysis.Prediction)
		s.index(ctx, entry, nil)
		return result, nil
	}
	result.Assessment = assessment
	result.AssessmentSaved = true
	return result, nil
}

func (s *intakeService) SaveAssessment(ctx context.Context, viewer model.Viewer, entry *model.SymptomEntry, prediction model.Prediction) (*model.RiskAssessment, error) {
	assessment := model.NewRiskAssessment(entry, prediction)
	if err := s.assessmentRepo.Create(ctx, viewer, assessment); err != nil {
		return nil, err
	}
	s.index(ctx, entry, assessment)
	if s.notifier != nil {
		s.notifier.NotifyAssessmentReady(entry.UserID, AssessmentReadyEvent{
			Type:      "assessment_ready",
			EntryID:   entry.ID,
			RiskLevel: assessment.RiskLevel,
			Timestamp: assessment.CreatedAt,
		})
	}
	return assessment, nil
}

func (s *intakeService) enqueueRepair(ctx context.Context, entry *model.SymptomEntry, prediction model.Prediction) {
	if s.repairs == nil {
		return
	}
	task := tasks.AssessmentRepairTask{EntryID: entry.ID, UserID: entry.UserID, Prediction: prediction}
	if err := s.repairs.PublishRepair(ctx, task); err != nil {
		log.Errorf("[IntakeService] 补写任务入队失败, entry: %s, error: %v", entry.ID, err)
	}
}

func (s *intakeService) index(ctx context.Context, entry *model.SymptomEntry, assessment *model.RiskAssessment) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexEntry(ctx, entry, assessment); err != nil {
		log.Warnf("[IntakeService] 索引症状记录失败, entry: %s, error: %v", entry.ID, err)
	}
}
