package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/pkg/log"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// exportRiskNA 是没有匹配评估的记录在导出中的风险等级。
const exportRiskNA = "N/A"

// ObjectStore 是导出归档使用的对象存储。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// DashboardSummary 汇总各风险等级的记录数量。
type DashboardSummary struct {
	TotalEntries int            `json:"totalEntries"`
	ByRiskLevel  map[string]int `json:"byRiskLevel"`
	Unassessed   int            `json:"unassessed"`
}

// Dashboard 是仪表盘视图的数据：两组独立读取的结果和汇总。
type Dashboard struct {
	Entries     []model.SymptomEntry   `json:"entries"`
	Assessments []model.RiskAssessment `json:"assessments"`
	Summary     DashboardSummary       `json:"summary"`
}

// ExportFile 是一次 CSV 导出。
type ExportFile struct {
	Filename string
	Content  []byte
}

// ArchivedExport 是已上传到对象存储的导出。
type ArchivedExport struct {
	Filename  string    `json:"filename"`
	Object    string    `json:"object"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DashboardService 提供仪表盘读取与历史导出。
type DashboardService interface {
	Load(ctx context.Context, viewer model.Viewer) (*Dashboard, error)
	Export(ctx context.Context, viewer model.Viewer) (*ExportFile, error)
	Archive(ctx context.Context, viewer model.Viewer) (*ArchivedExport, error)
}

type dashboardService struct {
	entryRepo      repository.SymptomEntryRepository
	assessmentRepo repository.RiskAssessmentRepository
	store          ObjectStore
	now            func() time.Time
}

// NewDashboardService 创建一个新的 DashboardService 实例。store 为 nil 时不支持归档。
func NewDashboardService(entryRepo repository.SymptomEntryRepository, assessmentRepo repository.RiskAssessmentRepository, store ObjectStore) DashboardService {
	return &dashboardService{
		entryRepo:      entryRepo,
		assessmentRepo: assessmentRepo,
		store:          store,
		now:            time.Now,
	}
}

// Load 并发读取记录和评估，两者都完成后再汇总。
func (s *dashboardService) Load(ctx context.Context, viewer model.Viewer) (*Dashboard, error) {
	var entries []model.SymptomEntry
	var assessments []model.RiskAssessment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.entryRepo.ListOwn(gctx, viewer)
		return err
	})
	g.Go(func() error {
		var err error
		assessments, err = s.assessmentRepo.ListOwn(gctx, viewer)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Errorf("[DashboardService] 读取仪表盘数据失败, user: %s, error: %v", viewer.UserID, err)
		return nil, err
	}

	if entries == nil {
		entries = []model.SymptomEntry{}
	}
	if assessments == nil {
		assessments = []model.RiskAssessment{}
	}
	return &Dashboard{
		Entries:     entries,
		Assessments: assessments,
		Summary:     summarize(entries, assessments),
	}, nil
}

func summarize(entries []model.SymptomEntry, assessments []model.RiskAssessment) DashboardSummary {
	latest := latestAssessments(assessments)
	summary := DashboardSummary{
		TotalEntries: len(entries),
		ByRiskLevel:  map[string]int{model.RiskLow: 0, model.RiskMedium: 0, model.RiskHigh: 0},
	}
	for _, e := range entries {
		if a, ok := latest[e.ID]; ok {
			summary.ByRiskLevel[a.RiskLevel]++
		} else {
			summary.Unassessed++
		}
	}
	return summary
}

// latestAssessments 按记录 ID 取最近一次评估。
func latestAssessments(assessments []model.RiskAssessment) map[string]model.RiskAssessment {
	grouped := lo.GroupBy(assessments, func(a model.RiskAssessment) string { return a.SymptomEntryID })
	return lo.MapValues(grouped, func(group []model.RiskAssessment, _ string) model.RiskAssessment {
		return lo.MaxBy(group, func(a, b model.RiskAssessment) bool { return a.CreatedAt.After(b.CreatedAt) })
	})
}

func (s *dashboardService) Export(ctx context.Context, viewer model.Viewer) (*ExportFile, error) {
	d, err := s.Load(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename: ExportFilename(s.now()),
		Content:  BuildExportCSV(d.Entries, d.Assessments),
	}, nil
}

// Archive 将导出上传到对象存储，返回 1 小时有效的下载链接。
func (s *dashboardService) Archive(ctx context.Context, viewer model.Viewer) (*ArchivedExport, error) {
	if s.store == nil {
		return nil, fmt.Errorf("export archive is not configured")
	}
	file, err := s.Export(ctx, viewer)
	if err != nil {
		return nil, err
	}
	object := fmt.Sprintf("exports/%s/%s", viewer.UserID, file.Filename)
	if err := s.store.Put(ctx, object, file.Content, "text/csv"); err != nil {
		return nil, err
	}
	const expiry = time.Hour
	url, err := s.store.PresignedURL(ctx, object, expiry)
	if err != nil {
		return nil, err
	}
	return &ArchivedExport{
		Filename:  file.Filename,
		Object:    object,
		URL:       url,
		ExpiresAt: s.now().Add(expiry),
	}, nil
}

// ExportFilename 返回导出文件名，包含当天日期。
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("symptom-history-%s.csv", model.FormatDate(now))
}

// BuildExportCSV 生成导出内容：每条记录一行，Symptoms 与 Notes 始终加引号，
// 没有匹配评估的记录风险等级为 N/A。
func BuildExportCSV(entries []model.SymptomEntry, assessments []model.RiskAssessment) []byte {
	latest := latestAssessments(assessments)
	rows := lo.Map(entries, func(e model.SymptomEntry, _ int) string {
		risk := exportRiskNA
		if a, ok := latest[e.ID]; ok {
			risk = a.RiskLevel
		}
		return strings.Join([]string{
			model.FormatDate(e.CreatedAt),
			quoteField(strings.Join([]string(e.Symptoms), ", ")),
			risk,
			quoteField(e.NotesText()),
		}, ",")
	})

	var buf bytes.Buffer
	buf.WriteString("Date,Symptoms,Risk Level,Notes")
	for _, row := range rows {
		buf.WriteByte('\n')
		buf.WriteString(row)
	}
	return buf.Bytes()
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
