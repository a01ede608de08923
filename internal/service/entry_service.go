package service

import (
	"context"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/pkg/log"
)

// EntryDetail 是一条记录及其全部评估（最近的在前）。
type EntryDetail struct {
	Entry       *model.SymptomEntry    `json:"entry"`
	Assessments []model.RiskAssessment `json:"assessments"`
}

// EntryService 提供症状记录的查询、删除与检索。
type EntryService interface {
	List(ctx context.Context, viewer model.Viewer) ([]model.SymptomEntry, error)
	Get(ctx context.Context, viewer model.Viewer, id string) (*EntryDetail, error)
	Delete(ctx context.Context, viewer model.Viewer, id string) error
	Search(ctx context.Context, viewer model.Viewer, query string, size int) ([]model.SearchResponseDTO, error)
}

// EntrySearcher 在索引中检索某个用户的记录。
type EntrySearcher interface {
	Search(ctx context.Context, userID, query string, size int) ([]model.SearchResponseDTO, error)
}

type entryService struct {
	entryRepo      repository.SymptomEntryRepository
	assessmentRepo repository.RiskAssessmentRepository
	indexer        EntryIndexer
	searcher       EntrySearcher
}

// NewEntryService 创建一个新的 EntryService 实例。indexer 与 searcher 可为 nil。
func NewEntryService(entryRepo repository.SymptomEntryRepository, assessmentRepo repository.RiskAssessmentRepository, indexer EntryIndexer, searcher EntrySearcher) EntryService {
	return &entryService{
		entryRepo:      entryRepo,
		assessmentRepo: assessmentRepo,
		indexer:        indexer,
		searcher:       searcher,
	}
}

func (s *entryService) List(ctx context.Context, viewer model.Viewer) ([]model.SymptomEntry, error) {
	entries, err := s.entryRepo.ListOwn(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.SymptomEntry{}
	}
	return entries, nil
}

func (s *entryService) Get(ctx context.Context, viewer model.Viewer, id string) (*EntryDetail, error) {
	entry, err := s.entryRepo.FindByID(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	assessments, err := s.assessmentRepo.ListByEntry(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if assessments == nil {
		assessments = []model.RiskAssessment{}
	}
	return &EntryDetail{Entry: entry, Assessments: assessments}, nil
}

// Delete 删除记录（评估随之删除），并尽力从索引中移除。
func (s *entryService) Delete(ctx context.Context, viewer model.Viewer, id string) error {
	if err := s.entryRepo.Delete(ctx, viewer, id); err != nil {
		return err
	}
	if s.indexer != nil {
		if err := s.indexer.DeleteEntry(ctx, id); err != nil {
			log.Warnf("[EntryService] 从索引删除记录失败, entry: %s, error: %v", id, err)
		}
	}
	return nil
}

func (s *entryService) Search(ctx context.Context, viewer model.Viewer, query string, size int) ([]model.SearchResponseDTO, error) {
	if s.searcher == nil {
		return []model.SearchResponseDTO{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	log.Infof("[EntryService] 检索记录, user: %s, query: '%s'", viewer.UserID, query)
	return s.searcher.Search(ctx, viewer.UserID, query, size)
}
