package service

import (
	"context"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
)

// Page 是分页列表的通用响应结构。
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// normalizePage 将页码与每页大小限制在合法范围内，与仓储的分页规则一致。
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}

func newPage[T any](content []T, total int64, page, size int) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}
}

// AdminService 接口定义了管理员的只读视图，依赖数据库中管理员可读全部行的策略。
type AdminService interface {
	ListProfiles(ctx context.Context, viewer model.Viewer, page, size int) (*Page[model.Profile], error)
	ListEntries(ctx context.Context, viewer model.Viewer, page, size int) (*Page[model.SymptomEntry], error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	profileRepo repository.ProfileRepository
	entryRepo   repository.SymptomEntryRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(profileRepo repository.ProfileRepository, entryRepo repository.SymptomEntryRepository) AdminService {
	return &adminService{profileRepo: profileRepo, entryRepo: entryRepo}
}

func (s *adminService) ListProfiles(ctx context.Context, viewer model.Viewer, page, size int) (*Page[model.Profile], error) {
	page, size = normalizePage(page, size)
	profiles, total, err := s.profileRepo.List(ctx, viewer, page, size)
	if err != nil {
		return nil, err
	}
	return newPage(profiles, total, page, size), nil
}

func (s *adminService) ListEntries(ctx context.Context, viewer model.Viewer, page, size int) (*Page[model.SymptomEntry], error) {
	page, size = normalizePage(page, size)
	entries, total, err := s.entryRepo.ListVisible(ctx, viewer, page, size)
	if err != nil {
		return nil, err
	}
	return newPage(entries, total, page, size), nil
}
