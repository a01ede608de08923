package repository

import (
	"context"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/database"

	"gorm.io/gorm"
)

// SymptomEntryRepository 接口定义了症状记录的持久化操作。
// 所有方法都在 viewer 的身份上下文中执行，受行级安全策略约束。
type SymptomEntryRepository interface {
	Create(ctx context.Context, viewer model.Viewer, entry *model.SymptomEntry) error
	FindByID(ctx context.Context, viewer model.Viewer, id string) (*model.SymptomEntry, error)
	// ListOwn 返回 viewer 自己的记录，按创建时间倒序。
	ListOwn(ctx context.Context, viewer model.Viewer) ([]model.SymptomEntry, error)
	// ListVisible 返回 viewer 可见的全部记录（管理员为所有用户的记录）。
	ListVisible(ctx context.Context, viewer model.Viewer, page, size int) ([]model.SymptomEntry, int64, error)
	// Delete 删除 viewer 自己的记录及其评估。
	Delete(ctx context.Context, viewer model.Viewer, id string) error
}

type symptomEntryRepository struct {
	db *gorm.DB
}

// NewSymptomEntryRepository 创建一个新的 SymptomEntryRepository 实例。
func NewSymptomEntryRepository(db *gorm.DB) SymptomEntryRepository {
	return &symptomEntryRepository{db: db}
}

func (r *symptomEntryRepository) Create(ctx context.Context, viewer model.Viewer, entry *model.SymptomEntry) error {
	entry.UserID = viewer.UserID
	return database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

func (r *symptomEntryRepository) FindByID(ctx context.Context, viewer model.Viewer, id string) (*model.SymptomEntry, error) {
	var entry model.SymptomEntry
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Scopes(visibleTo(viewer)).Where("id = ?", id).First(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *symptomEntryRepository) ListOwn(ctx context.Context, viewer model.Viewer) ([]model.SymptomEntry, error) {
	var entries []model.SymptomEntry
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Scopes(ownedBy(viewer)).Order("created_at DESC").Find(&entries).Error
	})
	return entries, err
}

func (r *symptomEntryRepository) ListVisible(ctx context.Context, viewer model.Viewer, page, size int) ([]model.SymptomEntry, int64, error) {
	var entries []model.SymptomEntry
	var total int64
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		if err := tx.Model(&model.SymptomEntry{}).Scopes(visibleTo(viewer)).Count(&total).Error; err != nil {
			return err
		}
		return tx.Scopes(visibleTo(viewer), paginate(page, size)).
			Order("created_at DESC").
			Find(&entries).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *symptomEntryRepository) Delete(ctx context.Context, viewer model.Viewer, id string) error {
	return database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			// 外键已声明级联删除，这里显式删除以兼容未启用外键约束的方言
			if err := tx.Scopes(ownedBy(viewer)).
				Where("symptom_entry_id = ?", id).
				Delete(&model.RiskAssessment{}).Error; err != nil {
				return err
			}
			res := tx.Scopes(ownedBy(viewer)).Where("id = ?", id).Delete(&model.SymptomEntry{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return nil
		})
	})
}
