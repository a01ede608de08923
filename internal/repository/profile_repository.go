package repository

import (
	"context"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/database"

	"gorm.io/gorm"
)

// ProfileRepository 接口定义了用户档案的持久化操作。
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	UpdateDisplayName(ctx context.Context, viewer model.Viewer, displayName string) (*model.Profile, error)
	List(ctx context.Context, viewer model.Viewer, page, size int) ([]model.Profile, int64, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) UpdateDisplayName(ctx context.Context, viewer model.Viewer, displayName string) (*model.Profile, error) {
	var profile model.Profile
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		res := tx.Model(&model.Profile{}).Scopes(ownedBy(viewer)).Update("display_name", displayName)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Scopes(ownedBy(viewer)).First(&profile).Error
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, viewer model.Viewer, page, size int) ([]model.Profile, int64, error) {
	var profiles []model.Profile
	var total int64
	err := database.WithUser(ctx, r.db, viewer.UserID, func(tx *gorm.DB) error {
		if err := tx.Model(&model.Profile{}).Scopes(visibleTo(viewer)).Count(&total).Error; err != nil {
			return err
		}
		return tx.Scopes(visibleTo(viewer), paginate(page, size)).
			Order("created_at DESC").
			Find(&profiles).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}
