// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"fmt"

	"healthtrack-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 接口定义了身份记录的持久化操作。
// users 表不受行级安全约束，注册与登录在身份确立之前执行。
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// CreateWithProfile 在同一事务中写入身份记录和指定角色的档案，任一步失败整体回滚。
	CreateWithProfile(ctx context.Context, user *model.User, role string) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建一个新的 UserRepository 实例。
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 写入身份记录；Postgres 上的触发器会同时创建 patient 档案。
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User, role string) error {
	if !model.ValidRole(role) {
		return fmt.Errorf("非法角色: %q", role)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		// Postgres 上触发器已经创建了 patient 档案，upsert 覆盖角色
		profile := &model.Profile{UserID: user.ID, Role: role, DisplayName: user.Username}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).Create(profile).Error
	})
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *userRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	return r.findOne(ctx, "id = ?", userID)
}

func (r *userRepository) findOne(ctx context.Context, cond string, arg string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
