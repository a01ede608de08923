package repository

import (
	"healthtrack-go/internal/model"

	"gorm.io/gorm"
)

// visibleTo 与数据库中的 SELECT 策略一致：管理员可见全部行，其他人只可见自己的行。
// Postgres 上策略本身已生效，此处让不支持行级安全的方言得到相同结果。
func visibleTo(v model.Viewer) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if v.IsAdmin() {
			return db
		}
		return db.Where("user_id = ?", v.UserID)
	}
}

// ownedBy 只保留 viewer 自己的行，用于写操作和个人视图。
func ownedBy(v model.Viewer) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", v.UserID)
	}
}

// paginate 将页码（从 1 开始）和每页大小转换为 offset/limit。
func paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}
