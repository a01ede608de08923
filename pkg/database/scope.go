package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// rlsRole 是执行用户请求时切换到的数据库角色，行级安全策略针对该角色生效。
var rlsRole string

// SetRLSRole 设置会话角色，空字符串表示不切换。
func SetRLSRole(role string) {
	rlsRole = role
}

// WithUser 在一个携带身份上下文的会话中执行 fn。
//
// 在 Postgres 上，fn 运行于一个事务内：事务开始时切换到 rlsRole，并把
// app.current_user_id 设为 userID，两者都只在该事务内有效，连接归还连接池时自动失效。
// 其他方言（例如测试用的 SQLite）没有行级安全，fn 直接在原连接上执行。
func WithUser(ctx context.Context, db *gorm.DB, userID string, fn func(tx *gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db.WithContext(ctx))
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rlsRole != "" {
			if err := tx.Exec("SET LOCAL ROLE " + quoteIdent(rlsRole)).Error; err != nil {
				return fmt.Errorf("failed to set session role: %w", err)
			}
		}
		if err := tx.Exec("SELECT set_config('app.current_user_id', ?, true)", userID).Error; err != nil {
			return fmt.Errorf("failed to set current user: %w", err)
		}
		return fn(tx)
	})
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
