package repository

import (
	"context"
	"testing"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 这些测试在真实 Postgres 上验证行级安全策略本身，仓储的查询条件不参与判断。
func TestRowLevelSecurity_Postgres(t *testing.T) {
	pg := testutil.GetPostgresDB(t)
	ctx := context.Background()
	db := pg.DB
	repo := NewSymptomEntryRepository(db)
	profiles := NewProfileRepository(db)

	suffix := uuid.NewString()[:8]
	alice := testutil.CreateUser(t, db, "alice-"+suffix, model.RolePatient)
	bob := testutil.CreateUser(t, db, "bob-"+suffix, model.RolePatient)
	admin := testutil.CreateUser(t, db, "admin-"+suffix, model.RoleAdmin)

	entry := &model.SymptomEntry{Symptoms: []string{"Fever", "Cough"}}
	require.NoError(t, repo.Create(ctx, alice, entry))

	t.Run("profile created by trigger", func(t *testing.T) {
		p, err := profiles.FindByUserID(ctx, alice.UserID)
		require.NoError(t, err)
		assert.Equal(t, model.RolePatient, p.Role)
	})

	t.Run("patient reads zero rows of another user", func(t *testing.T) {
		// 以管理员身份的查询条件绕过仓储过滤，只剩数据库策略
		bypass := model.Viewer{UserID: bob.UserID, Role: model.RoleAdmin}
		rows, _, err := repo.ListVisible(ctx, bypass, 1, 100)
		require.NoError(t, err)
		for _, r := range rows {
			assert.Equal(t, bob.UserID, r.UserID)
		}
		assert.NotContains(t, entryIDs(rows), entry.ID)
	})

	t.Run("admin reads all rows", func(t *testing.T) {
		rows, _, err := repo.ListVisible(ctx, admin, 1, 100)
		require.NoError(t, err)
		assert.Contains(t, entryIDs(rows), entry.ID)
	})

	t.Run("insert for another owner is rejected", func(t *testing.T) {
		assessments := NewRiskAssessmentRepository(db)
		// 评估归属 alice，但写入身份是 bob
		err := assessments.Create(ctx, bob, model.NewRiskAssessment(entry, model.Prediction{RiskLevel: model.RiskHigh}))
		assert.Error(t, err, "assessment owner must match the inserting identity")
	})

	t.Run("updated_at stamped by trigger", func(t *testing.T) {
		before, err := profiles.FindByUserID(ctx, alice.UserID)
		require.NoError(t, err)
		updated, err := profiles.UpdateDisplayName(ctx, alice, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice", updated.DisplayName)
		assert.False(t, updated.UpdatedAt.Before(before.UpdatedAt))
	})
}

func entryIDs(entries []model.SymptomEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
