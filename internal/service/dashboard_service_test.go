package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func strPtr(s string) *string { return &s }

func TestBuildExportCSV(t *testing.T) {
	day := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	entries := []model.SymptomEntry{
		{ID: "e1", Symptoms: datatypes.JSONSlice[string]{"Fever", "Cough"}, Notes: strPtr(`said "ouch"`), CreatedAt: day},
		{ID: "e2", Symptoms: datatypes.JSONSlice[string]{"Headache"}, CreatedAt: day.Add(-24 * time.Hour)},
	}
	assessments := []model.RiskAssessment{
		{ID: "a1", SymptomEntryID: "e1", RiskLevel: model.RiskLow, CreatedAt: day},
		{ID: "a2", SymptomEntryID: "e1", RiskLevel: model.RiskHigh, CreatedAt: day.Add(time.Minute)},
	}

	got := string(BuildExportCSV(entries, assessments))
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Symptoms,Risk Level,Notes", lines[0])
	assert.Equal(t, `2025-03-14,"Fever, Cough",high,"said ""ouch"""`, lines[1])
	assert.Equal(t, `2025-03-13,"Headache",N/A,""`, lines[2])
}

func TestBuildExportCSV_Empty(t *testing.T) {
	assert.Equal(t, "Date,Symptoms,Risk Level,Notes", string(BuildExportCSV(nil, nil)))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "symptom-history-2025-01-02.csv", ExportFilename(time.Date(2025, 1, 2, 23, 0, 0, 0, time.UTC)))
}

type memoryStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (m *memoryStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if m.objects == nil {
		m.objects, m.types = map[string][]byte{}, map[string]string{}
	}
	m.objects[name] = data
	m.types[name] = contentType
	return nil
}

func (m *memoryStore) PresignedURL(ctx context.Context, name string, expiry time.Duration) (string, error) {
	return "https://storage.test/" + name, nil
}

func seedDashboard(t *testing.T) (DashboardService, *memoryStore, model.Viewer, model.Viewer) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	alice := testutil.CreateUser(t, db, "alice", model.RolePatient)
	bob := testutil.CreateUser(t, db, "bob", model.RolePatient)
	entryRepo := repository.NewSymptomEntryRepository(db)
	assessmentRepo := repository.NewRiskAssessmentRepository(db)
	ctx := context.Background()

	e1 := &model.SymptomEntry{Symptoms: datatypes.JSONSlice[string]{"Fever"}}
	require.NoError(t, entryRepo.Create(ctx, alice, e1))
	e2 := &model.SymptomEntry{Symptoms: datatypes.JSONSlice[string]{"Cough"}}
	require.NoError(t, entryRepo.Create(ctx, alice, e2))
	require.NoError(t, assessmentRepo.Create(ctx, alice, model.NewRiskAssessment(e1, FallbackPrediction())))

	other := &model.SymptomEntry{Symptoms: datatypes.JSONSlice[string]{"Rash"}}
	require.NoError(t, entryRepo.Create(ctx, bob, other))

	store := &memoryStore{}
	svc := NewDashboardService(entryRepo, assessmentRepo, store)
	svc.(*dashboardService).now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, alice, bob
}

func TestDashboardLoad(t *testing.T) {
	svc, _, alice, _ := seedDashboard(t)

	d, err := svc.Load(context.Background(), alice)
	require.NoError(t, err)
	assert.Len(t, d.Entries, 2)
	assert.Len(t, d.Assessments, 1)
	assert.Equal(t, DashboardSummary{
		TotalEntries: 2,
		ByRiskLevel:  map[string]int{model.RiskLow: 0, model.RiskMedium: 1, model.RiskHigh: 0},
		Unassessed:   1,
	}, d.Summary)
}

func TestDashboardExportAndArchive(t *testing.T) {
	svc, store, alice, _ := seedDashboard(t)
	ctx := context.Background()

	file, err := svc.Export(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "symptom-history-2025-06-01.csv", file.Filename)
	content := string(file.Content)
	assert.Equal(t, 3, len(strings.Split(content, "\n")))
	assert.Contains(t, content, `"Fever",medium`)
	assert.Contains(t, content, `"Cough",N/A`)
	assert.NotContains(t, content, "Rash")

	archived, err := svc.Archive(ctx, alice)
	require.NoError(t, err)
	object := "exports/" + alice.UserID + "/symptom-history-2025-06-01.csv"
	assert.Equal(t, object, archived.Object)
	assert.Equal(t, "https://storage.test/"+object, archived.URL)
	assert.Equal(t, file.Content, store.objects[object])
	assert.Equal(t, "text/csv", store.types[object])
}
