package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"healthtrack-go/internal/middleware"
	"healthtrack-go/internal/model"
	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testViewer = model.Viewer{UserID: "user-1", Role: model.RolePatient}

// asViewer 代替 AuthMiddleware 注入身份。
func asViewer(v model.Viewer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextViewer, v)
		c.Set(middleware.ContextCurrentUser, &service.CurrentUser{
			User:    &model.User{ID: v.UserID, Username: "tester"},
			Profile: &model.Profile{UserID: v.UserID, Role: v.Role},
		})
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type stubAnalysis struct {
	analysis *service.Analysis
	err      error
}

func (s stubAnalysis) Analyze(ctx context.Context, symptoms []string) (*service.Analysis, error) {
	if len(service.NormalizeSymptoms(symptoms)) == 0 {
		return nil, service.ErrNoSymptoms
	}
	return s.analysis, s.err
}

func TestAnalysisHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := model.Prediction{
		Conditions:      []model.Condition{{Name: "Cold", Probability: 70, Explanation: "common"}},
		RiskLevel:       model.RiskLow,
		Recommendations: []string{"Rest"},
		Disclaimer:      service.StandardDisclaimer,
	}

	tests := []struct {
		name         string
		stub         stubAnalysis
		body         string
		wantStatus   int
		wantError    string
		wantFallback bool
	}{
		{"success", stubAnalysis{analysis: &service.Analysis{Prediction: ok}}, `{"symptoms":["Fever"]}`, http.StatusOK, "", false},
		{"fallback", stubAnalysis{analysis: &service.Analysis{Prediction: service.FallbackPrediction(), Fallback: true}}, `{"symptoms":["Fever"]}`, http.StatusOK, "", true},
		{"empty symptoms", stubAnalysis{}, `{"symptoms":[]}`, http.StatusBadRequest, "At least one symptom is required", false},
		{"rate limited", stubAnalysis{err: fmt.Errorf("%w: 429", service.ErrRateLimited)}, `{"symptoms":["Fever"]}`, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", false},
		{"quota", stubAnalysis{err: service.ErrQuotaExhausted}, `{"symptoms":["Fever"]}`, http.StatusPaymentRequired, "AI credits exhausted. Please add credits to continue.", false},
		{"missing key", stubAnalysis{err: service.ErrMissingCredential}, `{"symptoms":["Fever"]}`, http.StatusInternalServerError, "LLM API key is not configured", false},
		{"upstream", stubAnalysis{err: service.ErrUpstream}, `{"symptoms":["Fever"]}`, http.StatusInternalServerError, "AI gateway error", false},
		{"malformed body", stubAnalysis{}, `{`, http.StatusBadRequest, "Invalid request body", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/analyze", NewAnalysisHandler(tt.stub).Analyze)
			w := do(r, http.MethodPost, "/analyze", tt.body)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantError), w.Body.String())
				return
			}
			var got model.Prediction
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.stub.analysis.Prediction, got)
			if tt.wantFallback {
				assert.Equal(t, "true", w.Header().Get(FallbackHeader))
			} else {
				assert.Empty(t, w.Header().Get(FallbackHeader))
			}
		})
	}
}

type stubIntake struct {
	service.IntakeService
	result *service.SubmissionResult
	err    error
	viewer model.Viewer
}

func (s *stubIntake) Submit(ctx context.Context, viewer model.Viewer, symptoms []string, notes string) (*service.SubmissionResult, error) {
	s.viewer = viewer
	return s.result, s.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func TestEntryHandler_Submit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	entry := &model.SymptomEntry{ID: "entry-1", UserID: testViewer.UserID, Symptoms: []string{"Fever", "Cough"}}

	tests := []struct {
		name       string
		stub       *stubIntake
		wantStatus int
		wantEntry  bool
		wantHeader string
	}{
		{"saved", &stubIntake{result: &service.SubmissionResult{Entry: entry, AssessmentSaved: true}}, http.StatusOK, true, ""},
		{"fallback", &stubIntake{result: &service.SubmissionResult{Entry: entry, AssessmentSaved: true, Fallback: true}}, http.StatusOK, true, "true"},
		{"analysis rate limited keeps entry", &stubIntake{result: &service.SubmissionResult{Entry: entry}, err: service.ErrRateLimited}, http.StatusTooManyRequests, true, ""},
		{"analysis quota keeps entry", &stubIntake{result: &service.SubmissionResult{Entry: entry}, err: service.ErrQuotaExhausted}, http.StatusPaymentRequired, true, ""},
		{"entry not saved", &stubIntake{err: fmt.Errorf("%w: db down", service.ErrEntryNotSaved)}, http.StatusInternalServerError, false, ""},
		{"no symptoms", &stubIntake{err: service.ErrNoSymptoms}, http.StatusBadRequest, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/entries", asViewer(testViewer), NewEntryHandler(tt.stub, nil).Submit)
			w := do(r, http.MethodPost, "/entries", `{"symptoms":["Fever","Cough"],"notes":"n"}`)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, testViewer, tt.stub.viewer)
			assert.Equal(t, tt.wantHeader, w.Header().Get(FallbackHeader))

			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, tt.wantStatus, env.Code)
			if tt.wantEntry {
				assert.Contains(t, string(env.Data), `"id":"entry-1"`)
			} else {
				assert.Equal(t, "null", string(env.Data))
			}
		})
	}
}

type stubDashboard struct {
	service.DashboardService
}

func (stubDashboard) Export(ctx context.Context, viewer model.Viewer) (*service.ExportFile, error) {
	if viewer.UserID == "" {
		return nil, errors.New("no viewer")
	}
	return &service.ExportFile{
		Filename: "symptom-history-2025-06-01.csv",
		Content:  []byte("Date,Symptoms,Risk Level,Notes\n2025-06-01,\"Fever\",N/A,\"\""),
	}, nil
}

func TestDashboardHandler_Export(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/export", asViewer(testViewer), NewDashboardHandler(stubDashboard{}).Export)

	w := do(r, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="symptom-history-2025-06-01.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Date,Symptoms,Risk Level,Notes\n"))
}

func TestHandlers_RequireViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/export", NewDashboardHandler(stubDashboard{}).Export)

	w := do(r, http.MethodGet, "/export", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubUsers struct {
	service.UserService
}

func (stubUsers) Authenticate(ctx context.Context, tok string) (*service.CurrentUser, *token.CustomClaims, error) {
	if tok != "good" {
		return nil, nil, errors.New("invalid token")
	}
	return &service.CurrentUser{User: &model.User{ID: testViewer.UserID, Username: "tester"}}, &token.CustomClaims{}, nil
}

func TestNotificationHandler_PushesToOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewNotificationHandler(stubUsers{})
	r := gin.New()
	r.GET("/ws/:token", hub.Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws/good", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(testViewer.UserID) == 1 }, 2*time.Second, 10*time.Millisecond)

	// 其他用户的事件不会推送到该连接
	hub.NotifyAssessmentReady("someone-else", service.AssessmentReadyEvent{Type: "assessment_ready", EntryID: "x"})
	hub.NotifyAssessmentReady(testViewer.UserID, service.AssessmentReadyEvent{
		Type:      "assessment_ready",
		EntryID:   "entry-1",
		RiskLevel: model.RiskHigh,
		Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event service.AssessmentReadyEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "entry-1", event.EntryID)
	assert.Equal(t, model.RiskHigh, event.RiskLevel)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Connections(testViewer.UserID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func (stubUsers) RefreshToken(ctx context.Context, refresh string) (string, string, error) {
	switch refresh {
	case "good-refresh":
		return "new-access", "new-refresh", nil
	case "db-down":
		return "", "", errors.New("connection refused")
	}
	return "", "", fmt.Errorf("%w: token is malformed", service.ErrInvalidRefreshToken)
}

func (stubUsers) Register(ctx context.Context, username, password string) (*model.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, service.ErrInvalidUsername
	}
	return &model.User{ID: "user-2", Username: username}, nil
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/refresh", NewAuthHandler(stubUsers{}).RefreshToken)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid refresh token", `{"refreshToken":"good-refresh"}`, http.StatusOK},
		{"missing field", `{}`, http.StatusBadRequest},
		{"rejected token", `{"refreshToken":"access-token"}`, http.StatusUnauthorized},
		{"store failure", `{"refreshToken":"db-down"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/refresh", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := do(r, http.MethodPost, "/refresh", `{"refreshToken":"good-refresh"}`)
	var resp struct {
		Data struct {
			Token        string `json:"token"`
			RefreshToken string `json:"refreshToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new-access", resp.Data.Token)
	assert.Equal(t, "new-refresh", resp.Data.RefreshToken)
}

func TestUserHandler_RegisterBlankUsername(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", NewUserHandler(stubUsers{}).Register)

	w := do(r, http.MethodPost, "/register", `{"username":"   ","password":"s3cret1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/register", `{"username":"frank","password":"s3cret1"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
