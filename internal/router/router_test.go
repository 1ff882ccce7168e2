package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/handler"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupTestServer(t *testing.T) (*gin.Engine, *handler.API, func()) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Habit{}, &db.HabitLog{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	cfg := config.AppConfig{
		JWTSecret:     "router-test-secret",
		GinMode:       gin.TestMode,
		AppEnv:        "test",
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: "https://example.com/v1",
		OpenAIModel:   "gpt-3.5-turbo",
	}
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := handler.NewAPI(cfg, gdb, discard)

	return SetupRouter(api, cfg, discard), api, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, payload any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, decoded
}

func registerAndLogin(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()

	w, resp := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "测试用户",
		"email":    email,
		"password": "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("register response missing token")
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	w, resp := doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp["status"] != "OK" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	w, _ := doJSON(t, r, http.MethodGet, "/api/habits", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/habits", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

// 核心链路：注册 → 建习惯 → 打卡 → 统计 → 撤销
func TestHabitLifecycleOverHTTP(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	token := registerAndLogin(t, r, "flow@example.com")

	// 建习惯
	w, resp := doJSON(t, r, http.MethodPost, "/api/habits", token, map[string]any{
		"name":           "晨跑",
		"category":       "HEALTH",
		"icon":           "🏃",
		"color":          "#22c55e",
		"scheduled_time": "07:30",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create habit: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	habit, _ := resp["habit"].(map[string]any)
	habitID, _ := habit["id"].(string)
	if habitID == "" {
		t.Fatal("create habit response missing id")
	}
	if habit["current_streak"].(float64) != 0 {
		t.Fatalf("new habit should start with zero streak, got %v", habit["current_streak"])
	}

	// 今天打卡
	w, resp = doJSON(t, r, http.MethodPost, "/api/habits/"+habitID+"/logs", token, map[string]any{
		"status": "COMPLETED",
		"notes":  "跑了 5 公里",
		"mood":   4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("log completion: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	logged, _ := resp["habit_log"].(map[string]any)
	if logged["status"] != db.StatusCompleted {
		t.Fatalf("unexpected log status: %v", logged["status"])
	}

	// 同一天重复打卡是覆盖，不会出现第二条记录
	w, _ = doJSON(t, r, http.MethodPost, "/api/habits/"+habitID+"/logs", token, map[string]any{
		"status": "COMPLETED",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("re-log completion: expected 200, got %d", w.Code)
	}
	var count int64
	if err := db.DB.Model(&db.HabitLog{}).Where("habit_id = ?", habitID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count logs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 log row, got %d", count)
	}

	// 统计应反映 1 次完成
	w, resp = doJSON(t, r, http.MethodGet, "/api/habits/"+habitID+"/stats?day=7", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	stats, _ := resp["stats"].(map[string]any)
	if stats["completed_count"].(float64) != 1 {
		t.Fatalf("expected completed_count 1, got %v", stats["completed_count"])
	}
	if stats["completion_rate"].(float64) != 100 {
		t.Fatalf("expected completion_rate 100, got %v", stats["completion_rate"])
	}

	// 热力图覆盖今天
	w, resp = doJSON(t, r, http.MethodGet, "/api/habits/"+habitID+"/heatmap?day=30", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("heatmap: expected 200, got %d", w.Code)
	}
	heatmap, _ := resp["heatmap"].(map[string]any)
	days, _ := heatmap["days"].(map[string]any)
	if len(days) != 1 {
		t.Fatalf("expected 1 heatmap cell, got %d", len(days))
	}

	// 撤销后连胜计数归零
	w, _ = doJSON(t, r, http.MethodPost, "/api/habits/"+habitID+"/cancel", token, map[string]any{
		"reason": "记错了",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w, resp = doJSON(t, r, http.MethodGet, "/api/habits/"+habitID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get habit: expected 200, got %d", w.Code)
	}
	habit, _ = resp["habit"].(map[string]any)
	if habit["current_streak"].(float64) != 0 || habit["total_completions"].(float64) != 0 {
		t.Fatalf("expected counters reverted after cancel, got streak=%v total=%v",
			habit["current_streak"], habit["total_completions"])
	}

	// 没有可撤销的记录时再次撤销
	w, _ = doJSON(t, r, http.MethodPost, "/api/habits/"+habitID+"/cancel", token, map[string]any{})
	if w.Code != http.StatusNotFound {
		t.Fatalf("second cancel: expected 404, got %d", w.Code)
	}
}

func TestHabitOwnershipIsolation(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	owner := registerAndLogin(t, r, "owner@example.com")
	intruder := registerAndLogin(t, r, "intruder@example.com")

	w, resp := doJSON(t, r, http.MethodPost, "/api/habits", owner, map[string]any{
		"name": "早睡",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create habit: expected 201, got %d", w.Code)
	}
	habit, _ := resp["habit"].(map[string]any)
	habitID, _ := habit["id"].(string)

	// 他人访问一律 404，不暴露资源存在性
	probes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/habits/" + habitID, nil},
		{http.MethodPost, "/api/habits/" + habitID + "/logs", map[string]any{"status": "COMPLETED"}},
		{http.MethodGet, "/api/habits/" + habitID + "/stats", nil},
	}
	for _, probe := range probes {
		w, _ := doJSON(t, r, probe.method, probe.path, intruder, probe.body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404 for foreign user, got %d", probe.method, probe.path, w.Code)
		}
	}

	// 列表互不可见
	w, resp = doJSON(t, r, http.MethodGet, "/api/habits", intruder, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list habits: expected 200, got %d", w.Code)
	}
	habits, _ := resp["habits"].([]any)
	if len(habits) != 0 {
		t.Fatalf("expected empty list for intruder, got %d", len(habits))
	}
}

func TestCreateHabitValidation(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	token := registerAndLogin(t, r, "valid@example.com")

	cases := []map[string]any{
		{"name": ""},
		{"name": "喝水", "category": "INVALID"},
		{"name": "喝水", "scheduled_time": "25:00"},
		{"name": "喝水", "color": "green"},
	}
	for i, payload := range cases {
		w, _ := doJSON(t, r, http.MethodPost, "/api/habits", token, payload)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d (%s)", i, w.Code, w.Body.String())
		}
	}
}

func TestDuplicateEmailConflict(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	registerAndLogin(t, r, "dup@example.com")

	w, _ := doJSON(t, r, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "测试用户",
		"email":    "DUP@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", w.Code)
	}
}

type stubChatDoer struct {
	status int
	body   string
}

func (s *stubChatDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(s.body))),
		Header:     make(http.Header),
	}, nil
}

func TestGeneratePlanRoute(t *testing.T) {
	r, api, cleanup := setupTestServer(t)
	defer cleanup()

	token := registerAndLogin(t, r, "planner@example.com")

	completion := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{
				"role":    "assistant",
				"content": `[{"time":"08:00","activity":"晨跑"}]`,
			}},
		},
	}
	body, _ := json.Marshal(completion)
	api.Planner().SetHTTPClient(&stubChatDoer{status: http.StatusOK, body: string(body)})

	w, resp := doJSON(t, r, http.MethodPost, "/api/ai", token, map[string]any{
		"prompt": "帮我安排高效的一天",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	result, _ := resp["result"].([]any)
	if len(result) != 1 {
		t.Fatalf("expected 1 plan item, got %d", len(result))
	}

	// 未认证直接拒绝
	w, _ = doJSON(t, r, http.MethodPost, "/api/ai", "", map[string]any{"prompt": "安排一天"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestStatsDayQueryClamped(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	token := registerAndLogin(t, r, "clamp@example.com")

	w, resp := doJSON(t, r, http.MethodPost, "/api/habits", token, map[string]any{"name": "阅读"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create habit: expected 201, got %d", w.Code)
	}
	habit, _ := resp["habit"].(map[string]any)
	habitID, _ := habit["id"].(string)

	w, resp = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/habits/%s/stats?day=9999", habitID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	period, _ := resp["period"].(map[string]any)
	if period["days"].(float64) != 365 {
		t.Fatalf("expected day query clamped to 365, got %v", period["days"])
	}
}
