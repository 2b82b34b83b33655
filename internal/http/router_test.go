package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/polydev-ai/quotaengine/internal/config"
	"github.com/polydev-ai/quotaengine/internal/db"
	"github.com/polydev-ai/quotaengine/internal/engine"
	"github.com/polydev-ai/quotaengine/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	eng := engine.New(conn)
	RegisterRoutes(router, eng, config.JWTConfig{Secret: testSecret})
	return router, eng
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token, errGen := security.GenerateToken(testSecret, userID, "", time.Hour)
	if errGen != nil {
		t.Fatalf("generate user token: %v", errGen)
	}
	return token
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, errGen := security.GenerateAdminToken(testSecret, "admin-1", "root", time.Hour)
	if errGen != nil {
		t.Fatalf("generate admin token: %v", errGen)
	}
	return token
}

func doRequest(router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQuotaEndpointsRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	if rec := doRequest(router, http.MethodGet, "/v0/quota/status", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", rec.Code)
	}
	if rec := doRequest(router, http.MethodGet, "/v0/quota/status", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}
	// A user token must not open admin routes.
	if rec := doRequest(router, http.MethodPost, "/v0/admin/reset", userToken(t, "user-1"), nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("user token on admin route: status = %d", rec.Code)
	}
}

func TestCheckAndDeductFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	token := userToken(t, "user-1")

	// Status provisions the quota row on first sight.
	if rec := doRequest(router, http.MethodGet, "/v0/quota/status", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec := doRequest(router, http.MethodGet, "/v0/quota/check?model=gemini-2.5-flash", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d body=%s", rec.Code, rec.Body.String())
	}
	var check struct {
		Allowed bool `json:"allowed"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &check); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if !check.Allowed {
		t.Fatalf("expected allowed, body=%s", rec.Body.String())
	}

	rec = doRequest(router, http.MethodPost, "/v0/quota/deduct", token, map[string]any{
		"model":         "gemini-2.5-flash",
		"input_tokens":  100,
		"output_tokens": 20,
		"source_type":   "user_key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deduct status = %d body=%s", rec.Code, rec.Body.String())
	}
	var deduct struct {
		ModelTier string `json:"model_tier"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &deduct); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if deduct.ModelTier != "eco" {
		t.Fatalf("tier = %q, want eco", deduct.ModelTier)
	}

	if rec := doRequest(router, http.MethodGet, "/v0/quota/check", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing model: status = %d", rec.Code)
	}
}

func TestAdminBonusLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	admin := adminToken(t)

	rec := doRequest(router, http.MethodPost, "/v0/admin/bonus", admin, map[string]any{
		"user_id":        "user-1",
		"bonus_messages": 40,
		"bonus_type":     "admin_grant",
		"reason":         "beta feedback",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("grant status = %d body=%s", rec.Code, rec.Body.String())
	}

	user := userToken(t, "user-1")
	rec = doRequest(router, http.MethodGet, "/v0/quota/bonus", user, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bonus status = %d", rec.Code)
	}
	var balance struct {
		Available int64 `json:"available"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &balance); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if balance.Available != 40 {
		t.Fatalf("available = %d, want 40", balance.Available)
	}
}

func TestAdminPlanUpdateAndReset(t *testing.T) {
	router, _ := newTestRouter(t)
	admin := adminToken(t)

	rec := doRequest(router, http.MethodPut, "/v0/admin/users/user-1/plan", admin, map[string]any{
		"plan_tier": "pro",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("plan update status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodPost, "/v0/admin/users/user-1/reset", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodPut, "/v0/admin/users/user-1/plan", admin, map[string]any{
		"plan_tier": "galactic",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad plan status = %d", rec.Code)
	}
}
