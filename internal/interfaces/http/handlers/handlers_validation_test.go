package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/middleware"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("development")
	os.Exit(m.Run())
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v", err)
	}
	if env.Error == nil {
		t.Fatal("expected an error envelope")
	}
	return env.Error.Code
}

func TestAuthHandler_ValidationBranches(t *testing.T) {
	h := NewAuthHandler(nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/oauth", h.OAuthSignIn)
	r.POST("/auth/verify-email", h.VerifyEmail)
	r.POST("/auth/reset-password", h.RequestPasswordReset)
	r.POST("/auth/reset-password/confirm", h.ConfirmPasswordReset)
	r.GET("/auth/profile", h.GetProfile)

	for _, tc := range []struct {
		name string
		path string
		body string
	}{
		{"register malformed json", "/auth/register", "{"},
		{"register missing fields", "/auth/register", `{"email":"a@b.com"}`},
		{"register bad email", "/auth/register", `{"email":"nope","password":"longenough1","name":"A"}`},
		{"login missing password", "/auth/login", `{"email":"a@b.com"}`},
		{"oauth missing provider", "/auth/oauth", `{"oauthId":"x","email":"a@b.com","name":"A"}`},
		{"verify missing token", "/auth/verify-email", `{}`},
		{"reset invalid email", "/auth/reset-password", `{"email":"not-an-email"}`},
		{"confirm missing token", "/auth/reset-password/confirm", `{"newPassword":"longenough1"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(r, tc.path, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if code := errCode(t, w); code != domainerrors.CodeValidationError {
				t.Fatalf("expected VALIDATION_ERROR, got %s", code)
			}
		})
	}

	// Profile without a session rejects before touching the usecase.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for sessionless profile, got %d", w.Code)
	}
}

func TestProjectHandler_RequiresSession(t *testing.T) {
	h := NewProjectHandler(nil)
	r := gin.New()
	r.POST("/projects", h.Create)
	r.GET("/projects", h.List)
	r.DELETE("/projects/:projectId", h.Delete)

	w := postJSON(r, "/projects", `{"name":"Acme"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errCode(t, w); code != domainerrors.CodeInvalidToken {
		t.Fatalf("expected INVALID_TOKEN, got %s", code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/projects/proj_1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestProjectHandler_CreateValidation(t *testing.T) {
	h := NewProjectHandler(nil)
	r := gin.New()
	sessioned := func(c *gin.Context) {
		c.Set(middleware.UserKey, &entities.User{ID: "user_1", Status: entities.UserStatusActive})
		c.Next()
	}
	r.POST("/projects", sessioned, h.Create)
	r.POST("/projects/:projectId/members", sessioned, h.InviteMember)

	if w := postJSON(r, "/projects", "{"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	if w := postJSON(r, "/projects", `{"chains":["ethereum"]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}
	if w := postJSON(r, "/projects/proj_1/members", `{"email":"a@b.com"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing role, got %d", w.Code)
	}
}

func TestAPIKeyHandler_ValidationBranches(t *testing.T) {
	h := NewAPIKeyHandler(nil, nil)
	r := gin.New()
	sessioned := func(c *gin.Context) {
		c.Set(middleware.UserKey, &entities.User{ID: "user_1", Status: entities.UserStatusActive})
		c.Next()
	}
	r.POST("/projects/:projectId/api-keys", sessioned, h.Create)
	r.PUT("/projects/:projectId/api-keys/:keyId/allowlist", sessioned, h.UpdateAllowlist)

	// No session at all.
	bare := gin.New()
	bare.POST("/projects/:projectId/api-keys", h.Create)
	if w := postJSON(bare, "/projects/proj_1/api-keys", `{"name":"x","type":"dev"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", w.Code)
	}

	if w := postJSON(r, "/projects/proj_1/api-keys", `{"type":"dev"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/projects/proj_1/api-keys/key_1/allowlist", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed allowlist payload, got %d", w.Code)
	}
}

func TestWalletHandler_ValidationBranches(t *testing.T) {
	h := NewWalletHandler(nil)
	r := gin.New()
	scoped := func(c *gin.Context) {
		c.Set(middleware.ProjectKey, &entities.Project{
			ID: "proj_1", Status: entities.ProjectStatusActive,
			Chains: []entities.Chain{entities.ChainEthereum},
		})
		c.Next()
	}
	r.POST("/projects/:projectId/wallets/create", scoped, h.Create)
	r.POST("/projects/:projectId/wallets/deploy", scoped, h.Deploy)

	// Without resolved project context every wallet route rejects.
	bare := gin.New()
	bare.POST("/projects/:projectId/wallets/create", h.Create)
	if w := postJSON(bare, "/projects/proj_1/wallets/create", `{}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without project context, got %d", w.Code)
	}

	if w := postJSON(r, "/projects/proj_1/wallets/create", `{"socialId":"a@b.com"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing socialType/chains, got %d", w.Code)
	}
	if w := postJSON(r, "/projects/proj_1/wallets/create", `{"socialId":"a@b.com","socialType":"email","chains":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty chains, got %d", w.Code)
	}
	if w := postJSON(r, "/projects/proj_1/wallets/deploy", `{"chains":["ethereum"]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing walletId, got %d", w.Code)
	}
}

func TestPaymasterHandler_FundValidation(t *testing.T) {
	h := NewPaymasterHandler(nil, nil)
	r := gin.New()
	scoped := func(c *gin.Context) {
		c.Set(middleware.ProjectKey, &entities.Project{ID: "proj_1", Status: entities.ProjectStatusActive})
		c.Next()
	}
	r.POST("/projects/:projectId/paymaster/fund", scoped, h.Fund)

	if w := postJSON(r, "/projects/proj_1/paymaster/fund", `{"chain":"ethereum"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing method, got %d", w.Code)
	}
}

func TestAnalyticsHandler_TimeRangeValidation(t *testing.T) {
	h := NewAnalyticsHandler(nil, nil)
	r := gin.New()
	scoped := func(c *gin.Context) {
		c.Set(middleware.ProjectKey, &entities.Project{ID: "proj_1", Status: entities.ProjectStatusActive})
		c.Next()
	}
	r.GET("/projects/:projectId/analytics/transactions", scoped, h.Transactions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/projects/proj_1/analytics/transactions?from=yesterday", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-ISO from, got %d", w.Code)
	}
	if code := errCode(t, w); code != domainerrors.CodeValidationError {
		t.Fatalf("expected VALIDATION_ERROR, got %s", code)
	}
}
