package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/config"
	"github.com/qs3c/subhub/internal/api/handler"
	"github.com/qs3c/subhub/internal/model"
	"github.com/qs3c/subhub/internal/pkg/jwt"
	"github.com/qs3c/subhub/internal/pkg/response"
	"github.com/qs3c/subhub/internal/repository"
	"github.com/qs3c/subhub/internal/service"
	"github.com/qs3c/subhub/internal/testutil"
)

const testSecret = "router-test-secret"

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		JWT:    config.JWTConfig{Secret: testSecret, ExpireHours: 1},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	// 这里只验证路由和鉴权，其余 handler 的服务留空
	r := NewRouter(
		handler.NewUserHandler(nil),
		handler.NewSubscriptionHandler(nil, nil),
		handler.NewRedemptionHandler(nil),
		handler.NewExclusiveHandler(nil),
		handler.NewCheckinHandler(nil),
		handler.NewDiscountHandler(nil),
		handler.NewOptionHandler(service.NewOptionService(repository.NewOptionRepository(db))),
		handler.NewLogHandler(nil),
		handler.NewUsageHandler(nil),
		handler.NewStickySessionHandler(nil),
		logrus.NewEntry(log),
		cfg,
	)
	return r.Setup()
}

func tokenFor(t *testing.T, userID int64, role int) string {
	t.Helper()
	token, err := jwt.GenerateToken(userID, role, testSecret, 1)
	require.NoError(t, err)
	return token
}

func do(engine *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRouter_AuthRequired(t *testing.T) {
	engine := setupRouter(t)

	w := do(engine, http.MethodGet, "/api/option/"+model.OptionSubscriptionPageHTML, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestRouter_OptionAbsentIsEmpty(t *testing.T) {
	engine := setupRouter(t)

	w := do(engine, http.MethodGet, "/api/option/"+model.OptionSubscriptionPageHTML, tokenFor(t, 1, model.RoleCommonUser), nil)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "", resp.Data)
}

func TestRouter_AdminOnly(t *testing.T) {
	engine := setupRouter(t)
	body := map[string]string{"key": model.OptionSubscriptionPageHTML, "value": "<p>hi</p>"}

	w := do(engine, http.MethodPut, "/api/option/", tokenFor(t, 1, model.RoleCommonUser), body)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, response.CodePermissionDenied, resp.Code)

	w = do(engine, http.MethodPut, "/api/option/", tokenFor(t, 2, model.RoleAdminUser), body)
	assert.True(t, decode(t, w).Success)

	w = do(engine, http.MethodGet, "/api/option/"+model.OptionSubscriptionPageHTML, tokenFor(t, 1, model.RoleCommonUser), nil)
	resp = decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "<p>hi</p>", resp.Data)
}

func TestRouter_Metrics(t *testing.T) {
	engine := setupRouter(t)
	do(engine, http.MethodGet, "/api/option/x", "", nil)

	w := do(engine, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "subhub_http_requests_total"))
}
