package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"AgentPedia/internal/config"
	"AgentPedia/internal/middleware/jwt/jwttest"
	"AgentPedia/internal/modules/apikey/application/service"
	"AgentPedia/internal/modules/apikey/domain/entity"
	"AgentPedia/internal/modules/apikey/infrastructure/persistence"
	"AgentPedia/internal/modules/apikey/infrastructure/ratelimit"
	"AgentPedia/pkg/dbtest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.SetConfig(config.Default())
	db := dbtest.Open(t, &entity.APIKey{})
	h := NewAPIKeyHandler(service.NewAPIKeyService(persistence.NewAPIKeyRepository(db), ratelimit.NewMemoryLimiter()))

	r := gin.New()
	r.Use(jwttest.FromHeaders())
	g := r.Group("/api-keys")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/activate", h.Activate)
	g.POST("/:id/deactivate", h.Deactivate)
	g.POST("/:id/revoke", h.Revoke)
	g.POST("/:id/extend", h.Extend)
	g.GET("/:id/usage", h.Usage)
	return r
}

func call(r *gin.Engine, method, url, body, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		for k, v := range jwttest.Header(userID, "") {
			req.Header[k] = v
		}
	}
	r.ServeHTTP(w, req)
	return w
}

type keyBody struct {
	Data struct {
		Id      int64    `json:"id"`
		Key     string   `json:"key"`
		KeyHash string   `json:"key_hash"`
		Prefix  string   `json:"prefix"`
		Status  string   `json:"status"`
		Scopes  []string `json:"scopes"`
	} `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) keyBody {
	t.Helper()
	var out keyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateShowsKeyOnlyOnce(t *testing.T) {
	r := newRouter(t)
	w := call(r, http.MethodPost, "/api-keys", `{"name":"ci","scopes":["read","write"]}`, "1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	require.NotEmpty(t, created.Data.Key)
	assert.Empty(t, created.Data.KeyHash)
	assert.Equal(t, created.Data.Key[:8], created.Data.Prefix)

	w = call(r, http.MethodGet, fmt.Sprintf("/api-keys/%d", created.Data.Id), "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Empty(t, got.Data.Key)
	assert.Equal(t, []string{"read", "write"}, got.Data.Scopes)

	w = call(r, http.MethodGet, fmt.Sprintf("/api-keys/%d", created.Data.Id), "", "2")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidation(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/api-keys", `{"name":""}`, "1").Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, "/api-keys", `{"name":"x","scopes":["root"]}`, "1").Code)
	assert.Equal(t, http.StatusBadRequest,
		call(r, http.MethodPost, "/api-keys", `{"name":"x","rate_limit_per_minute":100,"rate_limit_per_hour":10}`, "1").Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	r := newRouter(t)
	id := decode(t, call(r, http.MethodPost, "/api-keys", `{"name":"flow"}`, "1")).Data.Id
	base := fmt.Sprintf("/api-keys/%d", id)

	w := call(r, http.MethodPost, base+"/deactivate", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inactive", decode(t, w).Data.Status)

	w = call(r, http.MethodPost, base+"/extend", `{"days":7}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, base+"/extend", `{"days":0}`, "1").Code)

	w = call(r, http.MethodGet, base+"/usage", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"remaining_per_minute":60`)

	require.Equal(t, http.StatusOK, call(r, http.MethodPost, base+"/revoke", "", "1").Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodPost, base+"/activate", "", "1").Code)

	w = call(r, http.MethodGet, "/api-keys/stats", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"revoked_keys":1`)

	w = call(r, http.MethodGet, "/api-keys?status=revoked", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	require.Equal(t, http.StatusOK, call(r, http.MethodDelete, base, "", "1").Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, base, "", "1").Code)
	assert.Equal(t, http.StatusBadRequest, call(r, http.MethodGet, "/api-keys/abc", "", "1").Code)
}
