package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	catalogEntity "AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/infrastructure/persistence/memstore"
	"AgentPedia/internal/modules/search/application/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memstore.NewCatalogRepository()
	require.NoError(t, repo.Create(context.Background(), &catalogEntity.CatalogAgent{
		ID: "a1", Slug: "doc-writer", Status: catalogEntity.StatusReleased,
		Name: catalogEntity.MultilingualText{"zh": "文档助手", "en": "Doc Writer"},
	}))
	svc := service.NewSearchService(nil, repo, nil)
	svc.Initialize(context.Background())
	h := NewSearchHandler(svc)

	r := gin.New()
	r.GET("/search/agents", h.SearchAgents)
	r.GET("/search/suggestions", h.Suggestions)
	r.GET("/search/popular", h.Popular)
	r.POST("/search/reindex", h.Reindex)
	r.GET("/search/types", h.SearchTypes)
	r.GET("/search/sort-types", h.SortTypes)
	return r
}

func get(r *gin.Engine, method, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func TestSearchAgentsEnvelope(t *testing.T) {
	r := newRouter(t)
	w := get(r, http.MethodGet, "/search/agents?q=doc&language=en")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "搜索成功", body["message"])
	assert.Equal(t, "mongodb", body["backend_used"])
	assert.NotContains(t, body, "backend")
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["pages"])
	assert.Equal(t, "hybrid", body["search_type"])
}

func TestSearchAgentsNoMatchHasEmptyItems(t *testing.T) {
	r := newRouter(t)
	w := get(r, http.MethodGet, "/search/agents?q=zzz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
	assert.Contains(t, w.Body.String(), `"pages":0`)
}

func TestSearchAgentsValidation(t *testing.T) {
	r := newRouter(t)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/search/agents?search_type=vector").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/search/agents?size=101").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/search/suggestions").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/search/popular?time_range=400").Code)
}

func TestSuggestionsAndPopular(t *testing.T) {
	r := newRouter(t)
	w := get(r, http.MethodGet, "/search/suggestions?q="+url.QueryEscape("文档"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "文档助手")

	w = get(r, http.MethodGet, "/search/popular?limit=5&time_range=30")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReindexWithoutEngine(t *testing.T) {
	r := newRouter(t)
	w := get(r, http.MethodPost, "/search/reindex")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOptionLists(t *testing.T) {
	r := newRouter(t)
	w := get(r, http.MethodGet, "/search/types")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"value":"fuzzy"`)
	w = get(r, http.MethodGet, "/search/sort-types")
	assert.Contains(t, w.Body.String(), `"value":"popularity"`)
}
