package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"AgentPedia/internal/middleware/jwt/jwttest"
	"AgentPedia/internal/modules/agent/application/service"
	"AgentPedia/internal/modules/agent/domain/entity"
	"AgentPedia/internal/modules/agent/infrastructure/persistence"
	"AgentPedia/pkg/dbtest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t, &entity.Agent{}, &entity.AgentTool{})
	h := NewAgentHandler(service.NewAgentService(persistence.NewAgentRepository(db)))

	r := gin.New()
	r.Use(jwttest.FromHeaders())
	g := r.Group("/agents")
	g.GET("", h.List)
	g.GET("/my", h.ListMine)
	g.POST("", h.Create)
	g.POST("/import", h.Import)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/clone", h.Clone)
	g.POST("/:id/publish", h.Publish)
	g.GET("/:id/export", h.Export)
	g.PUT("/:id/tools/:tool_name/toggle", h.ToggleTool)
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

type agentBody struct {
	Data struct {
		Id         int64  `json:"id"`
		Name       string `json:"name"`
		Visibility string `json:"visibility"`
	} `json:"data"`
}

func create(t *testing.T, r *gin.Engine, userID, name, visibility string) int64 {
	t.Helper()
	body := `{"name":"` + name + `","visibility":"` + visibility + `","model_provider":"openai","model_name":"gpt-4o","tools":["search"]}`
	w := call(r, http.MethodPost, "/agents", body, userID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out agentBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Data.Id
}

func listNames(t *testing.T, r *gin.Engine, url, userID string) []string {
	t.Helper()
	w := call(r, http.MethodGet, url, "", userID)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	names := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		names = append(names, it.Name)
	}
	return names
}

func TestPublicAndPrivateAgents(t *testing.T) {
	r := newRouter(t)
	create(t, r, "1", "A1", "public")
	a2 := create(t, r, "2", "A2", "private")

	assert.Equal(t, []string{"A1"}, listNames(t, r, "/agents", ""))
	assert.Equal(t, []string{"A1"}, listNames(t, r, "/agents", "1"))
	assert.ElementsMatch(t, []string{"A1", "A2"}, listNames(t, r, "/agents", "2"))
	assert.Equal(t, []string{"A2"}, listNames(t, r, "/agents/my", "2"))

	w := call(r, http.MethodGet, "/agents/"+itoa(a2), "", "1")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(r, http.MethodGet, "/agents/"+itoa(a2), "", "2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateValidation(t *testing.T) {
	r := newRouter(t)
	w := call(r, http.MethodPost, "/agents", `{"name":"x","model_provider":"nope","model_name":"m"}`, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	create(t, r, "1", "same", "private")
	w = call(r, http.MethodPost, "/agents", `{"name":"same","model_provider":"openai","model_name":"m"}`, "1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateDeleteFlow(t *testing.T) {
	r := newRouter(t)
	id := create(t, r, "1", "flow", "private")

	w := call(r, http.MethodPut, "/agents/"+itoa(id), `{"description":"hi"}`, "2")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(r, http.MethodPut, "/agents/"+itoa(id), `{"description":"hi"}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"description":"hi"`)

	w = call(r, http.MethodPost, "/agents/"+itoa(id)+"/publish", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"flow"}, listNames(t, r, "/agents", ""))

	w = call(r, http.MethodDelete, "/agents/"+itoa(id), "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(r, http.MethodGet, "/agents/"+itoa(id), "", "1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, listNames(t, r, "/agents", ""))
}

func TestCloneExportImportToggle(t *testing.T) {
	r := newRouter(t)
	id := create(t, r, "1", "base", "public")

	w := call(r, http.MethodPost, "/agents/"+itoa(id)+"/clone", `{"name":"mine"}`, "2")
	require.Equal(t, http.StatusCreated, w.Code)
	var cloned agentBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cloned))
	assert.Equal(t, "private", cloned.Data.Visibility)

	w = call(r, http.MethodPut, "/agents/"+itoa(id)+"/tools/search/toggle", `{"is_enabled":false}`, "1")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(r, http.MethodPut, "/agents/"+itoa(id)+"/tools/search/toggle", `{}`, "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodGet, "/agents/"+itoa(id)+"/export", "", "1")
	require.Equal(t, http.StatusOK, w.Code)
	var exp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))

	w = call(r, http.MethodPost, "/agents/import", `{"data":`+string(exp.Data)+`}`, "3")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"base"}, listNames(t, r, "/agents/my", "3"))
}

func TestBadPathID(t *testing.T) {
	r := newRouter(t)
	w := call(r, http.MethodGet, "/agents/abc", "", "1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
