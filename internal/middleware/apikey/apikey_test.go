package apikey

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"AgentPedia/internal/config"
	"AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/modules/apikey/application/dto/request"
	"AgentPedia/internal/modules/apikey/application/service"
	"AgentPedia/internal/modules/apikey/domain/entity"
	"AgentPedia/internal/modules/apikey/infrastructure/persistence"
	"AgentPedia/internal/modules/apikey/infrastructure/ratelimit"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/dbtest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rejections map[string]int

func (r rejections) ObserveAPIKeyRejected(reason string) { r[reason]++ }

func setup(t *testing.T, resolve IdentityResolver) (*gin.Engine, service.APIKeyService, rejections) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.SetConfig(config.Default())
	db := dbtest.Open(t, &entity.APIKey{})
	svc := service.NewAPIKeyService(persistence.NewAPIKeyRepository(db), ratelimit.NewMemoryLimiter())

	r := gin.New()
	rej := rejections{}
	r.Use(Auth(svc, resolve, rej))
	private := r.Group("", jwt.Auth())
	handler := func(c *gin.Context) {
		who := jwt.CurrentCaller(c)
		c.JSON(http.StatusOK, gin.H{"user_id": who.UserID, "api_key_id": who.APIKeyID, "role": who.Role})
	}
	private.GET("/me", handler)
	private.POST("/me", handler)
	return r, svc, rej
}

func send(r *gin.Engine, method, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/me", nil)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func one() *int {
	v := 1
	return &v
}

func TestMissingKeyFallsThroughToJWT(t *testing.T) {
	r, _, rej := setup(t, nil)
	assert.Equal(t, http.StatusUnauthorized, send(r, http.MethodGet, "").Code)
	assert.Empty(t, rej)
}

func TestInvalidKeyRejected(t *testing.T) {
	r, _, rej := setup(t, nil)
	w := send(r, http.MethodGet, "definitely-not-a-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, rej["invalid"])
}

func TestValidKeyAuthenticatesAndLimits(t *testing.T) {
	r, svc, rej := setup(t, nil)
	k, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{
		Name:               "bot",
		RateLimitPerMinute: one(),
	}, caller.Caller{UserID: 5})
	require.NoError(t, err)

	w := send(r, http.MethodGet, k.Key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"user_id":5`)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send(r, http.MethodGet, k.Key)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, 1, rej["rate_limited"])

	got, err := svc.Get(context.Background(), k.Id, caller.Caller{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UsageCount)
}

func TestReadScopeCannotWrite(t *testing.T) {
	r, svc, rej := setup(t, nil)
	k, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{Name: "ro"}, caller.Caller{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, send(r, http.MethodPost, k.Key).Code)
	assert.Equal(t, 1, rej["scope"])

	rw, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{
		Name:   "rw",
		Scopes: []string{entity.ScopeRead, entity.ScopeWrite},
	}, caller.Caller{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, send(r, http.MethodPost, rw.Key).Code)
}

func TestScopeRejectionKeepsQuota(t *testing.T) {
	r, svc, rej := setup(t, nil)
	k, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{
		Name:               "ro",
		RateLimitPerMinute: one(),
	}, caller.Caller{UserID: 5})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusForbidden, send(r, http.MethodPost, k.Key).Code)
	}
	assert.Equal(t, 3, rej["scope"])

	w := send(r, http.MethodGet, k.Key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Zero(t, rej["rate_limited"])
}

func TestResolverSuppliesRole(t *testing.T) {
	resolve := func(ctx context.Context, userID int64) (caller.Caller, error) {
		if userID == 6 {
			return caller.Caller{}, errors.New("db down")
		}
		return caller.Caller{UserID: userID, Username: "dev", Role: caller.RoleDeveloper}, nil
	}
	r, svc, _ := setup(t, resolve)
	k, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{Name: "dev"}, caller.Caller{UserID: 5})
	require.NoError(t, err)

	w := send(r, http.MethodGet, k.Key)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"developer"`)
	assert.Contains(t, w.Body.String(), `"api_key_id":`+strconv.FormatInt(k.Id, 10))

	broken, err := svc.Create(context.Background(), request.CreateAPIKeyRequest{Name: "x"}, caller.Caller{UserID: 6})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, send(r, http.MethodGet, broken.Key).Code)
}
