package service

import (
	"context"
	"errors"
	"testing"
	"time"

	catalogEntity "AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/infrastructure/persistence/memstore"
	"AgentPedia/internal/modules/search/application/dto/request"
	"AgentPedia/internal/modules/search/application/dto/respond"
	"AgentPedia/internal/modules/search/domain/engine"
	"AgentPedia/pkg/pagination"
	"AgentPedia/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	pingErr   error
	searchErr error
	indexErr  map[string]error
	hits      *engine.Hits
	indexed   []string
	deleted   []string
	lastQuery engine.Query
}

func (f *fakeEngine) Name() string                        { return "fake" }
func (f *fakeEngine) Ping(ctx context.Context) error      { return f.pingErr }
func (f *fakeEngine) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeEngine) Search(ctx context.Context, q engine.Query) (*engine.Hits, error) {
	f.lastQuery = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeEngine) Suggest(ctx context.Context, prefix, lang string, size int) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []string{"engine:" + prefix}, nil
}

func (f *fakeEngine) Popular(ctx context.Context, limit int, since *time.Time) ([]catalogEntity.CatalogAgent, error) {
	return nil, f.searchErr
}

func (f *fakeEngine) Index(ctx context.Context, a *catalogEntity.CatalogAgent) error {
	if err := f.indexErr[a.ID]; err != nil {
		return err
	}
	f.indexed = append(f.indexed, a.ID)
	return nil
}

func (f *fakeEngine) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type countingObserver struct {
	fallbacks int
	backends  []string
}

func (o *countingObserver) ObserveSearch(backend, searchType string, fallback bool) {
	o.backends = append(o.backends, backend)
	if fallback {
		o.fallbacks++
	}
}

func (o *countingObserver) ObserveReindexed(n int) {}

func seed(t *testing.T) memstore.Store {
	t.Helper()
	repo := memstore.NewCatalogRepository()
	now := time.Now().UTC()
	agents := []catalogEntity.CatalogAgent{
		{ID: "1", Slug: "code-helper", Name: catalogEntity.MultilingualText{"zh": "编程助手", "en": "Code Helper"},
			Description: catalogEntity.Description{Short: catalogEntity.MultilingualText{"zh": "写代码", "en": "writes code"}},
			Status:      catalogEntity.StatusReleased, Tags: []string{"coding"},
			TechnicalStack: catalogEntity.TechnicalStack{Frameworks: []string{"langchain"}},
			Metrics:        catalogEntity.Metrics{PopularityScore: 80}, CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "2", Slug: "chat-buddy", Name: catalogEntity.MultilingualText{"zh": "聊天伙伴", "en": "Chat Buddy"},
			Status: catalogEntity.StatusBeta, Tags: []string{"chat"},
			Metrics: catalogEntity.Metrics{PopularityScore: 95}, CreatedAt: now.AddDate(0, 0, -40)},
		{ID: "3", Slug: "code-review", Name: catalogEntity.MultilingualText{"zh": "代码评审", "en": "Code Review"},
			Status: catalogEntity.StatusBeta, Tags: []string{"coding", "review"},
			Metrics: catalogEntity.Metrics{PopularityScore: 50}, CreatedAt: now.AddDate(0, 0, -1)},
	}
	for i := range agents {
		require.NoError(t, repo.Create(context.Background(), &agents[i]))
	}
	return repo
}

func searchReq(q string) request.SearchAgentsRequest {
	return request.SearchAgentsRequest{
		Query:      pagination.Query{Page: 1, Size: 20},
		Q:          q,
		SearchType: "hybrid",
		SortBy:     "relevance",
		Language:   "en",
	}
}

func TestSearchWithoutEngineUsesDocumentStore(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	svc.Initialize(context.Background())
	assert.False(t, svc.Available())

	res, err := svc.Search(context.Background(), searchReq("code"))
	require.NoError(t, err)
	assert.Equal(t, respond.BackendMongoDB, res.BackendUsed)
	assert.Equal(t, int64(2), res.Total)
	// relevance 回退为名称升序
	assert.Equal(t, "Code Helper", res.Items[0].Name["en"])
	assert.Equal(t, "Code Review", res.Items[1].Name["en"])
}

func TestSearchZeroMatches(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	res, err := svc.Search(context.Background(), searchReq("nothing-matches-this"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.Pages)
}

func TestSearchEngineErrorFallsBack(t *testing.T) {
	eng := &fakeEngine{searchErr: errors.New("connection reset")}
	obs := &countingObserver{}
	svc := NewSearchService(eng, seed(t), obs)
	svc.Initialize(context.Background())
	require.True(t, svc.Available())

	res, err := svc.Search(context.Background(), searchReq("chat"))
	require.NoError(t, err)
	assert.Equal(t, respond.BackendMongoDB, res.BackendUsed)
	assert.Equal(t, int64(1), res.Total)
	assert.Equal(t, 1, obs.fallbacks)
	// 引擎仍被视为可用，下一次请求还会先走引擎
	assert.True(t, svc.Available())
}

func TestSearchUsesEngineWhenHealthy(t *testing.T) {
	eng := &fakeEngine{hits: &engine.Hits{Items: []catalogEntity.CatalogAgent{{ID: "x"}}, Total: 45}}
	svc := NewSearchService(eng, seed(t), nil)
	svc.Initialize(context.Background())

	req := searchReq("anything")
	req.Page, req.Size = 3, 20
	req.Tags = "coding, chat"
	res, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, respond.BackendElasticsearch, res.BackendUsed)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 40, eng.lastQuery.Offset)
	assert.Equal(t, []string{"coding", "chat"}, eng.lastQuery.Tags)
	assert.Equal(t, engine.TypeHybrid, eng.lastQuery.Type)
}

func TestInitializeFailureIsPermanent(t *testing.T) {
	eng := &fakeEngine{pingErr: errors.New("refused")}
	svc := NewSearchService(eng, seed(t), nil)
	svc.Initialize(context.Background())
	eng.pingErr = nil
	assert.False(t, svc.Available())

	res, err := svc.Search(context.Background(), searchReq("code"))
	require.NoError(t, err)
	assert.Equal(t, respond.BackendMongoDB, res.BackendUsed)
	assert.Empty(t, eng.lastQuery.Type)
}

func TestSearchFiltersAreAnded(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	req := searchReq("")
	req.Status = catalogEntity.StatusBeta
	req.Tags = "coding"
	res, err := svc.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "3", res.Items[0].ID)

	req = searchReq("")
	req.TechnicalStack = "langchain,unknown"
	res, err = svc.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestSearchStoreErrorIsGeneric(t *testing.T) {
	repo := seed(t)
	repo.FailFind(errors.New("mongo down"))
	svc := NewSearchService(nil, repo, nil)
	_, err := svc.Search(context.Background(), searchReq("code"))
	assert.Equal(t, ErrSearchFailed, err)
	assert.Equal(t, xerr.InternalServerError, xerr.CodeOf(err))
}

func TestSuggestions(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	names, err := svc.Suggestions(context.Background(), "code", 5, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"Code Helper", "Code Review"}, names)

	names, err = svc.Suggestions(context.Background(), "  ", 5, "en")
	require.NoError(t, err)
	assert.Empty(t, names)

	eng := &fakeEngine{}
	svc = NewSearchService(eng, seed(t), nil)
	svc.Initialize(context.Background())
	names, err = svc.Suggestions(context.Background(), "co", 5, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"engine:co"}, names)
}

func TestPopularWindow(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	items, err := svc.Popular(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "2", items[0].ID)

	days := 7
	items, err = svc.Popular(context.Background(), 10, &days)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
}

func TestReindexSkipsFailures(t *testing.T) {
	eng := &fakeEngine{indexErr: map[string]error{"2": errors.New("mapping conflict")}}
	svc := NewSearchService(eng, seed(t), nil)
	svc.Initialize(context.Background())

	n, err := svc.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"1", "3"}, eng.indexed)
}

func TestReindexWithoutEngine(t *testing.T) {
	svc := NewSearchService(nil, seed(t), nil)
	_, err := svc.ReindexAll(context.Background())
	assert.Equal(t, xerr.ServiceUnavailable, xerr.CodeOf(err))
}

func TestApplyChange(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewSearchService(eng, seed(t), nil)
	svc.Initialize(context.Background())

	require.NoError(t, svc.ApplyChange(context.Background(), catalogEntity.ChangeEvent{Op: catalogEntity.ChangeUpsert, AgentID: "1"}))
	require.NoError(t, svc.ApplyChange(context.Background(), catalogEntity.ChangeEvent{Op: catalogEntity.ChangeUpsert, AgentID: "gone"}))
	require.NoError(t, svc.ApplyChange(context.Background(), catalogEntity.ChangeEvent{Op: catalogEntity.ChangeDelete, AgentID: "3"}))
	assert.Equal(t, []string{"1"}, eng.indexed)
	assert.Equal(t, []string{"gone", "3"}, eng.deleted)
}
