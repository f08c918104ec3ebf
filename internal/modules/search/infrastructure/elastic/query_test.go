package elastic

import (
	"testing"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/search/domain/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextQueryEmptyIsMatchAll(t *testing.T) {
	assert.Equal(t, M{"match_all": M{}}, TextQuery("", engine.TypeHybrid, "zh"))
}

func TestTextQueryKeywordBoosts(t *testing.T) {
	q := TextQuery("agent", engine.TypeKeyword, "en")["multi_match"].(M)
	assert.Equal(t, "best_fields", q["type"])
	assert.Equal(t, "AUTO", q["fuzziness"])
	assert.Equal(t, []string{
		"name.en^3", "description.short.en^2", "description.detailed.en", "features.en", "tags^2",
	}, q["fields"])
}

func TestTextQuerySemanticUsesCrossFields(t *testing.T) {
	q := TextQuery("agent", engine.TypeSemantic, "zh")["multi_match"].(M)
	assert.Equal(t, "cross_fields", q["type"])
}

func TestTextQueryHybridCombinesBoth(t *testing.T) {
	b := TextQuery("agent", engine.TypeHybrid, "zh")["bool"].(M)
	should := b["should"].([]M)
	require.Len(t, should, 2)
	assert.Equal(t, "best_fields", should[0]["multi_match"].(M)["type"])
	assert.Equal(t, "cross_fields", should[1]["multi_match"].(M)["type"])
	assert.Equal(t, 1, b["minimum_should_match"])
}

func TestTextQueryFuzzyPrefixLength(t *testing.T) {
	q := TextQuery("agnt", engine.TypeFuzzy, "zh")["multi_match"].(M)
	assert.Equal(t, 2, q["prefix_length"])
}

func TestFilters(t *testing.T) {
	assert.Empty(t, Filters("", nil, nil))
	f := Filters("beta", []string{"chat"}, []string{"gpt-4"})
	require.Len(t, f, 3)
	assert.Equal(t, M{"term": M{"status": "beta"}}, f[0])
	assert.Equal(t, M{"terms": M{"tags": []string{"chat"}}}, f[1])
	stack := f[2]["bool"].(M)
	assert.Len(t, stack["should"], 4)
}

func TestSort(t *testing.T) {
	assert.Equal(t, []M{{"_score": M{"order": "desc"}}}, Sort(engine.SortRelevance, "zh"))
	assert.Equal(t, []M{{"name.en.raw": M{"order": "asc"}}}, Sort(engine.SortName, "en"))
	assert.Equal(t, []M{{"metrics.popularity_score": M{"order": "desc"}}}, Sort(engine.SortPopularity, ""))
}

func TestSearchBodyPagination(t *testing.T) {
	b := SearchBody(engine.Query{Text: "x", Offset: 40, Size: 20})
	assert.Equal(t, 40, b["from"])
	assert.Equal(t, 20, b["size"])
	assert.Equal(t, true, b["track_total_hits"])
}

func TestPopularBodyWindow(t *testing.T) {
	since := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	b := PopularBody(10, &since)
	filter := b["query"].(M)["bool"].(M)["filter"].([]M)
	require.Len(t, filter, 1)
	assert.Equal(t, "2026-09-01T00:00:00Z", filter[0]["range"].(M)["created_at"].(M)["gte"])
}

func TestDocumentSuggestInputs(t *testing.T) {
	d := Document(&entity.CatalogAgent{ID: "1", Name: entity.MultilingualText{"zh": "助手"}})
	s := d["suggest"].(M)
	assert.Equal(t, M{"input": []string{"助手"}}, s["zh"])
	_, hasEn := s["en"]
	assert.False(t, hasEn)
}
