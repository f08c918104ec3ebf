package engine

import (
	"context"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
)

type SearchType string

const (
	TypeKeyword  SearchType = "keyword"
	TypeSemantic SearchType = "semantic"
	TypeHybrid   SearchType = "hybrid"
	TypeFuzzy    SearchType = "fuzzy"
)

var SearchTypes = []SearchType{TypeKeyword, TypeSemantic, TypeHybrid, TypeFuzzy}

type SortBy string

const (
	SortRelevance  SortBy = "relevance"
	SortCreatedAt  SortBy = "created_at"
	SortUpdatedAt  SortBy = "updated_at"
	SortPopularity SortBy = "popularity"
	SortName       SortBy = "name"
)

var SortModes = []SortBy{SortRelevance, SortCreatedAt, SortUpdatedAt, SortPopularity, SortName}

// Query 搜索条件，Offset = (page-1)*size
type Query struct {
	Text           string
	Type           SearchType
	Status         string
	Tags           []string
	TechnicalStack []string
	SortBy         SortBy
	Language       string
	Offset         int
	Size           int
}

type Hits struct {
	Items []entity.CatalogAgent
	Total int64
}

// Engine 全文检索引擎
type Engine interface {
	Name() string
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
	Search(ctx context.Context, q Query) (*Hits, error)
	Suggest(ctx context.Context, prefix, lang string, size int) ([]string, error)
	Popular(ctx context.Context, limit int, since *time.Time) ([]entity.CatalogAgent, error)
	Index(ctx context.Context, agent *entity.CatalogAgent) error
	Delete(ctx context.Context, id string) error
}
