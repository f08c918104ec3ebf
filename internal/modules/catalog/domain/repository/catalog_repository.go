package repository

import (
	"context"
	"errors"
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
)

var (
	ErrNotFound      = errors.New("catalog agent not found")
	ErrDuplicateSlug = errors.New("catalog agent slug already exists")
)

// 排序字段
const (
	SortName       = "name"
	SortCreatedAt  = "created_at"
	SortUpdatedAt  = "updated_at"
	SortPopularity = "popularity"
)

// AgentQuery 与存储无关的查询条件
type AgentQuery struct {
	Text           string
	Language       string
	Status         string
	Tags           []string
	TechnicalStack []string
	CreatedAfter   *time.Time
	SortBy         string
	SortDesc       bool
	Offset         int64
	Limit          int64
}

type CatalogRepository interface {
	Create(ctx context.Context, agent *entity.CatalogAgent) error
	GetByID(ctx context.Context, id string) (*entity.CatalogAgent, error)
	GetBySlug(ctx context.Context, slug string) (*entity.CatalogAgent, error)
	// Update 以 $set 覆盖给定的顶层字段
	Update(ctx context.Context, id string, fields map[string]interface{}) (*entity.CatalogAgent, error)
	Delete(ctx context.Context, id string) (bool, error)
	Find(ctx context.Context, q AgentQuery) ([]entity.CatalogAgent, int64, error)
	NamesWithPrefix(ctx context.Context, prefix, lang string, limit int) ([]string, error)
	Related(ctx context.Context, agent *entity.CatalogAgent, limit int) ([]entity.CatalogAgent, error)
	Iterate(ctx context.Context, fn func(agent *entity.CatalogAgent) error) error
	EnsureIndexes(ctx context.Context) error
}
