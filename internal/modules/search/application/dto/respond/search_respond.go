package respond

import "AgentPedia/internal/modules/catalog/domain/entity"

const (
	BackendElasticsearch = "elasticsearch"
	BackendMongoDB       = "mongodb"
)

type SearchResult struct {
	Items []entity.CatalogAgent `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
	Pages int                   `json:"pages"`
	// BackendUsed 实际执行本次查询的后端，降级时为 mongodb
	BackendUsed string `json:"backend_used"`
	Query       string `json:"query"`
	SearchType  string `json:"search_type"`
	TookMs      int64  `json:"took_ms"`
}

type ReindexResult struct {
	Indexed int `json:"indexed"`
}

type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}
