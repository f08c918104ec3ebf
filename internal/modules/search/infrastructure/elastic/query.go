package elastic

import (
	"time"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/search/domain/engine"
)

type M = map[string]interface{}

var stackFields = []string{
	"technical_stack.base_model",
	"technical_stack.frameworks",
	"technical_stack.programming_languages",
	"technical_stack.deployment",
}

// TextQuery 按搜索类型组合字段与权重
func TextQuery(text string, t engine.SearchType, lang string) M {
	if text == "" {
		return M{"match_all": M{}}
	}
	lang = entity.NormalizeLanguage(lang)
	keywordFields := []string{
		"name." + lang + "^3",
		"description.short." + lang + "^2",
		"description.detailed." + lang,
		"features." + lang,
		"tags^2",
	}
	semanticFields := []string{
		"description.detailed." + lang + "^2",
		"description.short." + lang,
		"features." + lang,
		"technical_stack.description." + lang,
	}

	best := M{"multi_match": M{
		"query":     text,
		"fields":    keywordFields,
		"type":      "best_fields",
		"fuzziness": "AUTO",
	}}
	cross := M{"multi_match": M{
		"query":    text,
		"fields":   semanticFields,
		"type":     "cross_fields",
		"operator": "or",
	}}

	switch t {
	case engine.TypeKeyword:
		return best
	case engine.TypeSemantic:
		return cross
	case engine.TypeFuzzy:
		return M{"multi_match": M{
			"query":         text,
			"fields":        []string{"name." + lang + "^3", "description.short." + lang + "^2", "tags"},
			"fuzziness":     "AUTO",
			"prefix_length": 2,
		}}
	default:
		return M{"bool": M{
			"should":               []M{best, cross},
			"minimum_should_match": 1,
		}}
	}
}

// Filters status 精确匹配，tags 与 technical_stack 任一命中
func Filters(status string, tags, stack []string) []M {
	out := make([]M, 0, 3)
	if status != "" {
		out = append(out, M{"term": M{"status": status}})
	}
	if len(tags) > 0 {
		out = append(out, M{"terms": M{"tags": tags}})
	}
	if len(stack) > 0 {
		should := make([]M, 0, len(stackFields))
		for _, f := range stackFields {
			should = append(should, M{"terms": M{f: stack}})
		}
		out = append(out, M{"bool": M{"should": should, "minimum_should_match": 1}})
	}
	return out
}

func Sort(by engine.SortBy, lang string) []M {
	switch by {
	case engine.SortCreatedAt:
		return []M{{"created_at": M{"order": "desc"}}}
	case engine.SortUpdatedAt:
		return []M{{"updated_at": M{"order": "desc"}}}
	case engine.SortPopularity:
		return []M{{"metrics.popularity_score": M{"order": "desc"}}}
	case engine.SortName:
		return []M{{"name." + entity.NormalizeLanguage(lang) + ".raw": M{"order": "asc"}}}
	default:
		return []M{{"_score": M{"order": "desc"}}}
	}
}

// SearchBody 组装完整搜索请求
func SearchBody(q engine.Query) M {
	return M{
		"query": M{"bool": M{
			"must":   []M{TextQuery(q.Text, q.Type, q.Language)},
			"filter": Filters(q.Status, q.Tags, q.TechnicalStack),
		}},
		"sort":             Sort(q.SortBy, q.Language),
		"from":             q.Offset,
		"size":             q.Size,
		"track_total_hits": true,
	}
}

const suggestName = "name-suggest"

func SuggestBody(prefix, lang string, size int) M {
	return M{
		"_source": false,
		"suggest": M{suggestName: M{
			"prefix": prefix,
			"completion": M{
				"field":           "suggest." + entity.NormalizeLanguage(lang),
				"size":            size,
				"skip_duplicates": true,
			},
		}},
	}
}

func PopularBody(limit int, since *time.Time) M {
	filter := []M{}
	if since != nil {
		filter = append(filter, M{"range": M{"created_at": M{"gte": since.UTC().Format(time.RFC3339)}}})
	}
	return M{
		"query": M{"bool": M{"filter": filter}},
		"sort":  Sort(engine.SortPopularity, ""),
		"size":  limit,
	}
}

// IndexMapping 索引结构，name.<lang>.raw 用于排序
func IndexMapping() M {
	textWithRaw := M{"type": "text", "fields": M{"raw": M{"type": "keyword", "ignore_above": 256}}}
	langs := M{"zh": textWithRaw, "en": textWithRaw}
	plain := M{"zh": M{"type": "text"}, "en": M{"type": "text"}}
	return M{
		"mappings": M{
			"dynamic": true,
			"properties": M{
				"id":   M{"type": "keyword"},
				"slug": M{"type": "keyword"},
				"name": M{"properties": langs},
				"description": M{"properties": M{
					"short":    M{"properties": plain},
					"detailed": M{"properties": plain},
				}},
				"features": M{"properties": plain},
				"status":   M{"type": "keyword"},
				"tags":     M{"type": "keyword"},
				"technical_stack": M{"properties": M{
					"base_model":            M{"type": "keyword"},
					"frameworks":            M{"type": "keyword"},
					"programming_languages": M{"type": "keyword"},
					"deployment":            M{"type": "keyword"},
					"description":           M{"properties": plain},
				}},
				"metrics": M{"properties": M{
					"popularity_score": M{"type": "float"},
				}},
				"created_at": M{"type": "date"},
				"updated_at": M{"type": "date"},
				"suggest": M{"properties": M{
					"zh": M{"type": "completion"},
					"en": M{"type": "completion"},
				}},
			},
		},
	}
}

// Document 入库文档，附加补全字段
func Document(agent *entity.CatalogAgent) M {
	suggest := M{}
	for _, lang := range []string{"zh", "en"} {
		if v := agent.Name[lang]; v != "" {
			suggest[lang] = M{"input": []string{v}}
		}
	}
	features := M{}
	for lang, list := range agent.Features {
		features[lang] = list
	}
	return M{
		"id":               agent.ID,
		"slug":             agent.Slug,
		"name":             agent.Name,
		"description":      agent.Description,
		"features":         features,
		"logo_url":         agent.LogoURL,
		"official_url":     agent.OfficialURL,
		"development_team": agent.DevelopmentTeam,
		"technical_stack":  agent.TechnicalStack,
		"funding_info":     agent.FundingInfo,
		"business_info":    agent.BusinessInfo,
		"status":           agent.Status,
		"tags":             agent.Tags,
		"related_agents":   agent.RelatedAgents,
		"metrics":          agent.Metrics,
		"timeline":         agent.Timeline,
		"is_verified":      agent.IsVerified,
		"created_by":       agent.CreatedBy,
		"created_at":       agent.CreatedAt,
		"updated_at":       agent.UpdatedAt,
		"suggest":          suggest,
	}
}
