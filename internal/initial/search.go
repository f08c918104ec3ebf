package initial

import (
	"AgentPedia/internal/config"
	"AgentPedia/internal/modules/search/domain/engine"
	"AgentPedia/internal/modules/search/infrastructure/elastic"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

// OpenSearchEngine 未启用时返回 nil，可用性由搜索服务启动时探测
func OpenSearchEngine(conf *config.Config) (engine.Engine, error) {
	es := conf.ElasticsearchConfig
	if !es.Enabled || len(es.Addresses) == 0 {
		zlog.Info("Elasticsearch 未启用，搜索使用 MongoDB")
		return nil, nil
	}
	eng, err := elastic.NewEngine(elastic.Config{
		Addresses: es.Addresses,
		Username:  es.Username,
		Password:  es.Password,
		Index:     es.Index,
	})
	if err != nil {
		return nil, err
	}
	zlog.Info("Elasticsearch 客户端已创建", zap.Strings("addresses", es.Addresses), zap.String("index", es.Index))
	return eng, nil
}
