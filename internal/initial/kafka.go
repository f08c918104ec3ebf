package initial

import (
	"AgentPedia/internal/config"
	"AgentPedia/internal/modules/catalog/infrastructure/mq"
	"AgentPedia/internal/modules/catalog/infrastructure/mq/kafka"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

// KafkaEnabled 配置了 brokers 时目录变更走消息队列
func KafkaEnabled(conf *config.Config) bool {
	return len(conf.KafkaConfig.Brokers) > 0
}

func ensureCatalogTopic(conf *config.Config) error {
	k := conf.KafkaConfig
	return kafka.EnsureTopic(
		kafka.TopicAdminConfig{Brokers: k.Brokers, ClientID: k.ClientID},
		k.CatalogTopic, k.Partitions, k.Replication,
	)
}

// OpenCatalogPublisher 返回的 Publisher 由调用方关闭
func OpenCatalogPublisher(conf *config.Config) (*mq.ChangePublisher, mq.Publisher, error) {
	if err := ensureCatalogTopic(conf); err != nil {
		return nil, nil, err
	}
	k := conf.KafkaConfig
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: k.Brokers, ClientID: k.ClientID})
	if err != nil {
		return nil, nil, err
	}
	zlog.Info("Kafka 目录变更发布已启用", zap.Strings("brokers", k.Brokers), zap.String("topic", k.CatalogTopic))
	return mq.NewChangePublisher(pub, k.CatalogTopic), pub, nil
}

func OpenCatalogConsumer(conf *config.Config) (mq.Consumer, error) {
	if err := ensureCatalogTopic(conf); err != nil {
		return nil, err
	}
	k := conf.KafkaConfig
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:  k.Brokers,
		GroupID:  k.ConsumerGroupID,
		Topics:   []string{k.CatalogTopic},
		ClientID: k.ClientID,
	})
}
