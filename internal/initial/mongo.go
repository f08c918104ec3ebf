package initial

import (
	"context"
	"time"

	"AgentPedia/internal/config"
	"AgentPedia/pkg/zlog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// OpenMongo uri 为空时返回 nil，目录与收藏改用进程内存储
func OpenMongo(ctx context.Context, conf *config.Config) (*mongo.Client, *mongo.Database, error) {
	uri := conf.MongoConfig.URI
	if uri == "" {
		zlog.Info("MongoDB 未配置，使用进程内存储")
		return nil, nil, nil
	}
	timeout := time.Duration(conf.MongoConfig.TimeoutSec) * time.Second

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	zlog.Info("MongoDB 连接成功", zap.String("database", conf.MongoConfig.DatabaseName))
	return client, client.Database(conf.MongoConfig.DatabaseName), nil
}
