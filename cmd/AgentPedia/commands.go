package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	https_server "AgentPedia/api/http"
	"AgentPedia/internal/config"
	"AgentPedia/internal/initial"
	"AgentPedia/internal/modules/catalog/interface/event"
	"AgentPedia/internal/modules/conversation/infrastructure/llm"
	rbacService "AgentPedia/internal/modules/rbac/application/service"
	rbacPersistence "AgentPedia/internal/modules/rbac/infrastructure/persistence"
	searchService "AgentPedia/internal/modules/search/application/service"
	"AgentPedia/pkg/zlog"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func closeMongo(c *mongo.Client) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Disconnect(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf := config.GetConfig()
	ctx, stop := signalContext()
	defer stop()

	db, err := initial.OpenDatabase(conf)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB(db)

	rdb := initial.OpenRedis(ctx, conf)
	if rdb != nil {
		defer rdb.Close()
	}

	mongoClient, mongoDB, err := initial.OpenMongo(ctx, conf)
	if err != nil {
		zlog.Warn("MongoDB 连接失败，目录与收藏使用进程内存储", zap.Error(err))
	}
	defer closeMongo(mongoClient)

	eng, err := initial.OpenSearchEngine(conf)
	if err != nil {
		zlog.Warn("搜索引擎初始化失败，搜索回退到文档存储", zap.Error(err))
		eng = nil
	}

	deps := https_server.Deps{DB: db, Redis: rdb, MongoDB: mongoDB, Engine: eng}

	if initial.KafkaEnabled(conf) {
		notifier, pub, err := initial.OpenCatalogPublisher(conf)
		if err != nil {
			zlog.Warn("Kafka 不可用，目录变更同步写入索引", zap.Error(err))
		} else {
			defer pub.Close()
			deps.Notifier = notifier
		}
	}

	chatModel, meta, err := llm.NewChatModelFromConfig(ctx, conf)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		zlog.Info("未配置聊天模型，对话接口不可用")
	case err != nil:
		zlog.Warn("聊天模型初始化失败", zap.Error(err))
	default:
		deps.ChatModel = chatModel
		zlog.Info("聊天模型已就绪", zap.String("provider", meta.Provider), zap.String("model", meta.Model))
	}

	srv := https_server.NewServer(conf, deps)
	srv.Search.Initialize(ctx)
	if err := srv.Catalog.EnsureIndexes(ctx); err != nil {
		zlog.Warn("目录索引创建失败", zap.Error(err))
	}
	if err := srv.Favs.EnsureIndexes(ctx); err != nil {
		zlog.Warn("收藏索引创建失败", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("服务器正在启动", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("服务器关闭超时", zap.Error(err))
	}
	zlog.Info("服务器已关闭")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conf := config.GetConfig()
	ctx := cmd.Context()

	db, err := initial.OpenDatabase(conf)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDB(db)

	if err := initial.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := rbacService.NewRBACService(rbacPersistence.NewRBACRepository(db)).InitializeDefaults(ctx); err != nil {
		return fmt.Errorf("init rbac: %w", err)
	}
	zlog.Info("关系库迁移完成")

	if adminUsername != "" {
		u, err := https_server.BootstrapSuperAdmin(ctx, db, adminUsername)
		if err != nil {
			return fmt.Errorf("bootstrap admin %q: %w", adminUsername, err)
		}
		zlog.Info("超级管理员已就绪", zap.Int64("user_id", u.Id), zap.String("username", u.Username))
	}

	mongoClient, mongoDB, err := initial.OpenMongo(ctx, conf)
	if err != nil {
		return fmt.Errorf("open mongo: %w", err)
	}
	if mongoDB == nil {
		zlog.Info("未配置 MongoDB，跳过文档索引")
		return nil
	}
	defer closeMongo(mongoClient)

	if err := https_server.CatalogRepository(mongoDB).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("catalog indexes: %w", err)
	}
	if err := https_server.FavoriteRepository(mongoDB).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("favorite indexes: %w", err)
	}
	zlog.Info("Mongo 索引已创建")
	return nil
}

// openIndexing 索引类命令需要文档存储与搜索引擎
func openIndexing(ctx context.Context, conf *config.Config) (searchService.SearchService, func(), error) {
	mongoClient, mongoDB, err := initial.OpenMongo(ctx, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("open mongo: %w", err)
	}
	if mongoDB == nil {
		return nil, nil, errors.New("mongoConfig.uri 未配置")
	}
	eng, err := initial.OpenSearchEngine(conf)
	if err != nil {
		closeMongo(mongoClient)
		return nil, nil, fmt.Errorf("open search engine: %w", err)
	}
	if eng == nil {
		closeMongo(mongoClient)
		return nil, nil, errors.New("elasticsearchConfig 未启用")
	}
	svc := searchService.NewSearchService(eng, https_server.CatalogRepository(mongoDB), nil)
	svc.Initialize(ctx)
	if !svc.Available() {
		closeMongo(mongoClient)
		return nil, nil, errors.New("搜索引擎不可用")
	}
	return svc, func() { closeMongo(mongoClient) }, nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	svc, closeFn, err := openIndexing(ctx, config.GetConfig())
	if err != nil {
		return err
	}
	defer closeFn()

	start := time.Now()
	n, err := svc.ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	zlog.Info("索引重建完成", zap.Int("indexed", n), zap.Duration("took", time.Since(start)))
	return nil
}

func runIndexer(cmd *cobra.Command, args []string) error {
	conf := config.GetConfig()
	if !initial.KafkaEnabled(conf) {
		return errors.New("kafkaConfig.brokers 未配置")
	}
	ctx, stop := signalContext()
	defer stop()

	svc, closeFn, err := openIndexing(ctx, conf)
	if err != nil {
		return err
	}
	defer closeFn()

	consumer, err := initial.OpenCatalogConsumer(conf)
	if err != nil {
		return fmt.Errorf("open consumer: %w", err)
	}
	defer consumer.Close()

	zlog.Info("目录变更索引消费者已启动", zap.String("topic", conf.KafkaConfig.CatalogTopic))
	if err := event.NewIndexWorker(consumer, svc).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zlog.Info("索引消费者已退出")
	return nil
}
