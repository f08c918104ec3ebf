package http

import (
	"context"
	"net/http"
	"time"

	"AgentPedia/internal/config"
	apikeyMiddleware "AgentPedia/internal/middleware/apikey"
	jwtMiddleware "AgentPedia/internal/middleware/jwt"
	"AgentPedia/internal/middleware/metrics"
	rbacMiddleware "AgentPedia/internal/middleware/rbac"
	agentService "AgentPedia/internal/modules/agent/application/service"
	agentPersistence "AgentPedia/internal/modules/agent/infrastructure/persistence"
	agentHandler "AgentPedia/internal/modules/agent/interface/http"
	apikeyService "AgentPedia/internal/modules/apikey/application/service"
	apikeyRepository "AgentPedia/internal/modules/apikey/domain/repository"
	apikeyPersistence "AgentPedia/internal/modules/apikey/infrastructure/persistence"
	"AgentPedia/internal/modules/apikey/infrastructure/ratelimit"
	apikeyHandler "AgentPedia/internal/modules/apikey/interface/http"
	catalogService "AgentPedia/internal/modules/catalog/application/service"
	catalogRepository "AgentPedia/internal/modules/catalog/domain/repository"
	catalogPersistence "AgentPedia/internal/modules/catalog/infrastructure/persistence"
	catalogMemstore "AgentPedia/internal/modules/catalog/infrastructure/persistence/memstore"
	catalogHandler "AgentPedia/internal/modules/catalog/interface/http"
	conversationService "AgentPedia/internal/modules/conversation/application/service"
	conversationPersistence "AgentPedia/internal/modules/conversation/infrastructure/persistence"
	conversationHandler "AgentPedia/internal/modules/conversation/interface/http"
	favoriteService "AgentPedia/internal/modules/favorite/application/service"
	favoriteRepository "AgentPedia/internal/modules/favorite/domain/repository"
	favoritePersistence "AgentPedia/internal/modules/favorite/infrastructure/persistence"
	favoriteMemstore "AgentPedia/internal/modules/favorite/infrastructure/persistence/memstore"
	favoriteHandler "AgentPedia/internal/modules/favorite/interface/http"
	rbacService "AgentPedia/internal/modules/rbac/application/service"
	rbacPersistence "AgentPedia/internal/modules/rbac/infrastructure/persistence"
	rbacHandler "AgentPedia/internal/modules/rbac/interface/http"
	searchService "AgentPedia/internal/modules/search/application/service"
	"AgentPedia/internal/modules/search/domain/engine"
	mcpServer "AgentPedia/internal/modules/search/infrastructure/mcp/server"
	searchHandler "AgentPedia/internal/modules/search/interface/http"
	userRespond "AgentPedia/internal/modules/user/application/dto/respond"
	userService "AgentPedia/internal/modules/user/application/service"
	userEntity "AgentPedia/internal/modules/user/domain/entity"
	userPersistence "AgentPedia/internal/modules/user/infrastructure/persistence"
	userHandler "AgentPedia/internal/modules/user/interface/http"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/ssl"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 外部资源，除 DB 外均可为 nil
type Deps struct {
	DB        *gorm.DB
	Redis     *goredis.Client
	MongoDB   *mongo.Database
	Engine    engine.Engine
	Notifier  catalogService.ChangeNotifier
	ChatModel model.BaseChatModel
	Registry  *prometheus.Registry
}

// Server 路由与需要在进程生命周期内使用的服务
type Server struct {
	Engine  *gin.Engine
	Search  searchService.SearchService
	RBAC    rbacService.RBACService
	Users   userService.UserInfoService
	Catalog catalogRepository.CatalogRepository
	Favs    favoriteRepository.FavoriteRepository
}

// CatalogRepository Mongo 未配置时为进程内存储
func CatalogRepository(db *mongo.Database) catalogRepository.CatalogRepository {
	if db == nil {
		return catalogMemstore.NewCatalogRepository()
	}
	return catalogPersistence.NewCatalogRepository(db)
}

// FavoriteRepository Mongo 未配置时为进程内存储
func FavoriteRepository(db *mongo.Database) favoriteRepository.FavoriteRepository {
	if db == nil {
		return favoriteMemstore.NewFavoriteRepository()
	}
	return favoritePersistence.NewFavoriteRepository(db)
}

// RoleSync users.role 变更时撤销旧角色分配并授予新角色
func RoleSync(rbacSvc rbacService.RBACService) userService.RoleAssigner {
	return func(ctx context.Context, userID int64, role, previous string, grantedBy int64) error {
		if previous != "" && previous != role {
			if _, err := rbacSvc.RevokeRole(ctx, userID, previous); err != nil && xerr.CodeOf(err) != xerr.NotFound {
				return err
			}
		}
		reason := "用户角色变更"
		if previous == "" {
			reason = "注册默认角色"
		}
		_, err := rbacSvc.AssignRole(ctx, userID, role, grantedBy, nil, reason)
		return err
	}
}

// BootstrapSuperAdmin 将已注册用户提升为 super_admin 并同步 RBAC 分配
func BootstrapSuperAdmin(ctx context.Context, db *gorm.DB, username string) (*userEntity.UserInfo, error) {
	rbacSvc := rbacService.NewRBACService(rbacPersistence.NewRBACRepository(db))
	users := userService.NewUserInfoService(userPersistence.NewUserInfoRepository(db), RoleSync(rbacSvc))
	return users.PromoteSuperAdmin(ctx, username)
}

func limiter(c *goredis.Client) apikeyRepository.RateLimiter {
	if c == nil {
		zlog.Warn("Redis 未连接，API Key 限流使用进程内计数")
		return ratelimit.NewMemoryLimiter()
	}
	return ratelimit.NewRedisLimiter(c)
}

// NewServer 组装全部模块并注册路由
func NewServer(conf *config.Config, deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.NewMetrics(reg)

	// 关系库
	rbacSvc := rbacService.NewRBACService(rbacPersistence.NewRBACRepository(deps.DB))
	agentSvc := agentService.NewAgentService(agentPersistence.NewAgentRepository(deps.DB))
	conversationSvc := conversationService.NewConversationService(
		conversationPersistence.NewConversationRepository(deps.DB),
		agentSvc,
		deps.ChatModel,
		conversationService.WithTokenObserver(m),
	)
	apikeySvc := apikeyService.NewAPIKeyService(apikeyPersistence.NewAPIKeyRepository(deps.DB), limiter(deps.Redis))
	userSvc := userService.NewUserInfoService(
		userPersistence.NewUserInfoRepository(deps.DB),
		RoleSync(rbacSvc),
		func(ctx context.Context, userID int64, st *userRespond.UserStats) error {
			total, active, err := agentSvc.CountByOwner(ctx, userID)
			st.TotalAgents, st.ActiveAgents = total, active
			return err
		},
		func(ctx context.Context, userID int64, st *userRespond.UserStats) error {
			cs, err := conversationSvc.Stats(ctx, caller.Caller{UserID: userID})
			if err != nil {
				return err
			}
			st.TotalConversations = cs.TotalConversations
			st.TotalMessages = cs.TotalMessages
			st.TotalTokensUsed = cs.TotalTokens
			st.TotalCost = cs.TotalCost
			return nil
		},
		func(ctx context.Context, userID int64, st *userRespond.UserStats) error {
			n, err := apikeySvc.CountByUser(ctx, userID)
			st.APIKeysCount = n
			return err
		},
	)

	// 文档库与搜索
	catalogRepo := CatalogRepository(deps.MongoDB)
	searchSvc := searchService.NewSearchService(deps.Engine, catalogRepo, m)
	notifier := deps.Notifier
	if notifier == nil {
		notifier = catalogService.NotifierFunc(searchSvc.ApplyChange)
	}
	catalogSvc := catalogService.NewCatalogService(catalogRepo, notifier)
	favRepo := FavoriteRepository(deps.MongoDB)
	favoriteSvc := favoriteService.NewFavoriteService(favRepo, catalogSvc)

	if conf.MainConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", apikeyMiddleware.HeaderAPIKey}
	corsConfig.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	r.Use(cors.New(corsConfig))
	r.Use(ssl.SecureHandler(ssl.Options{
		ForceTLS:    conf.MainConfig.ForceTLS,
		SSLHost:     conf.MainConfig.Host,
		Development: conf.MainConfig.Environment == "development",
	}))
	r.Use(m.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"service":     conf.AppName,
			"version":     conf.MainConfig.Version,
			"environment": conf.MainConfig.Environment,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if conf.MCPConfig.Enabled {
		mcpConf := mcpServer.DirectoryServerConfig{
			Name:    conf.MCPConfig.Name,
			Version: conf.MCPConfig.Version,
			Path:    conf.MCPConfig.Path,
		}
		h := gin.WrapH(mcpServer.NewHTTPHandler(mcpConf, mcpServer.DirectoryServerDependencies{
			SearchSvc:  searchSvc,
			CatalogSvc: catalogSvc,
		}))
		r.Any(conf.MCPConfig.Path, h)
	}

	resolve := func(ctx context.Context, userID int64) (caller.Caller, error) {
		u, err := userSvc.Get(ctx, userID, caller.Caller{UserID: userID})
		if err != nil {
			return caller.Caller{}, err
		}
		if !u.Active() {
			return caller.Caller{}, xerr.New(xerr.Unauthorized, "用户已停用")
		}
		return caller.Caller{UserID: u.Id, Username: u.Username, Role: u.Role}, nil
	}
	v1 := r.Group(conf.APIPrefix, apikeyMiddleware.Auth(apikeySvc, resolve, m))
	public := v1.Group("", jwtMiddleware.OptionalAuth())
	authed := v1.Group("", jwtMiddleware.Auth())
	systemManage := rbacMiddleware.Require(rbacSvc, "system.manage")

	userH := userHandler.NewUserInfoHandler(userSvc)
	v1.POST("/users/register", userH.Register)
	v1.POST("/users/login", userH.Login)
	v1.POST("/users/refresh", userH.Refresh)
	v1.POST("/users/forgot-password", userH.NotImplemented)
	v1.POST("/users/reset-password", userH.NotImplemented)
	v1.POST("/users/verify-email", userH.NotImplemented)
	authed.GET("/users/me", userH.Me)
	authed.PUT("/users/me", userH.UpdateMe)
	authed.POST("/users/change-password", userH.ChangePassword)
	authed.GET("/users/stats", userH.Stats)
	authed.GET("/users", userH.List)
	authed.GET("/users/:id", userH.Get)
	authed.PUT("/users/:id", userH.Update)
	authed.POST("/users/:id/activate", userH.Activate)
	authed.POST("/users/:id/deactivate", userH.Deactivate)
	authed.DELETE("/users/:id", userH.Delete)

	rbacH := rbacHandler.NewRBACHandler(rbacSvc)
	authed.GET("/rbac/roles", rbacH.ListRoles)
	authed.GET("/rbac/me/permissions", rbacH.MyPermissions)
	authed.GET("/rbac/users/:id/permissions", rbacMiddleware.Require(rbacSvc, "role.read"), rbacH.UserPermissions)
	authed.POST("/rbac/users/:id/roles", rbacMiddleware.Require(rbacSvc, "role.update"), rbacH.AssignRole)
	authed.DELETE("/rbac/users/:id/roles/:code", rbacMiddleware.Require(rbacSvc, "role.update"), rbacH.RevokeRole)
	authed.POST("/rbac/cleanup", systemManage, rbacH.CleanupExpired)

	agentH := agentHandler.NewAgentHandler(agentSvc)
	public.GET("/agents", agentH.List)
	public.GET("/agents/:id", agentH.Get)
	authed.GET("/agents/my", agentH.ListMine)
	authed.POST("/agents", agentH.Create)
	authed.POST("/agents/import", agentH.Import)
	authed.PUT("/agents/:id", agentH.Update)
	authed.DELETE("/agents/:id", agentH.Delete)
	authed.POST("/agents/:id/clone", agentH.Clone)
	authed.POST("/agents/:id/publish", agentH.Publish)
	authed.POST("/agents/:id/unpublish", agentH.Unpublish)
	authed.GET("/agents/:id/stats", agentH.Stats)
	authed.GET("/agents/:id/export", agentH.Export)
	authed.PUT("/agents/:id/tools/:tool_name/toggle", agentH.ToggleTool)

	catalogH := catalogHandler.NewCatalogHandler(catalogSvc)
	v1.GET("/catalog/agents", catalogH.List)
	v1.GET("/catalog/agents/slug/:slug", catalogH.GetBySlug)
	v1.GET("/catalog/agents/:id", catalogH.Get)
	v1.GET("/catalog/agents/:id/related", catalogH.Related)
	authed.POST("/catalog/agents", catalogH.Create)
	authed.PUT("/catalog/agents/:id", catalogH.Update)
	authed.DELETE("/catalog/agents/:id", catalogH.Delete)

	conversationH := conversationHandler.NewConversationHandler(conversationSvc)
	authed.POST("/conversations", conversationH.Create)
	authed.GET("/conversations", conversationH.List)
	authed.GET("/conversations/stats", conversationH.Stats)
	authed.GET("/conversations/:id", conversationH.Get)
	authed.PUT("/conversations/:id", conversationH.Update)
	authed.DELETE("/conversations/:id", conversationH.Delete)
	authed.POST("/conversations/:id/messages", conversationH.AddMessage)
	authed.GET("/conversations/:id/messages", conversationH.ListMessages)
	authed.PUT("/conversations/messages/:message_id", conversationH.UpdateMessage)
	authed.DELETE("/conversations/messages/:message_id", conversationH.DeleteMessage)
	authed.POST("/conversations/:id/chat", conversationH.Chat)

	apikeyH := apikeyHandler.NewAPIKeyHandler(apikeySvc)
	authed.POST("/api-keys", apikeyH.Create)
	authed.GET("/api-keys", apikeyH.List)
	authed.GET("/api-keys/stats", apikeyH.Stats)
	authed.GET("/api-keys/:id", apikeyH.Get)
	authed.PUT("/api-keys/:id", apikeyH.Update)
	authed.DELETE("/api-keys/:id", apikeyH.Delete)
	authed.POST("/api-keys/:id/activate", apikeyH.Activate)
	authed.POST("/api-keys/:id/deactivate", apikeyH.Deactivate)
	authed.POST("/api-keys/:id/revoke", apikeyH.Revoke)
	authed.POST("/api-keys/:id/extend", apikeyH.Extend)
	authed.GET("/api-keys/:id/usage", apikeyH.Usage)

	favoriteH := favoriteHandler.NewFavoriteHandler(favoriteSvc)
	authed.POST("/favorites", favoriteH.Add)
	authed.GET("/favorites", favoriteH.List)
	authed.GET("/favorites/check", favoriteH.Check)
	authed.GET("/favorites/:agent_id/status", favoriteH.Status)
	authed.DELETE("/favorites/:agent_id", favoriteH.Remove)

	searchH := searchHandler.NewSearchHandler(searchSvc)
	v1.GET("/search/agents", searchH.SearchAgents)
	v1.GET("/search/suggestions", searchH.Suggestions)
	v1.GET("/search/popular", searchH.Popular)
	v1.GET("/search/types", searchH.SearchTypes)
	v1.GET("/search/sort-types", searchH.SortTypes)
	authed.POST("/search/reindex", systemManage, searchH.Reindex)

	return &Server{Engine: r, Search: searchSvc, RBAC: rbacSvc, Users: userSvc, Catalog: catalogRepo, Favs: favRepo}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			zlog.Error("request", fields...)
			return
		}
		zlog.Info("request", fields...)
	}
}
