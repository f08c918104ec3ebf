package initial

import (
	"fmt"
	"time"

	"AgentPedia/internal/config"
	agentEntity "AgentPedia/internal/modules/agent/domain/entity"
	apikeyEntity "AgentPedia/internal/modules/apikey/domain/entity"
	conversationEntity "AgentPedia/internal/modules/conversation/domain/entity"
	rbacEntity "AgentPedia/internal/modules/rbac/domain/entity"
	userEntity "AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase 按 databaseConfig.driver 打开关系库，dsn 非空时优先使用
func OpenDatabase(conf *config.Config) (*gorm.DB, error) {
	dial, err := dialector(conf.DatabaseConfig)
	if err != nil {
		return nil, err
	}
	gormLogger := logger.New(
		zap.NewStdLog(zlog.L()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dial, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if n := conf.DatabaseConfig.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := conf.DatabaseConfig.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	zlog.Info("数据库连接成功", zap.String("driver", conf.DatabaseConfig.Driver))
	return db, nil
}

func dialector(c config.DatabaseConfig) (gorm.Dialector, error) {
	port := c.Port
	switch c.Driver {
	case "mysql":
		dsn := c.DSN
		if dsn == "" {
			if port == 0 {
				port = 3306
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				c.User, c.Password, c.Host, port, c.DatabaseName)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := c.DSN
		if dsn == "" {
			if port == 0 {
				port = 5432
			}
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
				c.Host, c.User, c.Password, c.DatabaseName, port)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := c.DSN
		if dsn == "" {
			dsn = c.DatabaseName + ".db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Models 全部关系表
func Models() []interface{} {
	return []interface{}{
		&userEntity.UserInfo{},
		&rbacEntity.Permission{},
		&rbacEntity.Role{},
		&rbacEntity.UserRoleAssignment{},
		&agentEntity.Agent{},
		&agentEntity.AgentTool{},
		&conversationEntity.Conversation{},
		&conversationEntity.Message{},
		&apikeyEntity.APIKey{},
	}
}

// AutoMigrate 自动迁移，如果没有建表，会自动创建对应的表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
