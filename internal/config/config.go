package config

import (
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName     string `toml:"appName"`
	Version     string `toml:"version"`
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	ForceTLS    bool   `toml:"forceTLS"`
	APIPrefix   string `toml:"apiPrefix"`
}

type DatabaseConfig struct {
	Driver       string `toml:"driver"` // mysql | postgres | sqlite
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"maxOpenConns"`
	MaxIdleConns int    `toml:"maxIdleConns"`
}

type MongoConfig struct {
	URI          string `toml:"uri"`
	DatabaseName string `toml:"databaseName"`
	TimeoutSec   int    `toml:"timeoutSeconds"`
}

type ElasticsearchConfig struct {
	Enabled   bool     `toml:"enabled"`
	Addresses []string `toml:"addresses"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	Index     string   `toml:"index"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

type JwtConfig struct {
	Key                string `toml:"key"`
	AccessExpireMinute int    `toml:"accessExpireMinutes"`
	RefreshExpireDays  int    `toml:"refreshExpireDays"`
	Issuer             string `toml:"issuer"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	CatalogTopic    string   `toml:"catalogTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type ChatModelConfig struct {
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"apiKey"`
	AccessKey       string  `toml:"accessKey"`
	SecretKey       string  `toml:"secretKey"`
	BaseURL         string  `toml:"baseURL"`
	Region          string  `toml:"region"`
	Model           string  `toml:"model"`
	TimeoutSeconds  int     `toml:"timeoutSeconds"`
	RetryTimes      int     `toml:"retryTimes"`
	ByAzure         bool    `toml:"byAzure"`
	AzureAPIVersion string  `toml:"azureAPIVersion"`
	CostPer1KTokens float64 `toml:"costPer1KTokens"`
}

type AIConfig struct {
	ChatModel ChatModelConfig `toml:"chatModel"`
}

type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Path    string `toml:"path"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type SecurityConfig struct {
	MaxLoginAttempts int `toml:"maxLoginAttempts"`
	LockMinutes      int `toml:"lockMinutes"`
	MaxAPIKeys       int `toml:"maxAPIKeys"`
}

type Config struct {
	MainConfig          `toml:"mainConfig"`
	DatabaseConfig      `toml:"databaseConfig"`
	MongoConfig         `toml:"mongoConfig"`
	ElasticsearchConfig `toml:"elasticsearchConfig"`
	LogConfig           `toml:"logConfig"`
	JwtConfig           `toml:"jwtConfig"`
	KafkaConfig         `toml:"kafkaConfig"`
	AIConfig            `toml:"aiConfig"`
	MCPConfig           `toml:"mcpConfig"`
	RedisConfig         `toml:"redisConfig"`
	SecurityConfig      `toml:"securityConfig"`
}

const defaultPath = "configs/config_local.toml"

var (
	config *Config
	mu     sync.RWMutex
)

// Load 读取 toml 配置文件，文件不存在时使用默认值
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AGENTPEDIA_CONFIG")
	}
	if path == "" {
		path = defaultPath
	}
	c := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, err
		}
	}
	applyEnv(c)
	applyDefaults(c)
	SetConfig(c)
	return c, nil
}

// GetConfig 获取全局配置，首次调用时加载默认路径
func GetConfig() *Config {
	mu.RLock()
	c := config
	mu.RUnlock()
	if c != nil {
		return c
	}
	c, err := Load("")
	if err != nil {
		c = &Config{}
		applyDefaults(c)
		SetConfig(c)
	}
	return c
}

// SetConfig 替换全局配置
func SetConfig(c *Config) {
	mu.Lock()
	config = c
	mu.Unlock()
}

// Default 返回填充默认值的配置
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

func applyEnv(c *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTPEDIA_JWT_KEY")); v != "" {
		c.JwtConfig.Key = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTPEDIA_DATABASE_DSN")); v != "" {
		c.DatabaseConfig.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTPEDIA_MONGO_URI")); v != "" {
		c.MongoConfig.URI = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTPEDIA_ENVIRONMENT")); v != "" {
		c.MainConfig.Environment = v
	}
}

func applyDefaults(c *Config) {
	if c.AppName == "" {
		c.AppName = "AgentPedia"
	}
	if c.MainConfig.Version == "" {
		c.MainConfig.Version = "1.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.APIPrefix == "" {
		c.APIPrefix = "/api/v1"
	}
	if c.DatabaseConfig.Driver == "" {
		c.DatabaseConfig.Driver = "mysql"
	}
	if c.DatabaseConfig.DatabaseName == "" {
		c.DatabaseConfig.DatabaseName = "agentpedia"
	}
	if c.MongoConfig.DatabaseName == "" {
		c.MongoConfig.DatabaseName = "agentpedia"
	}
	if c.MongoConfig.TimeoutSec <= 0 {
		c.MongoConfig.TimeoutSec = 10
	}
	if c.ElasticsearchConfig.Index == "" {
		c.ElasticsearchConfig.Index = "agents"
	}
	if c.JwtConfig.AccessExpireMinute <= 0 {
		c.JwtConfig.AccessExpireMinute = 30
	}
	if c.JwtConfig.RefreshExpireDays <= 0 {
		c.JwtConfig.RefreshExpireDays = 7
	}
	if c.KafkaConfig.CatalogTopic == "" {
		c.KafkaConfig.CatalogTopic = "agentpedia.catalog.changed"
	}
	if c.KafkaConfig.ConsumerGroupID == "" {
		c.KafkaConfig.ConsumerGroupID = "agentpedia-indexer"
	}
	if c.MCPConfig.Name == "" {
		c.MCPConfig.Name = "agentpedia-directory"
	}
	if c.MCPConfig.Version == "" {
		c.MCPConfig.Version = c.MainConfig.Version
	}
	if c.MCPConfig.Path == "" {
		c.MCPConfig.Path = "/mcp"
	}
	if c.SecurityConfig.MaxLoginAttempts <= 0 {
		c.SecurityConfig.MaxLoginAttempts = 5
	}
	if c.SecurityConfig.LockMinutes <= 0 {
		c.SecurityConfig.LockMinutes = 30
	}
	if c.SecurityConfig.MaxAPIKeys <= 0 {
		c.SecurityConfig.MaxAPIKeys = 10
	}
}
