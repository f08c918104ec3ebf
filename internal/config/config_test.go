package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENTPEDIA_JWT_KEY", "")
	c, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "AgentPedia", c.AppName)
	assert.Equal(t, 8000, c.MainConfig.Port)
	assert.Equal(t, "/api/v1", c.APIPrefix)
	assert.Equal(t, "agents", c.ElasticsearchConfig.Index)
	assert.Equal(t, 10, c.SecurityConfig.MaxAPIKeys)
	assert.Equal(t, "/mcp", c.MCPConfig.Path)
	assert.Same(t, c, GetConfig())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[mainConfig]
port = 9001
environment = "staging"

[jwtConfig]
key = "from-file"

[kafkaConfig]
brokers = ["127.0.0.1:9092"]

[securityConfig]
maxAPIKeys = 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("AGENTPEDIA_JWT_KEY", "from-env")
	t.Setenv("AGENTPEDIA_ENVIRONMENT", "")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, c.MainConfig.Port)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, "from-env", c.JwtConfig.Key)
	assert.Equal(t, []string{"127.0.0.1:9092"}, c.KafkaConfig.Brokers)
	assert.Equal(t, "agentpedia.catalog.changed", c.KafkaConfig.CatalogTopic)
	assert.Equal(t, 3, c.SecurityConfig.MaxAPIKeys)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[mainConfig\nport = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
