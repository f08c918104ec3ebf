package server

import (
	"net/http"

	catalogService "AgentPedia/internal/modules/catalog/application/service"
	"AgentPedia/internal/modules/search/application/service"
	mcpHandlers "AgentPedia/internal/modules/search/infrastructure/mcp/server/handlers"

	"github.com/mark3labs/mcp-go/server"
)

type DirectoryServerConfig struct {
	Name    string
	Version string
	Path    string
}

type DirectoryServerDependencies struct {
	SearchSvc  service.SearchService
	CatalogSvc catalogService.CatalogService
}

// NewDirectoryMCPServer 创建目录 MCP Server
func NewDirectoryMCPServer(conf DirectoryServerConfig, deps DirectoryServerDependencies) *server.MCPServer {
	s := server.NewMCPServer(
		conf.Name,
		conf.Version,
		server.WithToolCapabilities(false),
	)
	if deps.SearchSvc != nil {
		mcpHandlers.NewDirectoryToolHandler(deps.SearchSvc, deps.CatalogSvc).RegisterTools(s)
	}
	return s
}

// NewHTTPHandler 以 Streamable HTTP 方式暴露，挂载在 conf.Path
func NewHTTPHandler(conf DirectoryServerConfig, deps DirectoryServerDependencies) http.Handler {
	return server.NewStreamableHTTPServer(
		NewDirectoryMCPServer(conf, deps),
		server.WithEndpointPath(conf.Path),
		server.WithStateLess(true),
	)
}
