package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/paging"
)

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	List(ctx context.Context, req project.ListRequest) (*paging.Result[project.Detail], error)
	Get(ctx context.Context, id string) (*project.Detail, error)
}

// ProgressService defines daily progress operations needed by MCP.
type ProgressService interface {
	Upsert(ctx context.Context, req progress.UpsertRequest) (*progress.Result, error)
	Get(ctx context.Context, req progress.GetRequest) (*progress.Result, error)
	Delete(ctx context.Context, req progress.DeleteRequest) (*progress.Result, error)
	List(ctx context.Context, req progress.ListRequest) (*paging.Result[progress.Record], error)
	Search(ctx context.Context, req progress.SearchRequest) ([]progress.SearchResult, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Projects ProjectService
	Progress ProgressService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      ActorResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// DefaultActor runs every call in stdio mode or when auth is disabled.
	DefaultActor string
	Version      string
	Logger       *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "fieldlog",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Stdio is a local, single user transport.
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled || cfg.Resolver == nil {
		server.AddReceivingMiddleware(defaultActorMiddleware(cfg.DefaultActor))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Services, logger)

	return server
}
