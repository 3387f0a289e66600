package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/fieldlog/internal/app"
	"github.com/rpggio/fieldlog/internal/config"
	"github.com/rpggio/fieldlog/internal/mcp"
	"github.com/rpggio/fieldlog/internal/scheduler"
	"github.com/rpggio/fieldlog/internal/transport"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := app.NewLogger(cfg)
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStore(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store ready", "driver", st.Driver)

	svc := app.NewServices(st, logger)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Projects: svc.Projects, Progress: svc.Progress},
		Resolver:      st.APIKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultActor:  cfg.Auth.DefaultActor,
		Logger:        logger,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Reconcile.Enabled {
		manager, err := scheduler.NewManager(svc.Reconcile, scheduler.Config{
			Interval: cfg.Reconcile.Interval,
			Repair:   cfg.Reconcile.Repair,
		}, logger)
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		manager.Start()
		g.Go(func() error {
			<-ctx.Done()
			return manager.Stop()
		})
	}

	if cfg.Transport.Mode == config.ModeStdio {
		g.Go(func() error {
			// stdin closing ends the process.
			defer stop()
			logger.Info("starting stdio transport", "actor", cfg.Auth.DefaultActor)
			err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		return g.Wait()
	}

	handler, err := newHTTPHandler(cfg, st, svc, mcpServer, logger)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "auth", cfg.Auth.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newHTTPHandler(cfg config.Config, st *app.Store, svc *app.Services, mcpServer *sdkmcp.Server, logger *slog.Logger) (http.Handler, error) {
	limit, err := transport.NewIPRateLimiter(cfg.RateLimit.PerIP)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	var resolver transport.ActorResolver
	if cfg.Auth.Enabled {
		resolver = st.APIKeys
	}

	return transport.NewServer(transport.Config{
		Projects:    svc.Projects,
		Progress:    svc.Progress,
		Activity:    svc.Activity,
		Reconcile:   svc.Reconcile,
		Auth:        transport.AuthMiddleware(resolver, cfg.Auth.DefaultActor),
		AdminSecret: cfg.Auth.AdminSecret,
		MCP:         mcp.NewHTTPHandler(mcpServer),
		Secure:      transport.NewSecure(transport.SecureOptions(cfg.Server.Host == "localhost" || cfg.Server.Host == "127.0.0.1")),
		IPRateLimit: limit,
		Logger:      logger,
	}), nil
}
