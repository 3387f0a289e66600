// Package app wires stores and services for the fieldlog commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/fieldlog/internal/config"
	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/postgres"
	"github.com/rpggio/fieldlog/internal/sqlite"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ProjectStore persists projects.
type ProjectStore interface {
	project.Repository
	progress.ProjectReader
}

// EmployeeStore persists employee profiles.
type EmployeeStore interface {
	employee.Repository
	Create(ctx context.Context, emp *employee.Employee) error
}

// APIKeyStore persists hashed API keys.
type APIKeyStore interface {
	Create(ctx context.Context, token, userID, description string) error
	ResolveActor(ctx context.Context, token string) (string, error)
}

// Store is one storage backend with every repository the services need.
type Store struct {
	Driver    string
	Projects  ProjectStore
	Records   progress.RecordRepository
	Search    progress.SearchRepository
	Ledger    progress.Ledger
	Reconcile reconcile.Store
	Activity  activity.Repository
	Employees EmployeeStore
	APIKeys   APIKeyStore

	close func()
}

// Close releases the backend connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore opens the configured backend and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := ensureDir(cfg.Path); err != nil {
			return nil, fmt.Errorf("failed to prepare database path: %w", err)
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Driver:    cfg.Driver,
			Projects:  sqlite.NewProjectRepository(db),
			Records:   sqlite.NewRecordRepository(db),
			Search:    sqlite.NewSearchRepository(db),
			Ledger:    sqlite.NewLedger(db),
			Reconcile: sqlite.NewReconcileStore(db),
			Activity:  sqlite.NewActivityRepository(db),
			Employees: sqlite.NewEmployeeRepository(db),
			APIKeys:   sqlite.NewAPIKeyRepository(db),
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Store{
			Driver:    cfg.Driver,
			Projects:  postgres.NewProjectRepository(db),
			Records:   postgres.NewRecordRepository(db),
			Search:    postgres.NewSearchRepository(db),
			Ledger:    postgres.NewLedger(db),
			Reconcile: postgres.NewReconcileStore(db),
			Activity:  postgres.NewActivityRepository(db),
			Employees: postgres.NewEmployeeRepository(db),
			APIKeys:   postgres.NewAPIKeyRepository(db),
			close:     db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
}

// Services holds the domain services built over a store.
type Services struct {
	Projects  *project.Service
	Progress  *progress.Service
	Activity  *activity.Service
	Reconcile *reconcile.Service
	Employees *employee.Service
}

// NewServices builds every domain service over st.
func NewServices(st *Store, logger *slog.Logger) *Services {
	employees := employee.NewService(st.Employees)
	return &Services{
		Projects:  project.NewService(st.Projects, st.Activity, logger),
		Progress:  progress.NewService(st.Ledger, st.Records, st.Search, st.Projects, employees, st.Activity, logger),
		Activity:  activity.NewService(st.Activity, logger),
		Reconcile: reconcile.NewService(st.Reconcile, st.Activity, logger),
		Employees: employees,
	}
}

// NewLogger builds the process logger. A configured log path wins; otherwise stdio mode
// logs to stderr since stdout carries the protocol.
func NewLogger(cfg config.Config) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if cfg.Transport.Mode == config.ModeStdio {
		w = os.Stderr
	}
	if cfg.Log.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Log.Path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		w = rotating
		closer = rotating
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	return logger, closer
}

func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
