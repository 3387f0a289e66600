// Package main provides administrative maintenance utilities.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rpggio/fieldlog/internal/app"
	"github.com/rpggio/fieldlog/internal/config"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
)

const usage = `usage: admin <command> [flags]

commands:
  create-employee  register the employee profile owned by a user
  create-api-key   issue an API key that authenticates a user
  reconcile        compare stored aggregates with the records behind them`

var errUsage = errors.New("invalid usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	var handler func(context.Context, *app.Store, *app.Services, []string, io.Writer) error
	switch command {
	case "create-employee":
		handler = createEmployee
	case "create-api-key":
		handler = createAPIKey
	case "reconcile":
		handler = runReconcile
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	st, err := app.OpenStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	return handler(ctx, st, app.NewServices(st, slog.New(slog.DiscardHandler)), args, out)
}

func createEmployee(ctx context.Context, st *app.Store, _ *app.Services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-employee", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var emp employee.Employee
	fs.StringVar(&emp.ID, "id", "", "employee ID (default: generated)")
	fs.StringVar(&emp.UserID, "user", "", "user ID that owns the profile")
	fs.StringVar(&emp.Name, "name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	emp.UserID = strings.TrimSpace(emp.UserID)
	emp.Name = strings.TrimSpace(emp.Name)
	if emp.UserID == "" || emp.Name == "" {
		return errors.New("-user and -name are required")
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}

	if err := st.Employees.Create(ctx, &emp); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return writeJSON(out, emp)
}

func createAPIKey(ctx context.Context, st *app.Store, _ *app.Services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-api-key", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.String("user", "", "user ID the key authenticates")
	token := fs.String("token", "", "token value (default: generated)")
	description := fs.String("description", "", "free-form note stored with the key")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if strings.TrimSpace(*userID) == "" {
		return errors.New("-user is required")
	}
	if *token == "" {
		*token = "fl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	if err := st.APIKeys.Create(ctx, *token, *userID, *description); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	// The token is stored hashed; this is the only time it is shown.
	return writeJSON(out, map[string]string{"user_id": *userID, "token": *token})
}

func runReconcile(ctx context.Context, _ *app.Store, svc *app.Services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	projectID := fs.String("project", "", "project ID (default: every project)")
	repair := fs.Bool("repair", false, "overwrite drifted aggregates with record-derived values")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *projectID == "" {
		reports, err := svc.Reconcile.CheckAll(ctx, *repair)
		if reports == nil {
			reports = []reconcile.Report{}
		}
		if werr := writeJSON(out, reports); werr != nil {
			return werr
		}
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		return nil
	}

	var (
		rep *reconcile.Report
		err error
	)
	if *repair {
		rep, err = svc.Reconcile.Repair(ctx, *projectID, "")
	} else {
		rep, err = svc.Reconcile.Check(ctx, *projectID)
	}
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", *projectID, err)
	}
	return writeJSON(out, rep)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
