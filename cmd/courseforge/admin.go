package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/CourseForge/internal/adapter/postgres"
	"github.com/Strob0t/CourseForge/internal/config"
	"github.com/Strob0t/CourseForge/internal/domain/tenant"
	"github.com/Strob0t/CourseForge/internal/port/database"
)

// runAdmin dispatches admin subcommands (migrate, create-tenant, list-tenants).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: courseforge admin <command> [options]

Commands:
  migrate          Apply, roll back or inspect schema migrations
  create-tenant    Register a new tenant by business name
  list-tenants     List all tenants
  help             Show this help message

Examples:
  courseforge admin migrate
  courseforge admin migrate --rollback 1
  courseforge admin migrate --status
  courseforge admin create-tenant --name "Acme Academy"
  courseforge admin list-tenants --json
`)
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	rollback := fs.Int("rollback", 0, "roll back this many migrations instead of applying")
	status := fs.Bool("status", false, "print the current schema version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rollback < 0 {
		return fmt.Errorf("--rollback must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch {
	case *status:
		v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("migration version: %w", err)
		}
		fmt.Printf("schema version %d\n", v)
		return nil
	case *rollback > 0:
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *rollback); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *rollback)
		return nil
	}

	n, err := postgres.RunMigrations(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Applied %d migration(s)\n", n)
	return nil
}

func loadAdminStore(ctx context.Context) (*postgres.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.NewStore(pool), pool.Close, nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "business name (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := tenant.CreateRequest{BusinessName: *name}
	if err := tenant.ValidateCreateRequest(req); err != nil {
		return err
	}

	ctx := context.Background()
	store, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := store.CreateTenant(ctx, req)
	if errors.Is(err, database.ErrTenantNameTaken) {
		return fmt.Errorf("a tenant named %q already exists", req.BusinessName)
	}
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%d)\n", t.BusinessName, t.ID)
	return nil
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print JSON even on a terminal")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	store, cleanup, err := loadAdminStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tenants, err := store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	// Pipes and redirects get JSON.
	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tenants)
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBUSINESS_NAME\tCREATED_AT")
	for i := range tenants {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n",
			tenants[i].ID, tenants[i].BusinessName, tenants[i].CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
