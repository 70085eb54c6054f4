package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/microgem/storefront-backend/internal/tenants"
	"github.com/microgem/storefront-backend/pkg/config"
	"github.com/microgem/storefront-backend/pkg/db"
	"github.com/microgem/storefront-backend/pkg/db/models"
	"github.com/microgem/storefront-backend/pkg/logger"
	"github.com/microgem/storefront-backend/pkg/migrate"
)

// tenantConcurrency bounds how many tenant databases migrate at once.
const tenantConcurrency = 4

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	target := flag.String("target", string(migrate.TargetDirectory), "schema to migrate: directory|tenant")
	dir := flag.String("dir", "", "migrations directory on disk (defaults to the embedded set; create/validate use the repo path)")
	dbName := flag.String("db", "", "tenant database name; empty migrates every registered site")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")

	flag.Parse()

	diskDir := *dir
	if diskDir == "" {
		resolved, err := migrate.DirFor(migrate.Target(*target))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		diskDir = resolved
	}

	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		path, err := migrate.CreateSQLMigration(diskDir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.Validate(os.DirFS(diskDir)); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"target": *target,
	})

	var source fs.FS
	if *dir != "" {
		source = os.DirFS(*dir)
	} else {
		source, err = migrate.SourceFor(migrate.Target(*target))
		requireResource(ctx, logg, "migration source", err)
	}

	directory, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "directory database", err)
	defer directory.Close()

	apply := func(ctx context.Context, client *db.Client) error {
		sqlDB, err := client.DB().DB()
		if err != nil {
			return fmt.Errorf("extracting sql.DB: %w", err)
		}
		if *cmd == "version" {
			if *version == "" {
				return fmt.Errorf("missing -version for version command")
			}
			return migrate.MigrateToVersion(ctx, sqlDB, source, *version, logg)
		}
		return migrate.Run(ctx, sqlDB, source, *cmd, logg)
	}

	switch migrate.Target(*target) {
	case migrate.TargetDirectory:
		if err := apply(ctx, directory); err != nil {
			logg.Error(ctx, "directory migration failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "directory migration completed")

	case migrate.TargetTenant:
		names := []string{*dbName}
		if *dbName == "" {
			sites, err := tenants.NewRepository(directory.DB()).List(ctx)
			requireResource(ctx, logg, "site directory", err)
			names = uniqueDBNames(sites)
		}
		if err := migrateTenants(ctx, logg, cfg, names, apply); err != nil {
			logg.Error(ctx, "tenant migration failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "tenants", len(names)), "tenant migration completed")
	}
}

func migrateTenants(ctx context.Context, logg *logger.Logger, cfg *config.Config, names []string, apply func(context.Context, *db.Client) error) error {
	pool := db.PoolSettings{MaxOpenConns: 1, MaxIdleConns: 1}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tenantConcurrency)
	for _, name := range names {
		g.Go(func() error {
			tctx := logg.WithField(gctx, "tenant_db", name)
			dsn, err := cfg.DB.TenantDSN(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			client, err := db.Open(tctx, dsn, pool)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			defer client.Close()

			if err := apply(tctx, client); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			logg.Info(tctx, "tenant migrated")
			return nil
		})
	}
	return g.Wait()
}

func uniqueDBNames(sites []models.Site) []string {
	seen := make(map[string]struct{}, len(sites))
	names := make([]string, 0, len(sites))
	for _, site := range sites {
		if _, ok := seen[site.DBName]; ok {
			continue
		}
		seen[site.DBName] = struct{}{}
		names = append(names, site.DBName)
	}
	return names
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
