package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/microgem/storefront-backend/pkg/logger"
)

// Run applies command ("up", "down" or "status") to db using the migrations
// in source. Each call builds its own goose provider, so tenant databases
// can be migrated concurrently.
func Run(ctx context.Context, db *sql.DB, source fs.FS, command string, logg *logger.Logger) error {
	provider, err := newProvider(db, source)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		logResults(ctx, logg, results...)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		result, err := provider.Down(ctx)
		if result != nil {
			logResults(ctx, logg, result)
		}
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		if logg != nil {
			for _, s := range statuses {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"version": s.Source.Version,
					"file":    s.Source.Path,
					"state":   string(s.State),
				}), "migration.status")
			}
		}
	default:
		return fmt.Errorf("unsupported migration command %q", command)
	}
	return nil
}

// MigrateToVersion moves db up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, source fs.FS, targetVersion string, logg *logger.Logger) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	provider, err := newProvider(db, source)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current < target:
		results, err = provider.UpTo(ctx, target)
	case current > target:
		results, err = provider.DownTo(ctx, target)
	}
	logResults(ctx, logg, results...)
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

func newProvider(db *sql.DB, source fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if source == nil {
		return nil, fmt.Errorf("migration source is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, source)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

func logResults(ctx context.Context, logg *logger.Logger, results ...*goose.MigrationResult) {
	if logg == nil {
		return
	}
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fields := map[string]any{
			"version":     r.Source.Version,
			"file":        r.Source.Path,
			"direction":   r.Direction,
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			logg.Error(logg.WithFields(ctx, fields), "migration.failed", r.Error)
			continue
		}
		logg.Info(logg.WithFields(ctx, fields), "migration.applied")
	}
}
