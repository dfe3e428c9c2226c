// Package storage selects the backing store once, at process start.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	dbfs "github.com/garnizeh/feedback/db"
	"github.com/garnizeh/feedback/internal/config"
	"github.com/garnizeh/feedback/internal/db"
	"github.com/garnizeh/feedback/internal/repository/memory"
	"github.com/garnizeh/feedback/internal/repository/sqlrepo"
	"github.com/garnizeh/feedback/pkg/repository"
)

// Open returns the persistent store when cfg carries a database URL and the
// in-memory store otherwise.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.DatabaseURL == "" {
		var opts []memory.Option
		opts = append(opts, memory.WithLogger(logger))
		if cfg.SeedSampleData {
			opts = append(opts, memory.WithSeed())
		}
		logger.Info("using in-memory storage", slog.Bool("seeded", cfg.SeedSampleData))
		return memory.New(opts...), nil
	}

	repo, err := sqlrepo.Open(ctx, cfg.DatabaseURL, sqlrepo.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open persistent storage: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, repo.DB(), dbfs.Migrations); err != nil {
			repo.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	logger.Info("using database storage", slog.String("dialect", repo.Kind()))
	return repo, nil
}
