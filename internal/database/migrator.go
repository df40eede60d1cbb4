package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrator applies SQL files from an fs.FS in filename order and records them in
// schema_migrations so each runs once.
type Migrator struct {
	pool   *pgxpool.Pool
	files  fs.FS
	logger *zap.Logger
}

// NewMigrator creates a migration runner. files is usually migrations.FS.
func NewMigrator(pool *pgxpool.Pool, files fs.FS, logger *zap.Logger) *Migrator {
	return &Migrator{
		pool:   pool,
		files:  files,
		logger: logger.Named("migrator"),
	}
}

// RunMigrations executes all pending migrations.
// Files whose name contains "reset" are never run.
func (m *Migrator) RunMigrations(ctx context.Context) error {
	m.logger.Info("starting database migrations")

	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := PendingMigrations(m.files, applied)
	if err != nil {
		return err
	}

	for _, filename := range pending {
		content, err := fs.ReadFile(m.files, filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		m.logger.Info("running migration", zap.String("file", filename))
		if _, err := m.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", filename, err)
		}
		if err := m.recordMigration(ctx, filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
	}

	if len(pending) > 0 {
		m.logger.Info("migrations applied", zap.Int("count", len(pending)))
	} else {
		m.logger.Info("database is up to date")
	}
	return nil
}

// PendingMigrations lists the .sql files in files that are not in applied, sorted by name
func PendingMigrations(files fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.Contains(name, "reset") || applied[name] {
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)
	return pending, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := m.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) recordMigration(ctx context.Context, filename string) error {
	query := `
		INSERT INTO schema_migrations (filename)
		VALUES ($1)
		ON CONFLICT (filename) DO NOTHING
	`
	_, err := m.pool.Exec(ctx, query, filename)
	return err
}
