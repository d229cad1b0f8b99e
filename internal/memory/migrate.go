package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// migration is a single numbered schema change, grounded on db/migrate.go's
// NNN_description.sql filename convention.
type migration struct {
	Version     int
	Description string
	SQL         string
	Filename    string
}

// Migrator applies the Memory Store's schema against a lib/pq database/sql
// handle, kept separate from the pgxpool runtime pool so that migrations can
// run with a plain superuser connection ahead of application startup.
type Migrator struct {
	db  *sql.DB
	dir string
}

// NewMigrator opens a lib/pq connection against databaseURL for schema
// management only.
func NewMigrator(databaseURL, migrationsDir string) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open migrator connection: %w", err)
	}
	return &Migrator{db: db, dir: migrationsDir}, nil
}

// Close releases the migrator's connection.
func (m *Migrator) Close() error { return m.db.Close() }

func (m *Migrator) ensureSchemaVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW(),
			description TEXT
		)
	`)
	return err
}

func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	var v int
	err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}

func (m *Migrator) load() ([]migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, "_down.sql") {
			continue
		}
		path := filepath.Join(m.dir, name)
		clean := filepath.Clean(path)
		if !strings.HasPrefix(clean, filepath.Clean(m.dir)) {
			return nil, fmt.Errorf("invalid migration file path: %s", name)
		}
		content, err := os.ReadFile(clean)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		var version int
		var desc string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &desc); err != nil {
			return nil, fmt.Errorf("invalid migration filename %q (want NNN_description.sql)", name)
		}
		desc = strings.ReplaceAll(strings.TrimSuffix(desc, ".sql"), "_", " ")
		out = append(out, migration{Version: version, Description: desc, SQL: string(content), Filename: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Migrate applies every pending migration in version order, each inside its
// own transaction, recording it in schema_version on success.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureSchemaVersionTable(ctx); err != nil {
		return fmt.Errorf("schema_version table: %w", err)
	}
	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}
	all, err := m.load()
	if err != nil {
		return err
	}

	applied := 0
	for _, mig := range all {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
		applied++
	}
	log.Info().Int("applied", applied).Int("from_version", current).Msg("memory store migrations complete")
	return nil
}

// StatusEntry reports one migration's applied/pending state for Status.
type StatusEntry struct {
	Version     int
	Description string
	Applied     bool
}

// Status reports every known migration alongside whether it has already
// been applied, without executing anything.
func (m *Migrator) Status(ctx context.Context) ([]StatusEntry, error) {
	if err := m.ensureSchemaVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("schema_version table: %w", err)
	}
	current, err := m.currentVersion(ctx)
	if err != nil {
		return nil, err
	}
	all, err := m.load()
	if err != nil {
		return nil, err
	}

	out := make([]StatusEntry, 0, len(all))
	for _, mig := range all {
		out = append(out, StatusEntry{
			Version:     mig.Version,
			Description: mig.Description,
			Applied:     mig.Version <= current,
		})
	}
	return out, nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
		mig.Version, mig.Description); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
