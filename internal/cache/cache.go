// Package cache persists the last successfully fetched file listing and
// aggregate stats in an embedded SQLite database, so listing commands can
// answer offline. The cache is advisory only: it is overwritten wholesale on
// every successful refresh and purged on logout. It never substitutes for
// remote truth in operations.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/filecrate/filecrate-go/internal/state"
)

// FileName is the cache database file name inside the data directory.
const FileName = "listing.db"

// Snapshot is one cached listing read back for offline display.
type Snapshot struct {
	Files     []string
	Stats     state.Stats
	FetchedAt time.Time
}

// Cache is an embedded SQLite store for the listing snapshot. It implements
// state.ListingCache.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the cache database at dbPath and applies
// schema migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("listing cache ready", slog.String("path", dbPath))

	return &Cache{db: db, logger: logger}, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("cache: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveSnapshot replaces the cached listing and stats wholesale, atomically.
func (c *Cache) SaveSnapshot(ctx context.Context, files []string, stats state.Stats) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("cache: clear files: %w", err)
	}

	for _, name := range files {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO files (name, fetched_at) VALUES (?, ?)", name, now); err != nil {
			return fmt.Errorf("cache: insert file: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stats (id, total_files, total_size, fetched_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			total_files = excluded.total_files,
			total_size  = excluded.total_size,
			fetched_at  = excluded.fetched_at`,
		stats.TotalFiles, stats.TotalSizeBytes, now); err != nil {
		return fmt.Errorf("cache: upsert stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit snapshot: %w", err)
	}

	c.logger.Debug("listing snapshot cached", slog.Int("files", len(files)))

	return nil
}

// LoadSnapshot reads the cached listing back. ok is false when the cache has
// never been written (or was purged).
func (c *Cache) LoadSnapshot(ctx context.Context) (snap Snapshot, ok bool, err error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT total_files, total_size, fetched_at FROM stats WHERE id = 1")

	var fetchedAt string
	if err := row.Scan(&snap.Stats.TotalFiles, &snap.Stats.TotalSizeBytes, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}

		return Snapshot{}, false, fmt.Errorf("cache: read stats: %w", err)
	}

	if snap.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt); err != nil {
		return Snapshot{}, false, fmt.Errorf("cache: parse fetched_at: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, "SELECT name FROM files ORDER BY name")
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("cache: read files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Snapshot{}, false, fmt.Errorf("cache: scan file: %w", err)
		}

		snap.Files = append(snap.Files, name)
	}

	if err := rows.Err(); err != nil {
		return Snapshot{}, false, fmt.Errorf("cache: iterate files: %w", err)
	}

	return snap, true, nil
}

// Purge drops all cached data. Called on logout so no listing outlives the
// session that fetched it.
func (c *Cache) Purge() error {
	ctx := context.Background()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin purge tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files"); err != nil {
		return fmt.Errorf("cache: purge files: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM stats"); err != nil {
		return fmt.Errorf("cache: purge stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit purge: %w", err)
	}

	c.logger.Debug("listing cache purged")

	return nil
}
