package cache

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial cache schema",
		SQL: `
CREATE TABLE IF NOT EXISTS table_entries (
    fingerprint TEXT PRIMARY KEY,
    frequency TEXT NOT NULL,
    realizations BLOB NOT NULL,
    dates BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS table_columns (
    fingerprint TEXT NOT NULL,
    vector TEXT NOT NULL,
    realization INTEGER NOT NULL,
    "values" BLOB NOT NULL,
    PRIMARY KEY (fingerprint, vector, realization)
);

CREATE TABLE IF NOT EXISTS manifests (
    key TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    columns TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stat_entries (
    fingerprint TEXT PRIMARY KEY,
    ensemble TEXT NOT NULL,
    vector TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stat_rows (
    fingerprint TEXT NOT NULL,
    date DATE NOT NULL,
    mean REAL,
    stddev REAL,
    min REAL,
    max REAL,
    p10 REAL,
    p90 REAL,
    count INTEGER NOT NULL,
    PRIMARY KEY (fingerprint, date)
);
`,
	},
	{
		Version:     2,
		Description: "Realization parameters per table entry",
		SQL: `
CREATE TABLE IF NOT EXISTS table_parameters (
    fingerprint TEXT NOT NULL,
    realization INTEGER NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (fingerprint, realization, name)
);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("cache migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
