package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/runwayfin/runway/internal/common"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS entries (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					posted_at DATETIME NOT NULL,
					description TEXT NOT NULL,
					raw_description TEXT NOT NULL,
					clean_description TEXT NOT NULL,
					counterparty TEXT NOT NULL DEFAULT '',
					source_file TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_entries_posted_at ON entries(posted_at)`,

				`CREATE TABLE IF NOT EXISTS postings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
					account_id TEXT NOT NULL,
					amount_minor INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_postings_entry ON postings(entry_id)`,
				`CREATE INDEX idx_postings_account ON postings(account_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Import keys for provider-row idempotence",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS import_keys (
					entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
					account_id TEXT NOT NULL,
					provider_txn_id TEXT NOT NULL,
					UNIQUE(account_id, provider_txn_id)
				)`,
				`CREATE INDEX idx_import_keys_entry ON import_keys(entry_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Raw description index for sanitization discovery",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX idx_entries_raw_description ON entries(raw_description)`); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("schema version %d is newer than this build supports (%d): %w",
			currentVersion, ExpectedSchemaVersion, common.ErrDatabaseCorrupted)
	}
	if currentVersion == ExpectedSchemaVersion {
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying schema migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
