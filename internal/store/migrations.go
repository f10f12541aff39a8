package store

import (
	"database/sql"
	"fmt"
)

// migration is one step of the schema, identified by the SQLite
// user_version it leaves behind.
type migration struct {
	version int
	name    string
	up      string
	down    string
}

var migrations = []migration{
	{1, "schemas and dictionary entries", migrationV1Up, migrationV1Down},
	{2, "user frequency for learned selections", migrationV2Up, migrationV2Down},
	{3, "deployment history", migrationV3Up, migrationV3Down},
}

// latestVersion is the user_version of a fully migrated database.
var latestVersion = migrations[len(migrations)-1].version

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schemas (
    schema_id    TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    version      TEXT,
    dictionary   TEXT,
    alphabet     TEXT NOT NULL DEFAULT '',
    position     INTEGER NOT NULL DEFAULT 0,
    imported_at  INTEGER NOT NULL
);

-- Entries are replaced wholesale on every deployment of their schema
CREATE TABLE IF NOT EXISTS entries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    schema_id   TEXT NOT NULL REFERENCES schemas(schema_id) ON DELETE CASCADE,
    text        TEXT NOT NULL,
    code        TEXT NOT NULL,
    weight      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entries_code ON entries(schema_id, code);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_entries_code;
DROP TABLE IF EXISTS entries;
DROP TABLE IF EXISTS schemas;
`

const migrationV2Up = `
-- Survives redeployment, so it is keyed by content rather than entry id
CREATE TABLE IF NOT EXISTS user_frequency (
    schema_id   TEXT NOT NULL,
    text        TEXT NOT NULL,
    code        TEXT NOT NULL,
    count       INTEGER NOT NULL DEFAULT 0,
    last_used   INTEGER NOT NULL,
    PRIMARY KEY (schema_id, text, code)
);
`

const migrationV2Down = `
DROP TABLE IF EXISTS user_frequency;
`

const migrationV3Up = `
CREATE TABLE IF NOT EXISTS deploys (
    id           TEXT PRIMARY KEY,
    started_ns   INTEGER NOT NULL,
    duration_ns  INTEGER NOT NULL,
    ok           INTEGER NOT NULL,
    schemas      INTEGER NOT NULL,
    detail       TEXT
);

CREATE INDEX IF NOT EXISTS idx_deploys_started ON deploys(started_ns);
`

const migrationV3Down = `
DROP INDEX IF EXISTS idx_deploys_started;
DROP TABLE IF EXISTS deploys;
`

// migrate brings db up to latestVersion, one transaction per step.
func migrate(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current > latestVersion {
		return fmt.Errorf("database version %d is newer than this build (%d)", current, latestVersion)
	}
	for _, m := range migrations[current:] {
		if err := step(db, m.up, m.version); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// rollback undoes the newest applied migration.
func rollback(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("nothing to roll back")
	}
	m := migrations[current-1]
	if err := step(db, m.down, current-1); err != nil {
		return fmt.Errorf("roll back migration %d (%s): %w", m.version, m.name, err)
	}
	return nil
}

// step runs stmts and records version atomically.
func step(db *sql.DB, stmts string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmts); err != nil {
		return err
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// SchemaVersion reports the migration level of the open database.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// missingTables lists the tables a fully migrated database should have
// but db lacks.
func missingTables(db *sql.DB) ([]string, error) {
	var missing []string
	for _, table := range []string{"schemas", "entries", "user_frequency", "deploys"} {
		var n int
		if err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&n); err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if n == 0 {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
