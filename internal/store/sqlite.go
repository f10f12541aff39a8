package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnknownSchema is returned for operations on a schema never imported.
var ErrUnknownSchema = errors.New("store: unknown schema")

// Store represents the SQLite dictionary store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the connection for inspection in tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ReplaceSchema stores rec and swaps its dictionary for entries in one
// transaction. User frequencies are kept.
func (s *Store) ReplaceSchema(rec SchemaRecord, entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now()
	}
	if _, err := tx.Exec(`
		INSERT INTO schemas (schema_id, name, version, dictionary, alphabet, position, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schema_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			dictionary = excluded.dictionary,
			alphabet = excluded.alphabet,
			position = excluded.position,
			imported_at = excluded.imported_at`,
		rec.ID, rec.Name, rec.Version, rec.Dictionary, rec.Alphabet, rec.Position, rec.ImportedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert schema %s: %w", rec.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM entries WHERE schema_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear entries for %s: %w", rec.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO entries (schema_id, text, code, weight) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(rec.ID, e.Text, e.Code, e.Weight); err != nil {
			return fmt.Errorf("insert entry %q: %w", e.Text, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RemoveSchemasExcept deletes every schema whose id is not in keep.
func (s *Store) RemoveSchemasExcept(keep []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}

	rows, err := tx.Query(`SELECT schema_id FROM schemas`)
	if err != nil {
		return 0, fmt.Errorf("list schemas: %w", err)
	}
	var drop []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan schema: %w", err)
		}
		if !keepSet[id] {
			drop = append(drop, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate schemas: %w", err)
	}

	for _, id := range drop {
		if _, err := tx.Exec(`DELETE FROM entries WHERE schema_id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete entries for %s: %w", id, err)
		}
		if _, err := tx.Exec(`DELETE FROM schemas WHERE schema_id = ?`, id); err != nil {
			return 0, fmt.Errorf("delete schema %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int64(len(drop)), nil
}

// Schemas returns all imported schemas by position, then id.
func (s *Store) Schemas() ([]SchemaRecord, error) {
	rows, err := s.db.Query(`
		SELECT s.schema_id, s.name, s.version, s.dictionary, s.alphabet, s.position, s.imported_at,
			(SELECT COUNT(*) FROM entries e WHERE e.schema_id = s.schema_id)
		FROM schemas s ORDER BY s.position, s.schema_id`)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	var out []SchemaRecord
	for rows.Next() {
		var r SchemaRecord
		var version, dict sql.NullString
		var importedAt int64
		if err := rows.Scan(&r.ID, &r.Name, &version, &dict, &r.Alphabet, &r.Position, &importedAt, &r.Entries); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		r.Version = version.String
		r.Dictionary = dict.String
		r.ImportedAt = time.Unix(0, importedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return out, nil
}

// Schema returns one imported schema.
func (s *Store) Schema(id string) (*SchemaRecord, error) {
	var r SchemaRecord
	var version, dict sql.NullString
	var importedAt int64
	err := s.db.QueryRow(`
		SELECT schema_id, name, version, dictionary, alphabet, position, imported_at,
			(SELECT COUNT(*) FROM entries WHERE schema_id = ?)
		FROM schemas WHERE schema_id = ?`, id, id,
	).Scan(&r.ID, &r.Name, &version, &dict, &r.Alphabet, &r.Position, &importedAt, &r.Entries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, id)
		}
		return nil, fmt.Errorf("get schema: %w", err)
	}
	r.Version = version.String
	r.Dictionary = dict.String
	r.ImportedAt = time.Unix(0, importedAt)
	return &r, nil
}

// matchQuery selects entries whose code starts with the input. Exact codes
// come first, then the higher weight plus user frequency, then dictionary
// order.
const matchQuery = `
	SELECT e.text, e.code, e.weight, COALESCE(f.count, 0), e.code = ?1
	FROM entries e
	LEFT JOIN user_frequency f
		ON f.schema_id = e.schema_id AND f.text = e.text AND f.code = e.code
	WHERE e.schema_id = ?2 AND substr(e.code, 1, length(?1)) = ?1
	ORDER BY e.code = ?1 DESC, e.weight + COALESCE(f.count, 0) DESC, e.id
	LIMIT ?3 OFFSET ?4`

// Lookup returns up to limit matches for code in schema, skipping offset.
func (s *Store) Lookup(schemaID, code string, offset, limit int) ([]Match, error) {
	if code == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(matchQuery, code, schemaID, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", code, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Text, &m.Code, &m.Weight, &m.Frequency, &m.Exact); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// CountMatches returns how many entries Lookup can reach for code.
func (s *Store) CountMatches(schemaID, code string) (int, error) {
	if code == "" {
		return 0, nil
	}
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM entries
		WHERE schema_id = ?2 AND substr(code, 1, length(?1)) = ?1`, code, schemaID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %q: %w", code, err)
	}
	return n, nil
}

// BumpFrequency records a selection of text for code.
func (s *Store) BumpFrequency(schemaID, text, code string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_frequency (schema_id, text, code, count, last_used)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(schema_id, text, code) DO UPDATE SET
			count = count + 1,
			last_used = excluded.last_used`,
		schemaID, text, code, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("bump frequency: %w", err)
	}
	return nil
}

// Frequency returns how often text was selected for code.
func (s *Store) Frequency(schemaID, text, code string) (int64, error) {
	var n int64
	err := s.db.QueryRow(`
		SELECT count FROM user_frequency WHERE schema_id = ? AND text = ? AND code = ?`,
		schemaID, text, code,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get frequency: %w", err)
	}
	return n, nil
}

// RecordDeploy appends a deployment to the history.
func (s *Store) RecordDeploy(d Deploy) error {
	_, err := s.db.Exec(`
		INSERT INTO deploys (id, started_ns, duration_ns, ok, schemas, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Started.UnixNano(), int64(d.Duration), d.OK, d.Schemas, d.Detail,
	)
	if err != nil {
		return fmt.Errorf("record deploy: %w", err)
	}
	return nil
}

// Deploys returns the most recent deployments, newest first.
func (s *Store) Deploys(limit int) ([]Deploy, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, started_ns, duration_ns, ok, schemas, detail
		FROM deploys ORDER BY started_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deploys: %w", err)
	}
	defer rows.Close()

	var out []Deploy
	for rows.Next() {
		var d Deploy
		var started, duration int64
		var detail sql.NullString
		if err := rows.Scan(&d.ID, &started, &duration, &d.OK, &d.Schemas, &detail); err != nil {
			return nil, fmt.Errorf("scan deploy: %w", err)
		}
		d.Started = time.Unix(0, started)
		d.Duration = time.Duration(duration)
		d.Detail = detail.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deploys: %w", err)
	}
	return out, nil
}
