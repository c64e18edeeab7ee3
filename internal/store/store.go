package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ieltsprep/mockcenter/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver parses a driver name. Empty means sqlite.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case "", DriverSQLite:
		return DriverSQLite, nil
	case DriverPostgres, "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens a sqlite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open opens the database for driver and ensures the schema exists.
func Open(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite && dsn == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tests (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL DEFAULT '{}',
	listening_json TEXT NOT NULL DEFAULT '{}',
	reading_json TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS section_results (
	id TEXT PRIMARY KEY,
	section TEXT NOT NULL,
	test_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL,
	correct_json TEXT NOT NULL,
	score INTEGER NOT NULL,
	total INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fullmock_results (
	id TEXT PRIMARY KEY,
	test_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	listening_json TEXT NOT NULL,
	reading_json TEXT NOT NULL,
	listening_score INTEGER NOT NULL,
	listening_total INTEGER NOT NULL,
	reading_score INTEGER NOT NULL,
	reading_total INTEGER NOT NULL,
	task1 TEXT NOT NULL DEFAULT '',
	task2 TEXT NOT NULL DEFAULT '',
	writing_band TEXT,
	writing_feedback TEXT NOT NULL DEFAULT '',
	writing_assigned_at DATETIME,
	writing_assigned_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'student',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tests (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL DEFAULT '{}',
	listening_json TEXT NOT NULL DEFAULT '{}',
	reading_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS section_results (
	id TEXT PRIMARY KEY,
	section TEXT NOT NULL,
	test_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL,
	correct_json TEXT NOT NULL,
	score INTEGER NOT NULL,
	total INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS fullmock_results (
	id TEXT PRIMARY KEY,
	test_id TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	listening_json TEXT NOT NULL,
	reading_json TEXT NOT NULL,
	listening_score INTEGER NOT NULL,
	listening_total INTEGER NOT NULL,
	reading_score INTEGER NOT NULL,
	reading_total INTEGER NOT NULL,
	task1 TEXT NOT NULL DEFAULT '',
	task2 TEXT NOT NULL DEFAULT '',
	writing_band TEXT,
	writing_feedback TEXT NOT NULL DEFAULT '',
	writing_assigned_at TIMESTAMPTZ,
	writing_assigned_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(s.rebind(query), args...)
}

func (s *Store) query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(s.rebind(query), args...)
}

func (s *Store) queryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(s.rebind(query), args...)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// UpsertTest inserts a test or replaces an existing one with the same ID.
func (s *Store) UpsertTest(t model.Test) error {
	answers, err := encodeJSON(t.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	listening, err := encodeJSON(t.ListeningAnswers)
	if err != nil {
		return fmt.Errorf("encode listening answers: %w", err)
	}
	reading, err := encodeJSON(t.ReadingAnswers)
	if err != nil {
		return fmt.Errorf("encode reading answers: %w", err)
	}
	_, err = s.exec(
		`INSERT INTO tests (id, kind, title, answers_json, listening_json, reading_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, title = excluded.title,
		 answers_json = excluded.answers_json, listening_json = excluded.listening_json,
		 reading_json = excluded.reading_json`,
		t.ID, t.Kind, t.Title, answers, listening, reading, time.Now().UTC(),
	)
	return err
}

const testColumns = `id, kind, title, answers_json, listening_json, reading_json, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (model.Test, error) {
	var t model.Test
	var answers, listening, reading string
	if err := row.Scan(&t.ID, &t.Kind, &t.Title, &answers, &listening, &reading, &t.CreatedAt); err != nil {
		return t, err
	}
	if err := decodeJSON(answers, &t.Answers); err != nil {
		return t, fmt.Errorf("decode answers of test %s: %w", t.ID, err)
	}
	if err := decodeJSON(listening, &t.ListeningAnswers); err != nil {
		return t, fmt.Errorf("decode listening answers of test %s: %w", t.ID, err)
	}
	if err := decodeJSON(reading, &t.ReadingAnswers); err != nil {
		return t, fmt.Errorf("decode reading answers of test %s: %w", t.ID, err)
	}
	return t, nil
}

// GetTest returns a test by ID, or sql.ErrNoRows.
func (s *Store) GetTest(id string) (model.Test, error) {
	return scanTest(s.queryRow(`SELECT `+testColumns+` FROM tests WHERE id = ?`, id))
}

// ListTests returns tests ordered by ID. An empty kind lists every test.
func (s *Store) ListTests(kind model.TestKind) ([]model.Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id`
	rows, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// DeleteTest removes a test from the catalogue.
func (s *Store) DeleteTest(id string) error {
	_, err := s.exec(`DELETE FROM tests WHERE id = ?`, id)
	return err
}

// TestCount returns the number of tests in the catalogue.
func (s *Store) TestCount() (int, error) {
	var count int
	err := s.queryRow(`SELECT COUNT(*) FROM tests`).Scan(&count)
	return count, err
}
