package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/phobologic/docreflect/internal/model"
)

// Dialect selects the SQL flavour of a database backend.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type statements struct {
	schema string
	load   string
	save   string
	clear  string
	count  string
}

var dialects = map[Dialect]statements{
	DialectSQLite: {
		schema: `
	CREATE TABLE IF NOT EXISTS class_metadata (
		class TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`,
		load: `SELECT data FROM class_metadata WHERE class = ?`,
		save: `
		INSERT INTO class_metadata (class, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(class) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`,
		clear: `DELETE FROM class_metadata`,
		count: `SELECT COUNT(*) FROM class_metadata`,
	},
	DialectPostgres: {
		schema: `
	CREATE TABLE IF NOT EXISTS class_metadata (
		class TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`,
		load: `SELECT data FROM class_metadata WHERE class = $1`,
		save: `
		INSERT INTO class_metadata (class, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (class) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`,
		clear: `DELETE FROM class_metadata`,
		count: `SELECT COUNT(*) FROM class_metadata`,
	},
}

// SQL persists metadata records in a single table of a SQL database.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	stmts   statements
	path    string
}

// NewSQL wraps an open database. It does not create the table; see Migrate.
func NewSQL(db *sql.DB, dialect Dialect) (*SQL, error) {
	stmts, ok := dialects[dialect]
	if !ok {
		return nil, fmt.Errorf("unknown SQL dialect %q", dialect)
	}
	return &SQL{db: db, dialect: dialect, stmts: stmts}, nil
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	s, _ := NewSQL(db, DialectSQLite)
	s.path = path
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return s, nil
}

// OpenPostgres connects to the PostgreSQL database named by dsn and creates
// the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s, _ := NewSQL(db, DialectPostgres)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}
	return s, nil
}

// Migrate creates the metadata table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.stmts.schema)
	return err
}

// Dialect returns the SQL flavour of the database.
func (s *SQL) Dialect() Dialect { return s.dialect }

// Path returns the database file path of a SQLite backend.
func (s *SQL) Path() string { return s.path }

// Load returns the record stored for className.
func (s *SQL) Load(ctx context.Context, className string) (*model.ClassMetadata, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.stmts.load, key(className)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", className, err)
	}
	meta, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

// Save stores meta, replacing any earlier record for the class.
func (s *SQL) Save(ctx context.Context, meta *model.ClassMetadata) error {
	data, err := Encode(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.stmts.save, key(meta.Name), data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", meta.Name, err)
	}
	return nil
}

// Clear removes every stored record.
func (s *SQL) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.stmts.clear)
	return err
}

// Len returns the number of stored records.
func (s *SQL) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.stmts.count).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}
