package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps both tables in one SQLite database. Batches are written in
// a single transaction.
type SQLiteStore struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("make db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single connection: all writes are serialized
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, sq: sq.StatementBuilder}, nil
}

func (s *SQLiteStore) AppendQuery(ctx context.Context, rec QueryRecord) error {
	rec = rec.normalized()
	q := s.sq.Insert("queries").Columns("student_id", "query", "timestamp", "response").
		Values(rec.StudentID, rec.Query, rec.Timestamp, rec.Response)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendProjects(ctx context.Context, recs []ProjectRecord) error {
	if len(recs) == 0 {
		return nil
	}
	recs = normalizeProjects(recs)
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, rec := range recs {
			extra := rec.Extra
			if extra == nil {
				extra = []Column{}
			}
			raw, err := json.Marshal(extra)
			if err != nil {
				return fmt.Errorf("encode extra columns: %w", err)
			}
			q := s.sq.Insert("projects").Columns("student_id", "project_title", "timestamp", "extra").
				Values(rec.StudentID, rec.ProjectTitle, rec.Timestamp, string(raw))
			sqlStr, args, err := q.ToSql()
			if err != nil {
				return fmt.Errorf("build insert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("insert project: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadQueries(ctx context.Context) ([]QueryRecord, error) {
	q := s.sq.Select("student_id", "query", "timestamp", "response").From("queries").OrderBy("id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("select queries: %w", err)
	}
	defer rows.Close()
	var out []QueryRecord
	for rows.Next() {
		var r QueryRecord
		if err := rows.Scan(&r.StudentID, &r.Query, &r.Timestamp, &r.Response); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LoadProjects(ctx context.Context) ([]ProjectRecord, error) {
	q := s.sq.Select("student_id", "project_title", "timestamp", "extra").From("projects").OrderBy("id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("select projects: %w", err)
	}
	defer rows.Close()
	var out []ProjectRecord
	for rows.Next() {
		var r ProjectRecord
		var extra string
		if err := rows.Scan(&r.StudentID, &r.ProjectTitle, &r.Timestamp, &extra); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if extra != "" && extra != "[]" {
			if err := json.Unmarshal([]byte(extra), &r.Extra); err != nil {
				return nil, fmt.Errorf("decode extra columns: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        applied_at TEXT NOT NULL
    )`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var n int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE name = ?`, name).Scan(&n)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)`, name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
