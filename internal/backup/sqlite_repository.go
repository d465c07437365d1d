package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores records in a single table, one row per document path.
type SQLiteRepository struct {
	db        *sql.DB
	validator *validator.Validate
}

// OpenSQLiteRepository opens or creates the SQLite database at path.
func OpenSQLiteRepository(path string) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.New("backup database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS backups (
			path      TEXT PRIMARY KEY,
			content   TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create backups table: %w", err)
	}

	return &SQLiteRepository{db: db, validator: validator.New()}, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, path string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT path, content, timestamp FROM backups WHERE path = ?`, path)
	var rec Record
	if err := row.Scan(&rec.Path, &rec.Content, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get backup %s: %w", path, err)
	}
	return &rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, rec Record) error {
	if err := r.validator.Struct(rec); err != nil {
		return fmt.Errorf("validate backup record: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backups (path, content, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET content = excluded.content, timestamp = excluded.timestamp
	`, rec.Path, rec.Content, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("put backup %s: %w", rec.Path, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, path string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM backups WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete backup %s: %w", path, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT path, content, timestamp FROM backups ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Path, &rec.Content, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
