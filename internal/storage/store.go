package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

const (
	sqliteConstraintCode = 19
	defaultBusyTimeout   = 5000
)

// Store wraps the SQLite handle that indexes uploaded files. Chat state is
// deliberately memory-only; the index exists so descriptors handed out in
// past messages keep resolving to blobs on disk.
type Store struct {
	db *sql.DB
}

// Upload is one row in the uploads table, mirroring the descriptor returned
// to clients plus the server-side location and integrity hash.
type Upload struct {
	ID          string
	Name        string
	Mimetype    string
	SizeBytes   int64
	StoragePath string
	SHA256      string
	CreatedAt   time.Time
}

// ErrUploadExists is returned when inserting a duplicate upload id.
var ErrUploadExists = errors.New("upload already exists")

// NewStore initializes the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "relaychat.db"
	}
	dsn := buildDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mimetype TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			storage_path TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_created_at ON uploads(created_at);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertUpload records a stored file. ErrUploadExists is returned on id conflicts.
func (s *Store) InsertUpload(ctx context.Context, up Upload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads(id, name, mimetype, size_bytes, storage_path, sha256) VALUES(?, ?, ?, ?, ?, ?)`,
		up.ID, up.Name, up.Mimetype, up.SizeBytes, up.StoragePath, up.SHA256)
	if err != nil {
		if isConstraintError(err) {
			return ErrUploadExists
		}
		return err
	}
	return nil
}

// GetUpload fetches one upload by id; (nil, nil) when it does not exist.
func (s *Store) GetUpload(ctx context.Context, id string) (*Upload, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, mimetype, size_bytes, storage_path, sha256, created_at FROM uploads WHERE id = ?`, id)
	var up Upload
	if err := row.Scan(&up.ID, &up.Name, &up.Mimetype, &up.SizeBytes, &up.StoragePath, &up.SHA256, &up.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &up, nil
}

// ListRecentUploads returns the newest uploads first.
func (s *Store) ListRecentUploads(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mimetype, size_bytes, storage_path, sha256, created_at
		FROM uploads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var up Upload
		if err := rows.Scan(&up.ID, &up.Name, &up.Mimetype, &up.SizeBytes, &up.StoragePath, &up.SHA256, &up.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, rows.Err()
}

// DeleteUpload removes the index row; the caller is responsible for the blob.
func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// the driver reports extended result codes (a duplicate primary key
		// is 1555, not 19); the low byte is the primary code.
		return sqliteErr.Code()&0xff == sqliteConstraintCode
	}
	return false
}
