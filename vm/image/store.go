package image

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/garnet/vm"
	_ "modernc.org/sqlite"
)

// ErrSnapshotNotFound indicates the requested label doesn't exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Entry describes a stored snapshot without decoding it.
type Entry struct {
	Label     string
	CreatedAt time.Time
	Size      int
}

// Store keeps labelled images in a SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenStore opens or creates the snapshot database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		label TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores snap under label, replacing any previous snapshot.
func (s *Store) Put(ctx context.Context, label string, snap *vm.Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (label, created_at, data) VALUES (?, ?, ?)",
		label, time.Now().UnixNano(), data,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", label, err)
	}
	log.Debugf("stored snapshot %q (%d bytes)", label, len(data))
	return nil
}

// Get loads the snapshot stored under label.
func (s *Store) Get(ctx context.Context, label string) (*vm.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE label = ?", label).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return Unmarshal(data)
}

// List returns every stored snapshot, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT label, created_at, length(data) FROM snapshots ORDER BY created_at DESC, label")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Label, &created, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the snapshot stored under label.
func (s *Store) Delete(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE label = ?", label)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
	}
	return nil
}
