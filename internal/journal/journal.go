// Package journal persists pre-edit file snapshots to SQLite so the most
// recent edit to a file can be reversed.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path   TEXT NOT NULL,
	old_content BLOB NOT NULL,
	created     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_path ON snapshots(file_path, id);
`

// ErrNoSnapshot is returned by Undo when no snapshot exists for the file.
var ErrNoSnapshot = errors.New("no snapshot recorded for file")

// Journal is a SQLite-backed store of pre-edit file contents.
type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	keep int // snapshots retained per file
}

// Open creates or opens a journal database at the given path.
// keep controls how many snapshots are retained per file.
func Open(dbPath string, keep int) (*Journal, error) {
	if keep < 1 {
		keep = 1
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	// SQLite pragmas for performance.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Journal{db: db, keep: keep}, nil
}

// Close closes the database. Safe on a nil receiver.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

// RecordModify stores the original content of a file before it is modified.
// Failures are logged, not returned — losing an undo point must not block the
// edit itself. No-op on nil receiver.
func (j *Journal) RecordModify(filePath string, oldContent []byte) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO snapshots (file_path, old_content, created) VALUES (?, ?, ?)`,
		filePath, oldContent, time.Now().Unix(),
	)
	if err != nil {
		log.Warn().Err(err).Str("file", filePath).Msg("failed to record snapshot")
		return
	}

	// Trim snapshots beyond the retention limit for this file.
	_, err = j.db.Exec(
		`DELETE FROM snapshots WHERE file_path = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE file_path = ? ORDER BY id DESC LIMIT ?
		)`,
		filePath, filePath, j.keep,
	)
	if err != nil {
		log.Warn().Err(err).Str("file", filePath).Msg("failed to trim snapshots")
	}
}

// Undo pops the most recent snapshot for a file and returns its content.
// Returns ErrNoSnapshot when the journal has nothing for the file.
func (j *Journal) Undo(filePath string) ([]byte, error) {
	if j == nil {
		return nil, ErrNoSnapshot
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var id int64
	var content []byte
	err := j.db.QueryRow(
		`SELECT id, old_content FROM snapshots WHERE file_path = ? ORDER BY id DESC LIMIT 1`,
		filePath,
	).Scan(&id, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if _, err := j.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("pop snapshot: %w", err)
	}
	return content, nil
}

// Count returns the number of snapshots stored for a file.
func (j *Journal) Count(filePath string) (int, error) {
	if j == nil {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int
	err := j.db.QueryRow(
		`SELECT COUNT(*) FROM snapshots WHERE file_path = ?`, filePath,
	).Scan(&n)
	return n, err
}
