package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/ports"
)

// DefaultArchivePath is where finished interactions are archived when the
// config does not name a path.
func DefaultArchivePath() string {
	return filepath.Join(filesystem.UserHomeDir(), ".opsagent", "history", "interactions.db")
}

// SQLiteArchive persists finished interactions in a SQLite database.
type SQLiteArchive struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteArchive creates (or opens) the archive database at path.
func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultArchivePath()
	}
	path = filesystem.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	store := &SQLiteArchive{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return store, nil
}

func (s *SQLiteArchive) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		timestamp TEXT,
		server_name TEXT,
		model TEXT,
		instruction TEXT,
		error TEXT,
		payload TEXT
	);`)
	return err
}

// Save inserts a finished interaction.
func (s *SQLiteArchive) Save(sessionID string, interaction domain.Interaction) error {
	payload, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	ts := interaction.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO interactions
		(session_id, timestamp, server_name, model, instruction, error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		ts.UTC().Format(time.RFC3339Nano),
		interaction.Target,
		interaction.Model,
		interaction.Instruction,
		interaction.Error,
		string(payload),
	)
	return err
}

// Records returns archived interactions, newest first (limit/search optional).
func (s *SQLiteArchive) Records(limit int, search string) ([]domain.ArchivedInteraction, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT session_id, payload FROM interactions")
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE instruction LIKE ? OR server_name LIKE ? OR payload LIKE ?")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	builder.WriteString(" ORDER BY id DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.ArchivedInteraction
	for rows.Next() {
		var rec domain.ArchivedInteraction
		var payload string
		if err := rows.Scan(&rec.SessionID, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Interaction); err != nil {
			return nil, fmt.Errorf("decode interaction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all archived interactions.
func (s *SQLiteArchive) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM interactions")
	return err
}

// Path returns the sqlite database path.
func (s *SQLiteArchive) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteArchive) Close() error {
	return s.db.Close()
}

var _ ports.InteractionArchive = (*SQLiteArchive)(nil)
