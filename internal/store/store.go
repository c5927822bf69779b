// Package store persists detection history in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store handles SQLite database operations.
type Store struct {
	db *sql.DB
}

// DetectionEventRecord is one published detection cycle stored in the
// database. Boxes are serialized to JSON in a single column.
type DetectionEventRecord struct {
	ID            string
	Timestamp     time.Time
	Seq           uint64
	CorrelationID string
	FrameWidth    int
	FrameHeight   int
	Count         int
	Boxes         []BoxRecord
}

// BoxRecord is one stored bounding box in pixel coordinates.
type BoxRecord struct {
	Class       string  `json:"class"`
	Probability float32 `json:"probability"`
	XMin        int     `json:"xmin"`
	YMin        int     `json:"ymin"`
	XMax        int     `json:"xmax"`
	YMax        int     `json:"ymax"`
	Depth       float32 `json:"depth,omitempty"`
}

// Open creates a new database connection.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS detection_events (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			seq INTEGER NOT NULL,
			correlation_id TEXT,
			frame_width INTEGER NOT NULL,
			frame_height INTEGER NOT NULL,
			count INTEGER NOT NULL,
			boxes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_time ON detection_events(timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_correlation ON detection_events(correlation_id)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

// SaveEvent stores one detection event.
func (s *Store) SaveEvent(event *DetectionEventRecord) error {
	boxJSON, err := json.Marshal(event.Boxes)
	if err != nil {
		return fmt.Errorf("failed to marshal boxes: %w", err)
	}

	query := `INSERT INTO detection_events
		(id, timestamp, seq, correlation_id, frame_width, frame_height, count, boxes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, event.ID, event.Timestamp, event.Seq, event.CorrelationID,
		event.FrameWidth, event.FrameHeight, event.Count, string(boxJSON))
	if err != nil {
		return fmt.Errorf("failed to save detection event: %w", err)
	}
	return nil
}

// GetEvent fetches one event by id.
func (s *Store) GetEvent(id string) (*DetectionEventRecord, error) {
	row := s.db.QueryRow(`SELECT id, timestamp, seq, correlation_id, frame_width, frame_height, count, boxes
		FROM detection_events WHERE id = ?`, id)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return event, err
}

// ListEvents returns events newest first, optionally bounded by since and
// limit.
func (s *Store) ListEvents(since *time.Time, limit int) ([]*DetectionEventRecord, error) {
	query := `SELECT id, timestamp, seq, correlation_id, frame_width, frame_height, count, boxes
		FROM detection_events WHERE 1=1`
	args := []interface{}{}

	if since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *since)
	}

	query += " ORDER BY timestamp DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detection events: %w", err)
	}
	defer rows.Close()

	var events []*DetectionEventRecord
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteOlderThan removes events before the given time and returns how
// many were deleted.
func (s *Store) DeleteOlderThan(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM detection_events WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*DetectionEventRecord, error) {
	var event DetectionEventRecord
	var boxJSON string

	if err := row.Scan(&event.ID, &event.Timestamp, &event.Seq, &event.CorrelationID,
		&event.FrameWidth, &event.FrameHeight, &event.Count, &boxJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan detection event: %w", err)
	}

	if boxJSON != "" {
		if err := json.Unmarshal([]byte(boxJSON), &event.Boxes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal boxes: %w", err)
		}
	}
	return &event, nil
}
