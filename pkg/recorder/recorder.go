// Package recorder stores telemetry sessions in a SQLite database.
package recorder

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/itohio/gopedal/pkg/telemetry"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		note TEXT,
		started_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS frames (
		session_id TEXT NOT NULL,
		received_at INTEGER NOT NULL,
		raw_clutch INTEGER NOT NULL,
		raw_throttle INTEGER NOT NULL,
		raw_brake INTEGER NOT NULL,
		out_clutch INTEGER NOT NULL,
		out_throttle INTEGER NOT NULL,
		out_brake INTEGER NOT NULL,
		FOREIGN KEY(session_id) REFERENCES sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_frames_session ON frames(session_id, received_at);
`

// Session is a recorded capture.
type Session struct {
	ID        string
	Note      string
	StartedAt time.Time
	Frames    int
}

// Recorder writes frames to SQLite.
type Recorder struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder database: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create recorder schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// StartSession creates a session and returns its ID.
func (r *Recorder) StartSession(note string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(`INSERT INTO sessions (session_id, note, started_at) VALUES (?, ?, ?)`,
		id, note, time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// Record appends a frame to a session.
func (r *Recorder) Record(sessionID string, f telemetry.Frame) error {
	at := f.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(`
		INSERT INTO frames (
			session_id, received_at,
			raw_clutch, raw_throttle, raw_brake,
			out_clutch, out_throttle, out_brake
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, at.UnixNano(),
		f.Raw[0], f.Raw[1], f.Raw[2],
		f.Out[0], f.Out[1], f.Out[2],
	)
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}
	return nil
}

// Frames returns the frames of a session in arrival order.
func (r *Recorder) Frames(sessionID string) ([]telemetry.Frame, error) {
	rows, err := r.db.Query(`
		SELECT received_at,
		       raw_clutch, raw_throttle, raw_brake,
		       out_clutch, out_throttle, out_brake
		FROM frames
		WHERE session_id = ?
		ORDER BY received_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var frames []telemetry.Frame
	for rows.Next() {
		var f telemetry.Frame
		var at int64
		if err := rows.Scan(&at,
			&f.Raw[0], &f.Raw[1], &f.Raw[2],
			&f.Out[0], &f.Out[1], &f.Out[2],
		); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Time = time.Unix(0, at)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Sessions lists all sessions, newest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT s.session_id, s.note, s.started_at, COUNT(f.session_id)
		FROM sessions s
		LEFT JOIN frames f ON f.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var note sql.NullString
		var started int64
		if err := rows.Scan(&s.ID, &note, &started, &s.Frames); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Note = note.String
		s.StartedAt = time.Unix(0, started)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
