package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxhire/voxhire/pkg/errorsx"
	"github.com/voxhire/voxhire/pkg/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	role       TEXT NOT NULL,
	seniority  TEXT NOT NULL,
	history    TEXT NOT NULL,
	evaluation TEXT,
	taken_at   TIMESTAMP NOT NULL
);
`

// SQLiteStore persists snapshots in a local SQLite database. History and
// evaluation are stored as JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	history, err := json.Marshal(snap.History)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	var evaluation []byte
	if snap.Evaluation != nil {
		evaluation, err = json.Marshal(snap.Evaluation)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonPersist)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, status, role, seniority, history, evaluation, taken_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			history = excluded.history,
			evaluation = excluded.evaluation,
			taken_at = excluded.taken_at`,
		snap.SessionID, string(snap.Status), snap.Role, snap.Seniority,
		string(history), nullable(evaluation), snap.TakenAt.UTC())
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, role, seniority, history, evaluation, taken_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var snap Snapshot
	var status, history string
	var evaluation sql.NullString
	var takenAt time.Time
	err := row.Scan(&status, &snap.Role, &snap.Seniority, &history, &evaluation, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
	}

	snap.SessionID = sessionID
	snap.Status = session.Status(status)
	snap.TakenAt = takenAt
	if err := json.Unmarshal([]byte(history), &snap.History); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
	}
	if evaluation.Valid {
		snap.Evaluation = &session.Evaluation{}
		if err := json.Unmarshal([]byte(evaluation.String), snap.Evaluation); err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonPersist)
		}
	}
	return &snap, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
