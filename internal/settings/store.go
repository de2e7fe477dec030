package settings

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_log (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     INTEGER NOT NULL,
	actor  TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at DESC);
CREATE TABLE IF NOT EXISTS skating_sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL,
	start_unix   INTEGER NOT NULL,
	jingle_sent  INTEGER NOT NULL DEFAULT 0,
	obs_sent     INTEGER NOT NULL DEFAULT 0,
	display_sent INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_start ON skating_sessions(start_unix);
`

// Store persists operational data that must survive restarts: app settings,
// the audit trail of control commands, and scheduled public-skating
// sessions. Match state itself is deliberately not persisted.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- settings ----

func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) PutSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) ListSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ---- audit ----

type AuditEntry struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

func (s *Store) RecordAudit(actor, action, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_log(at, actor, action, detail) VALUES(?, ?, ?, ?)`,
		time.Now().Unix(), actor, action, detail)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

func (s *Store) RecentAudit(limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, at, actor, action, COALESCE(detail, '')
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Actor, &e.Action, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- public-skating sessions ----

type Session struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	JingleSent  bool      `json:"jingleSent"`
	ObsSent     bool      `json:"obsSent"`
	DisplaySent bool      `json:"displaySent"`
}

func (s *Store) AddSession(title string, start time.Time) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO skating_sessions(title, start_unix) VALUES(?, ?)`,
		title, start.Unix())
	if err != nil {
		return 0, fmt.Errorf("add session: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) DeleteSession(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM skating_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

// UpcomingSessions returns sessions starting in (now, until].
func (s *Store) UpcomingSessions(now, until time.Time) ([]Session, error) {
	return s.querySessions(
		`SELECT id, title, start_unix, jingle_sent, obs_sent, display_sent
		 FROM skating_sessions WHERE start_unix > ? AND start_unix <= ?
		 ORDER BY start_unix`, now.Unix(), until.Unix())
}

// ListSessions returns sessions starting at or after from.
func (s *Store) ListSessions(from time.Time) ([]Session, error) {
	return s.querySessions(
		`SELECT id, title, start_unix, jingle_sent, obs_sent, display_sent
		 FROM skating_sessions WHERE start_unix >= ? ORDER BY start_unix`, from.Unix())
}

func (s *Store) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var start int64
		if err := rows.Scan(&sess.ID, &sess.Title, &start, &sess.JingleSent, &sess.ObsSent, &sess.DisplaySent); err != nil {
			return nil, err
		}
		sess.Start = time.Unix(start, 0).UTC()
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Cue columns that MarkCueSent may touch.
const (
	CueJingle  = "jingle_sent"
	CueObs     = "obs_sent"
	CueDisplay = "display_sent"
)

// MarkCueSent flips one cue flag on a session so the scheduler fires each
// cue at most once.
func (s *Store) MarkCueSent(id int64, cue string) error {
	switch cue {
	case CueJingle, CueObs, CueDisplay:
	default:
		return fmt.Errorf("unknown cue column: %s", cue)
	}
	if _, err := s.db.Exec(
		fmt.Sprintf(`UPDATE skating_sessions SET %s = 1 WHERE id = ?`, cue), id); err != nil {
		return fmt.Errorf("mark cue %s on session %d: %w", cue, id, err)
	}
	return nil
}
