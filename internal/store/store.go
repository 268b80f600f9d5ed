// Package store persists conversation sessions, the active-session pointer,
// and the patient profile to a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/drai-ai/drai/internal/chat"
	"github.com/drai-ai/drai/internal/log"
	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL,
    message_count INTEGER DEFAULT 0,
    messages      TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT ''
);
`

const (
	keyActiveSession = "active_session_id"
	keyProfile       = "user_profile"
)

// ErrSessionNotFound is returned when an id does not resolve to a session.
var ErrSessionNotFound = errors.New("store: session not found")

// Store is the durable session store backed by SQLite.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path (~/.local/share/drai/drai.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "drai", "drai.db"), nil
}

// Open opens (or creates) the database at dbPath and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps reads cheap while the TUI polls session lists.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a fresh session with the welcome message, makes it
// active, and persists both.
func (s *Store) CreateSession() (*chat.Session, error) {
	sess := chat.NewSession()
	if err := s.save(sess); err != nil {
		return nil, err
	}
	if err := s.setSetting(keyActiveSession, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// SelectSession makes the named session active. Unknown ids are a silent
// no-op: the previous active session stays in place.
func (s *Store) SelectSession(id string) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select session: %w", err)
	}
	return s.setSetting(keyActiveSession, id)
}

// DeleteSession removes the session. If it was active, the most recently
// updated survivor becomes active; with no survivors a fresh session is
// created.
func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	active, err := s.getSetting(keyActiveSession)
	if err != nil {
		return err
	}
	if active != id {
		return nil
	}

	// The active session is gone; promote or recreate.
	infos, err := s.Sessions()
	if err != nil {
		return err
	}
	if len(infos) > 0 {
		return s.setSetting(keyActiveSession, infos[0].ID)
	}
	_, err = s.CreateSession()
	return err
}

// ActiveSession loads the active session, healing a dangling pointer per the
// data-model invariant: a missing or unknown active id resolves to the most
// recently updated session, or a fresh one when the list is empty.
func (s *Store) ActiveSession() (*chat.Session, error) {
	id, err := s.getSetting(keyActiveSession)
	if err != nil {
		return nil, err
	}
	if id != "" {
		sess, err := s.Load(id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}

	infos, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	if len(infos) > 0 {
		if err := s.setSetting(keyActiveSession, infos[0].ID); err != nil {
			return nil, err
		}
		return s.Load(infos[0].ID)
	}
	return s.CreateSession()
}

// AppendMessage appends msg to the named session and persists. Idempotent on
// message id: replaying an already-stored message is a no-op, so a logical
// append results in exactly one write.
func (s *Store) AppendMessage(sessionID string, msg chat.Message) error {
	sess, err := s.Load(sessionID)
	if err != nil {
		return err
	}
	if sess.HasMessage(msg.ID) {
		return nil
	}
	sess.Messages = append(sess.Messages, msg)
	sess.DeriveTitle()
	return s.save(sess)
}

// Load fetches one session by id.
func (s *Store) Load(id string) (*chat.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, title, created_at, updated_at, messages
		FROM sessions WHERE id = ?`, id)

	var sess chat.Session
	var createdAt, updatedAt, msgJSON string
	err := row.Scan(&sess.ID, &sess.Title, &createdAt, &updatedAt, &msgJSON)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	if err := json.Unmarshal([]byte(msgJSON), &sess.Messages); err != nil {
		// Corrupt persisted state: start the thread over rather than
		// propagating a parse failure into the UI.
		log.Warn("unparseable session messages, resetting", "session", id, "err", err)
		sess.Messages = nil
	}

	return &sess, nil
}

// SessionInfo is the sidebar view of a session.
type SessionInfo struct {
	ID           string
	Title        string
	UpdatedAt    time.Time
	MessageCount int
}

// Sessions lists all sessions, most recently updated first.
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, title, updated_at, message_count
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var updatedAt string
		if err := rows.Scan(&info.ID, &info.Title, &updatedAt, &info.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// updated_at has nanosecond precision but is stored as text; re-sort to
	// keep ordering stable across formatting quirks.
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

// Search lists sessions whose title contains the query, newest first.
func (s *Store) Search(query string) ([]SessionInfo, error) {
	infos, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	matched := infos[:0]
	for _, info := range infos {
		sess := chat.Session{Title: info.Title}
		if sess.MatchesQuery(query) {
			matched = append(matched, info)
		}
	}
	return matched, nil
}

// SaveProfile persists the patient profile.
func (s *Store) SaveProfile(p chat.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.setSetting(keyProfile, string(data))
}

// Profile loads the patient profile; a missing or corrupt record yields the
// zero profile.
func (s *Store) Profile() chat.Profile {
	var p chat.Profile
	raw, err := s.getSetting(keyProfile)
	if err != nil || raw == "" {
		return p
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Warn("unparseable profile, ignoring", "err", err)
		return chat.Profile{}
	}
	return p
}

// ActiveSessionID returns the raw active-session pointer ("" when unset).
func (s *Store) ActiveSessionID() (string, error) {
	return s.getSetting(keyActiveSession)
}

func (s *Store) save(sess *chat.Session) error {
	sess.UpdatedAt = time.Now()

	msgJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions
			(id, title, created_at, updated_at, message_count, messages)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Title,
		sess.CreatedAt.Format(time.RFC3339Nano),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		len(sess.Messages),
		string(msgJSON),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) setSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) getSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}
