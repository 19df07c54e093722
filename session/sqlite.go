package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Maxitapiaalfaro/hopeai-copilot-v0-sub001/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT PRIMARY KEY,
	active_handler      TEXT,
	pending_attachments TEXT NOT NULL DEFAULT '[]',
	token_estimate      INTEGER NOT NULL DEFAULT 0,
	metadata            TEXT NOT NULL DEFAULT '{}',
	created_at          INTEGER NOT NULL,
	updated_at          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	handler    TEXT,
	parts      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);
`

// SQLiteStore is a durable SessionStore backed by a local SQLite database.
// Suitable for single-node deployments; the schema is created on open.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load reconstructs a session and its full turn history.
func (s *SQLiteStore) Load(id string) (*core.Session, error) {
	var (
		handler        sql.NullString
		attachmentsRaw string
		metadataRaw    string
		tokenEstimate  int
		createdAt      int64
		updatedAt      int64
	)
	err := s.db.QueryRow(
		`SELECT active_handler, pending_attachments, token_estimate, metadata, created_at, updated_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&handler, &attachmentsRaw, &tokenEstimate, &metadataRaw, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sess := core.NewSession(id)
	sess.TokenEstimate = tokenEstimate
	sess.Created = time.Unix(createdAt, 0).UTC()
	sess.Updated = time.Unix(updatedAt, 0).UTC()
	if handler.Valid {
		kind, err := core.ParseHandlerKind(handler.String)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		sess.ActiveHandler = &kind
	}
	if err := json.Unmarshal([]byte(attachmentsRaw), &sess.PendingAttachments); err != nil {
		return nil, fmt.Errorf("load session %s attachments: %w", id, err)
	}
	if err := json.Unmarshal([]byte(metadataRaw), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("load session %s metadata: %w", id, err)
	}

	turns, err := s.loadTurns(id)
	if err != nil {
		return nil, err
	}
	sess.Turns = turns
	return sess, nil
}

func (s *SQLiteStore) loadTurns(sessionID string) ([]core.Turn, error) {
	rows, err := s.db.Query(
		`SELECT id, role, handler, parts, created_at FROM turns WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	turns := []core.Turn{}
	for rows.Next() {
		var (
			t         core.Turn
			handler   sql.NullString
			partsRaw  []byte
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Role, &handler, &partsRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if handler.Valid {
			h := handler.String
			t.Handler = &h
		}
		parts, err := core.UnmarshalParts(partsRaw)
		if err != nil {
			return nil, fmt.Errorf("decode turn %s parts: %w", t.ID, err)
		}
		t.Parts = parts
		t.Timestamp = time.Unix(createdAt, 0).UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Save persists the full session snapshot, replacing any stored turn history
// with the snapshot's.
func (s *SQLiteStore) Save(sess *core.Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	defer tx.Rollback()

	attachments, err := json.Marshal(sess.PendingAttachmentIDs())
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}
	metadata, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var handler any
	if kind, ok := sess.ActiveHandlerKind(); ok {
		handler = kind.String()
	}

	_, err = tx.Exec(
		`INSERT INTO sessions (id, active_handler, pending_attachments, token_estimate, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			active_handler = excluded.active_handler,
			pending_attachments = excluded.pending_attachments,
			token_estimate = excluded.token_estimate,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		sess.ID, handler, string(attachments), sess.TokenEstimate, string(metadata),
		sess.Created.Unix(), sess.Updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sess.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM turns WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear turns for %s: %w", sess.ID, err)
	}
	for seq, t := range sess.GetTurns() {
		if err := insertTurn(tx, sess.ID, seq, t); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a session and its turns.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// AppendTurn appends one turn to an existing session's history.
func (s *SQLiteStore) AppendTurn(sessionID string, t core.Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if exists == 0 {
		return core.ErrSessionNotFound
	}

	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM turns WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}
	if err := insertTurn(tx, sessionID, seq, t); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().Unix(), sessionID); err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}

	return tx.Commit()
}

func insertTurn(tx *sql.Tx, sessionID string, seq int, t core.Turn) error {
	parts, err := core.MarshalParts(t.Parts)
	if err != nil {
		return fmt.Errorf("encode turn %s parts: %w", t.ID, err)
	}
	var handler any
	if t.Handler != nil {
		handler = *t.Handler
	}
	_, err = tx.Exec(
		`INSERT INTO turns (id, session_id, seq, role, handler, parts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, sessionID, seq, t.Role, handler, string(parts), t.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert turn %s: %w", t.ID, err)
	}
	return nil
}
