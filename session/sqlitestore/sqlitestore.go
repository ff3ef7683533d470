// Package sqlitestore is a session.Store backed by SQLite.
//
// Messages and plans are stored as JSON payloads; append order is preserved
// by a monotonic sequence column and each Append runs in one transaction,
// so a failed append leaves no partial message behind. The database runs
// in WAL mode for concurrent readers.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/plan"
	"github.com/adolfousier/opencrab/session"
)

// Store implements session.Store on a SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens or creates a SQLite store at the given path.
// Parent directories are created if needed.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: creating schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id             TEXT PRIMARY KEY,
			title          TEXT NOT NULL,
			active_plan_id TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			payload    TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages(session_id, seq);

		CREATE TABLE IF NOT EXISTS plans (
			session_id TEXT PRIMARY KEY,
			payload    TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS costs (
			session_id    TEXT PRIMARY KEY,
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			usd           REAL NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) CreateSession(ctx context.Context, title string) (session.Session, error) {
	sess := session.Session{
		ID:        "ses-" + uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, active_plan_id, created_at) VALUES (?, ?, '', ?)`,
		sess.ID, sess.Title, sess.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlitestore: creating session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, active_plan_id, created_at FROM sessions WHERE id = ?`, id)
	return scanSession(row, id)
}

func scanSession(row *sql.Row, id string) (session.Session, error) {
	var sess session.Session
	var createdAt string
	err := row.Scan(&sess.ID, &sess.Title, &sess.ActivePlanID, &createdAt)
	if err == sql.ErrNoRows {
		return session.Session{}, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlitestore: reading session: %w", err)
	}
	sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return session.Session{}, fmt.Errorf("sqlitestore: parsing created_at: %w", err)
	}
	return sess, nil
}

func (s *Store) Sessions(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, active_plan_id, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		var sess session.Session
		var createdAt string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.ActivePlanID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning session: %w", err)
		}
		if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("sqlitestore: parsing created_at: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, sessionID string, msgs ...ai.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: beginning append: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, sessionID); err != nil {
		return err
	}

	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("sqlitestore: marshaling message %s: %w", msg.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, payload) VALUES (?, ?)`,
			sessionID, payload); err != nil {
			return fmt.Errorf("sqlitestore: appending message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) Conversation(ctx context.Context, sessionID string) ([]ai.Message, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: reading conversation: %w", err)
	}
	defer rows.Close()

	var msgs []ai.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning message: %w", err)
		}
		var msg ai.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("sqlitestore: unmarshaling message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *Store) SavePlan(ctx context.Context, sessionID string, snap plan.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshaling plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: beginning save: %w", err)
	}
	defer tx.Rollback()

	if err := sessionExists(ctx, tx, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO plans (session_id, payload) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload`,
		sessionID, payload); err != nil {
		return fmt.Errorf("sqlitestore: saving plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET active_plan_id = ? WHERE id = ?`,
		snap.ID, sessionID); err != nil {
		return fmt.Errorf("sqlitestore: updating active plan: %w", err)
	}

	return tx.Commit()
}

func (s *Store) LoadPlan(ctx context.Context, sessionID string) (plan.Snapshot, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return plan.Snapshot{}, err
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM plans WHERE session_id = ?`, sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return plan.Snapshot{}, session.ErrNoPlan
	}
	if err != nil {
		return plan.Snapshot{}, fmt.Errorf("sqlitestore: reading plan: %w", err)
	}

	var snap plan.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return plan.Snapshot{}, fmt.Errorf("sqlitestore: unmarshaling plan: %w", err)
	}
	return snap, nil
}

func (s *Store) AddCost(ctx context.Context, sessionID string, usage ai.Usage, usd float64) error {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO costs (session_id, input_tokens, output_tokens, usd) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			input_tokens = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			usd = usd + excluded.usd`,
		sessionID, usage.InputTokens, usage.OutputTokens, usd)
	if err != nil {
		return fmt.Errorf("sqlitestore: adding cost: %w", err)
	}
	return nil
}

func (s *Store) Cost(ctx context.Context, sessionID string) (session.Cost, error) {
	if err := sessionExists(ctx, s.db, sessionID); err != nil {
		return session.Cost{}, err
	}

	var cost session.Cost
	err := s.db.QueryRowContext(ctx,
		`SELECT input_tokens, output_tokens, usd FROM costs WHERE session_id = ?`,
		sessionID).Scan(&cost.Usage.InputTokens, &cost.Usage.OutputTokens, &cost.USD)
	if err == sql.ErrNoRows {
		return session.Cost{}, nil
	}
	if err != nil {
		return session.Cost{}, fmt.Errorf("sqlitestore: reading cost: %w", err)
	}
	return cost, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sessionExists(ctx context.Context, q querier, sessionID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: checking session: %w", err)
	}
	return nil
}
