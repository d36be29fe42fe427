package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

// SQLite is a Repository backed by an SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer keeps appends ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		tutor_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		hidden INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);

	CREATE TABLE IF NOT EXISTS progress (
		session_id TEXT PRIMARY KEY REFERENCES sessions(id),
		level INTEGER NOT NULL,
		xp INTEGER NOT NULL,
		streak INTEGER NOT NULL,
		last_active_day TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.migrateMessageFlags()
}

// migrateMessageFlags adds the hidden/failed columns to databases created
// before they existed.
func (s *SQLite) migrateMessageFlags() error {
	rows, err := s.db.Query(`PRAGMA table_info(messages)`)
	if err != nil {
		return fmt.Errorf("inspect messages table: %w", err)
	}
	existing := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scan column info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, col := range []string{"hidden", "failed"} {
		if existing[col] {
			continue
		}
		if _, err := s.db.Exec(`ALTER TABLE messages ADD COLUMN ` + col + ` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add messages.%s: %w", col, err)
		}
	}
	return nil
}

func (s *SQLite) CreateSession(ctx context.Context, session chat.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, tutor_id, created_at) VALUES (?, ?, ?)`,
		session.ID, session.TutorID, session.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	p := progress.New(session.ID)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress (session_id, level, xp, streak, last_active_day, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.Level, p.XP, p.Streak, p.LastActiveDay, session.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tutor_id, created_at FROM sessions WHERE id = ?`, sessionID)

	var session chat.Session
	var createdAt int64
	err := row.Scan(&session.ID, &session.TutorID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, ErrNotFound
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("scan session row: %w", err)
	}
	session.CreatedAt = time.Unix(0, createdAt).UTC()
	return session, nil
}

func (s *SQLite) AppendMessage(ctx context.Context, msg chat.Message) error {
	if err := s.sessionExists(ctx, msg.SessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, text, hidden, failed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Text, msg.Hidden, msg.Failed, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLite) LoadHistory(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, hidden, failed, created_at FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []chat.Message{}
	for rows.Next() {
		var msg chat.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Text, &msg.Hidden, &msg.Failed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = chat.Role(role)
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLite) GetProgress(ctx context.Context, sessionID string) (progress.Progression, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, level, xp, streak, last_active_day, updated_at FROM progress WHERE session_id = ?`, sessionID)

	var p progress.Progression
	var updatedAt int64
	err := row.Scan(&p.SessionID, &p.Level, &p.XP, &p.Streak, &p.LastActiveDay, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.Progression{}, ErrNotFound
	}
	if err != nil {
		return progress.Progression{}, fmt.Errorf("scan progress row: %w", err)
	}
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return p, nil
}

func (s *SQLite) SaveProgress(ctx context.Context, p progress.Progression) error {
	if err := s.sessionExists(ctx, p.SessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO progress (session_id, level, xp, streak, last_active_day, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		level = excluded.level,
		xp = excluded.xp,
		streak = excluded.streak,
		last_active_day = excluded.last_active_day,
		updated_at = excluded.updated_at`,
		p.SessionID, p.Level, p.XP, p.Streak, p.LastActiveDay, p.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *SQLite) sessionExists(ctx context.Context, sessionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
