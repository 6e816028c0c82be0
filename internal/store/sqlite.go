package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/luminova-studio/siteline/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db            *sql.DB
	chatSessionMu sync.Mutex // Mutex for chat session operations to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		form_active INTEGER DEFAULT 0,
		form_step TEXT DEFAULT '',
		edit_target TEXT DEFAULT '',
		edit_return INTEGER DEFAULT 0,
		nudge_sent INTEGER DEFAULT 0,
		draft_json TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS best_records (
		user_id TEXT PRIMARY KEY,
		best_score INTEGER,
		best_time_seconds INTEGER,
		best_moves INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		project_notes TEXT NOT NULL,
		request_type TEXT NOT NULL,
		transcript TEXT NOT NULL,
		relay_ok INTEGER NOT NULL,
		submitted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_user ON leads(user_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetChatSession retrieves conversation state for a user/session pair.
func (s *SQLiteStore) GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ConversationState, error) {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	query := `
		SELECT user_id, session_id, form_active, form_step, edit_target,
		       edit_return, nudge_sent, draft_json, transcript_json,
		       created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND session_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID, sessionID)

	var state domain.ConversationState
	var draftJSON, transcriptJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&state.UserID, &state.SessionID, &state.FormActive, &state.FormStep,
		&state.EditTarget, &state.EditReturn, &state.NudgeSent,
		&draftJSON, &transcriptJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	if err := json.Unmarshal([]byte(draftJSON), &state.Draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	if err := json.Unmarshal([]byte(transcriptJSON), &state.Transcript); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}

	state.CreatedAt = time.Unix(createdAt, 0)
	state.UpdatedAt = time.Unix(updatedAt, 0)

	return &state, nil
}

// UpsertChatSession creates or updates conversation state.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, state *domain.ConversationState) error {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	draftJSON, err := json.Marshal(state.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	transcriptJSON, err := json.Marshal(state.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	query := `
		INSERT INTO chat_sessions (
			user_id, session_id, form_active, form_step, edit_target,
			edit_return, nudge_sent, draft_json, transcript_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			form_active = excluded.form_active,
			form_step = excluded.form_step,
			edit_target = excluded.edit_target,
			edit_return = excluded.edit_return,
			nudge_sent = excluded.nudge_sent,
			draft_json = excluded.draft_json,
			transcript_json = excluded.transcript_json,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.UserID, state.SessionID, state.FormActive, string(state.FormStep),
		state.EditTarget, state.EditReturn, state.NudgeSent,
		string(draftJSON), string(transcriptJSON),
		state.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// DeleteChatSession discards conversation state entirely.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, userID, sessionID string) error {
	s.chatSessionMu.Lock()
	defer s.chatSessionMu.Unlock()

	query := `DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, sessionID); err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	return nil
}

// CleanupExpiredChatSessions removes sessions idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM chat_sessions WHERE updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired chat sessions: %w", err)
	}
	return result.RowsAffected()
}

// GetBestRecord retrieves the persisted best record for a user.
func (s *SQLiteStore) GetBestRecord(ctx context.Context, userID string) (*domain.BestRecord, error) {
	query := `
		SELECT best_score, best_time_seconds, best_moves
		FROM best_records WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var score, timeSecs, moves sql.NullInt64
	err := row.Scan(&score, &timeSecs, &moves)
	if err == sql.ErrNoRows {
		return &domain.BestRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan best record: %w", err)
	}

	record := &domain.BestRecord{}
	if score.Valid {
		record.HasScore = true
		record.Score = int(score.Int64)
	}
	if timeSecs.Valid {
		record.HasTime = true
		record.TimeSecs = int(timeSecs.Int64)
	}
	if moves.Valid {
		record.HasMoves = true
		record.Moves = int(moves.Int64)
	}

	return record, nil
}

// UpsertBestRecord writes the best record for a user.
func (s *SQLiteStore) UpsertBestRecord(ctx context.Context, userID string, record *domain.BestRecord) error {
	var score, timeSecs, moves interface{}
	if record.HasScore {
		score = record.Score
	}
	if record.HasTime {
		timeSecs = record.TimeSecs
	}
	if record.HasMoves {
		moves = record.Moves
	}

	query := `
		INSERT INTO best_records (user_id, best_score, best_time_seconds, best_moves, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			best_score = excluded.best_score,
			best_time_seconds = excluded.best_time_seconds,
			best_moves = excluded.best_moves,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, userID, score, timeSecs, moves, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert best record: %w", err)
	}
	return nil
}

// InsertLead records a submitted lead locally.
func (s *SQLiteStore) InsertLead(ctx context.Context, lead *domain.LeadSubmission) error {
	query := `
		INSERT INTO leads (id, user_id, name, email, phone, project_notes,
		                   request_type, transcript, relay_ok, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID, lead.UserID,
		lead.Lead.Name, lead.Lead.Email, lead.Lead.PhoneOrSentinel(),
		lead.Lead.ProjectNotes, lead.Lead.RequestType,
		lead.Transcript, lead.RelayOK, lead.SubmittedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
