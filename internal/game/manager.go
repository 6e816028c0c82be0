package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/store"
)

var (
	// ErrNoSession means the user has no active playthrough.
	ErrNoSession = errors.New("no active game session")
	// ErrSessionMismatch means the supplied session id does not match
	// the user's active playthrough.
	ErrSessionMismatch = errors.New("game session id mismatch")
)

// Manager owns one active session per user and persists best records at
// completion. Records are read at session start and written at
// completion only.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	repo     store.Repository
	opts     []Option
}

// NewManager creates a session manager backed by the repository.
// Extra options are applied to every session it creates.
func NewManager(repo store.Repository, opts ...Option) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		repo:     repo,
		opts:     opts,
	}
}

// Start creates a fresh session for the user, replacing any prior one,
// and returns the initial board alongside the persisted best record.
func (m *Manager) Start(ctx context.Context, userID string) (domain.GameSnapshot, *domain.BestRecord, error) {
	best, err := m.repo.GetBestRecord(ctx, userID)
	if err != nil {
		return domain.GameSnapshot{}, nil, fmt.Errorf("load best record: %w", err)
	}

	session := NewSession(userID, m.opts...)

	m.mu.Lock()
	m.sessions[userID] = session
	m.mu.Unlock()

	slog.Info("Game session started", "user_id", userID, "session_id", session.ID())
	return session.Snapshot(), best, nil
}

// CompletionOutcome extends the engine completion with record updates.
type CompletionOutcome struct {
	Score          int                      `json:"score"`
	ElapsedSeconds int                      `json:"elapsed_seconds"`
	Moves          int                      `json:"moves"`
	Improved       domain.RecordImprovement `json:"improved"`
	Best           domain.BestRecord        `json:"best"`
	Celebrate      bool                     `json:"celebrate"`
}

// FlipOutcome is the API-facing result of one flip.
type FlipOutcome struct {
	Accepted   bool                `json:"accepted"`
	Resolved   bool                `json:"resolved"`
	Matched    bool                `json:"matched"`
	Snapshot   domain.GameSnapshot `json:"snapshot"`
	Completion *CompletionOutcome  `json:"completion,omitempty"`
}

// Flip applies a flip to the user's active session. On the completing
// flip it updates any strictly improved best-record metrics and fires
// the one-shot celebration.
func (m *Manager) Flip(ctx context.Context, userID, sessionID string, cardID int) (*FlipOutcome, error) {
	m.mu.Lock()
	session := m.sessions[userID]
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNoSession
	}
	if sessionID != "" && sessionID != session.ID() {
		return nil, ErrSessionMismatch
	}

	result := session.Flip(cardID)
	outcome := &FlipOutcome{
		Accepted: result.Accepted,
		Resolved: result.Resolved,
		Matched:  result.Matched,
	}

	if result.Completion != nil {
		completion, err := m.recordCompletion(ctx, userID, session, result.Completion)
		if err != nil {
			// The playthrough itself completed fine; a storage failure
			// must not take that away from the player.
			slog.Error("Failed to persist best record", "user_id", userID, "error", err)
			completion = &CompletionOutcome{
				Score:          result.Completion.Score,
				ElapsedSeconds: result.Completion.ElapsedSeconds,
				Moves:          result.Completion.Moves,
				Celebrate:      session.Celebrate(),
			}
		}
		outcome.Completion = completion
	}

	outcome.Snapshot = session.Snapshot()
	return outcome, nil
}

func (m *Manager) recordCompletion(ctx context.Context, userID string, session *Session, c *Completion) (*CompletionOutcome, error) {
	best, err := m.repo.GetBestRecord(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load best record: %w", err)
	}

	improved := best.Apply(c.Score, c.ElapsedSeconds, c.Moves)
	if improved.Improved() {
		if err := m.repo.UpsertBestRecord(ctx, userID, best); err != nil {
			return nil, fmt.Errorf("save best record: %w", err)
		}
	}

	slog.Info("Game completed",
		"user_id", userID,
		"session_id", session.ID(),
		"score", c.Score,
		"moves", c.Moves,
		"elapsed_seconds", c.ElapsedSeconds,
		"improved_score", improved.Score,
		"improved_time", improved.Time,
		"improved_moves", improved.Moves,
	)

	return &CompletionOutcome{
		Score:          c.Score,
		ElapsedSeconds: c.ElapsedSeconds,
		Moves:          c.Moves,
		Improved:       improved,
		Best:           *best,
		Celebrate:      session.Celebrate(),
	}, nil
}

// Snapshot returns the current board for the user's active session.
func (m *Manager) Snapshot(userID string) (domain.GameSnapshot, error) {
	m.mu.Lock()
	session := m.sessions[userID]
	m.mu.Unlock()

	if session == nil {
		return domain.GameSnapshot{}, ErrNoSession
	}
	return session.Snapshot(), nil
}

// Best returns the persisted best record for the user.
func (m *Manager) Best(ctx context.Context, userID string) (*domain.BestRecord, error) {
	return m.repo.GetBestRecord(ctx, userID)
}

// Drop discards the user's active session, if any.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// DropIdle evicts sessions with no interaction for at least ttl and
// returns how many were dropped. Completed playthroughs age out the
// same way; best records are already persisted by then.
func (m *Manager) DropIdle(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for userID, session := range m.sessions {
		if time.Since(session.LastActivity()) >= ttl {
			delete(m.sessions, userID)
			dropped++
		}
	}
	return dropped
}
