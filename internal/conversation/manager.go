package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/shared"
	"github.com/luminova-studio/siteline/internal/store"
)

// ErrUnknownOption means a quick-option id not on the fixed menu.
var ErrUnknownOption = errors.New("unknown quick option")

// Notifier pushes an engine-initiated message (the idle nudge) to a
// connected widget. A nudge with no open channel is dropped.
type Notifier func(userID, sessionID string, msg domain.Message)

// TurnResult is what one visitor turn produced.
type TurnResult struct {
	Messages   []domain.Message `json:"messages"`
	FormActive bool             `json:"form_active"`
	FormStep   domain.FormStep  `json:"form_step,omitempty"`
}

// Manager owns live conversation sessions: it hydrates state from the
// store on first touch, serializes turns per session, flushes state
// after every turn, and schedules the idle-nudge timer.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionHandle

	engine     *Engine
	repo       store.Repository
	nudgeDelay time.Duration

	notifyMu sync.RWMutex
	notify   Notifier
}

type sessionHandle struct {
	mu    sync.Mutex
	state *domain.ConversationState
	nudge *time.Timer
}

func sessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// NewManager creates a conversation manager.
func NewManager(engine *Engine, repo store.Repository, nudgeDelay time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[string]*sessionHandle),
		engine:     engine,
		repo:       repo,
		nudgeDelay: nudgeDelay,
	}
}

// SetNotifier wires the push channel used for idle nudges.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.notify = n
}

func (m *Manager) pushNudge(userID, sessionID string, msg domain.Message) {
	m.notifyMu.RLock()
	n := m.notify
	m.notifyMu.RUnlock()
	if n != nil {
		n(userID, sessionID, msg)
	}
}

// handleFor returns the live handle for a session, hydrating state from
// the store or creating it fresh.
func (m *Manager) handleFor(ctx context.Context, userID, sessionID string) (*sessionHandle, error) {
	key := sessionKey(userID, sessionID)

	m.mu.Lock()
	h, ok := m.sessions[key]
	if !ok {
		h = &sessionHandle{}
		m.sessions[key] = h
	}
	m.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != nil {
		return h, nil
	}

	state, err := m.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("hydrate chat session: %w", err)
	}
	if state == nil {
		now := time.Now()
		state = &domain.ConversationState{
			UserID:    userID,
			SessionID: sessionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	h.state = state
	return h, nil
}

// HandleMessage runs one visitor turn through the engine.
func (m *Manager) HandleMessage(ctx context.Context, userID, sessionID, text string) (*TurnResult, error) {
	h, err := m.handleFor(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	messages := m.engine.HandleMessage(ctx, h.state, text)
	m.afterTurnLocked(ctx, h)
	return turnResult(h.state, messages), nil
}

// HandleQuickOption runs a quick-option selection through the engine.
func (m *Manager) HandleQuickOption(ctx context.Context, userID, sessionID, optionID string) (*TurnResult, error) {
	opt := FindQuickOption(optionID)
	if opt == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
	}

	h, err := m.handleFor(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	messages := m.engine.HandleQuickOption(ctx, h.state, *opt)
	m.afterTurnLocked(ctx, h)
	return turnResult(h.state, messages), nil
}

func turnResult(state *domain.ConversationState, messages []domain.Message) *TurnResult {
	res := &TurnResult{Messages: messages, FormActive: state.FormActive}
	if state.FormActive {
		res.FormStep = state.FormStep
	}
	return res
}

// afterTurnLocked flushes state and reschedules the nudge timer. The
// transcript changed, so any armed timer is invalidated first.
func (m *Manager) afterTurnLocked(ctx context.Context, h *sessionHandle) {
	if h.nudge != nil {
		h.nudge.Stop()
		h.nudge = nil
	}

	m.flushState(ctx, h.state)

	if !NudgeEligible(h.state) {
		return
	}
	state := h.state
	h.nudge = time.AfterFunc(m.nudgeDelay, func() {
		m.fireNudge(state.UserID, state.SessionID, h)
	})
}

// fireNudge re-checks eligibility under the session lock; any turn that
// ran since arming the timer rescheduled or disarmed it, so the check
// failing means the tick is stale.
func (m *Manager) fireNudge(userID, sessionID string, h *sessionHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil || !NudgeEligible(h.state) {
		return
	}
	msg := Nudge(h.state)
	h.nudge = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.flushState(ctx, h.state)

	slog.Info("Idle nudge sent", "user_id", userID, "session_id", sessionID)
	m.pushNudge(userID, sessionID, msg)
}

// flushState persists the session with retry on SQLite concurrency
// errors. A persistent failure is logged, not surfaced: the in-memory
// session stays authoritative for the rest of the page visit.
func (m *Manager) flushState(ctx context.Context, state *domain.ConversationState) {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = m.repo.UpsertChatSession(ctx, state)
		if err == nil {
			return
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Chat session flush hit SQLITE_BUSY, retrying",
				"user_id", state.UserID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	slog.Error("Failed to persist chat session", "user_id", state.UserID, "session_id", state.SessionID, "error", err)
}

// History returns the session transcript in order.
func (m *Manager) History(ctx context.Context, userID, sessionID string) ([]domain.Message, error) {
	h, err := m.handleFor(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Message, len(h.state.Transcript))
	copy(out, h.state.Transcript)
	return out, nil
}

// Reset discards the session entirely: transcript, draft, timers, and
// the persisted row.
func (m *Manager) Reset(ctx context.Context, userID, sessionID string) error {
	key := sessionKey(userID, sessionID)

	m.mu.Lock()
	h := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if h != nil {
		h.mu.Lock()
		if h.nudge != nil {
			h.nudge.Stop()
			h.nudge = nil
		}
		h.state = nil
		h.mu.Unlock()
	}

	if err := m.repo.DeleteChatSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("reset chat session: %w", err)
	}
	return nil
}

// DropIdle evicts in-memory sessions idle longer than ttl. The sweeper
// calls it together with the store cleanup.
func (m *Manager) DropIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for key, h := range m.sessions {
		h.mu.Lock()
		idle := h.state == nil || h.state.UpdatedAt.Before(cutoff)
		if idle && h.nudge != nil {
			h.nudge.Stop()
			h.nudge = nil
		}
		h.mu.Unlock()
		if idle {
			delete(m.sessions, key)
			dropped++
		}
	}
	return dropped
}
