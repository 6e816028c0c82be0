package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/luminova-studio/siteline/internal/conversation"
	"github.com/luminova-studio/siteline/internal/domain"
	"github.com/luminova-studio/siteline/internal/game"
	"github.com/luminova-studio/siteline/internal/identity"
)

type fakeRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	sessions map[string]*domain.ConversationState
	records  map[string]*domain.BestRecord
	leads    []*domain.LeadSubmission
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]*domain.ConversationState),
		records:  make(map[string]*domain.BestRecord),
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }

func (f *fakeRepo) GetChatSession(_ context.Context, userID, sessionID string) (*domain.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.sessions[userID+":"+sessionID]
	if state == nil {
		return nil, nil
	}
	copy := *state
	return &copy, nil
}

func (f *fakeRepo) UpsertChatSession(_ context.Context, state *domain.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *state
	f.sessions[state.UserID+":"+state.SessionID] = &copy
	return nil
}

func (f *fakeRepo) DeleteChatSession(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID+":"+sessionID)
	return nil
}

func (f *fakeRepo) CleanupExpiredChatSessions(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) GetBestRecord(_ context.Context, userID string) (*domain.BestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[userID]; ok {
		copy := *r
		return &copy, nil
	}
	return &domain.BestRecord{}, nil
}

func (f *fakeRepo) UpsertBestRecord(_ context.Context, userID string, record *domain.BestRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *record
	f.records[userID] = &copy
	return nil
}

func (f *fakeRepo) InsertLead(_ context.Context, lead *domain.LeadSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }
func (f *fakeRepo) Close() error                 { return nil }

type stubOracle struct{ reply string }

func (s *stubOracle) Complete(_ context.Context, _ []domain.Message) (string, error) {
	return s.reply, nil
}

type stubSubmitter struct{}

func (s *stubSubmitter) Send(_ context.Context, _ string, _ domain.LeadRecord, _ []domain.Message) error {
	return nil
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	repo := newFakeRepo()

	engine := conversation.NewEngine(&stubOracle{reply: "We build websites."}, &stubSubmitter{}, "hello@luminova.studio")
	chatMgr := conversation.NewManager(engine, repo, time.Hour)
	gameMgr := game.NewManager(repo)

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	NewMeHandler(repo).RegisterRoutes(r)
	NewChatHandler(chatMgr, NewRateLimiter(100, time.Minute)).RegisterRoutes(r)
	NewGameHandler(gameMgr).RegisterRoutes(r)
	return r
}

// do issues a request, carrying the identity cookie between calls.
func do(t *testing.T, router http.Handler, cookie *http.Cookie, method, path, body string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == identity.AnonCookieName {
			cookie = c
		}
	}
	return w, cookie
}

func TestGetMe(t *testing.T) {
	router := newTestRouter(t)

	w, cookie := do(t, router, nil, http.MethodGet, "/api/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if cookie == nil {
		t.Fatal("First request should set the anonymous cookie")
	}

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["user_id"] != cookie.Value {
		t.Errorf("Expected user_id %q, got %q", cookie.Value, got["user_id"])
	}
	if !strings.HasPrefix(got["username"], "visitor-") {
		t.Errorf("Unexpected username: %q", got["username"])
	}

	// Same cookie, same identity.
	w, _ = do(t, router, cookie, http.MethodGet, "/api/me", "")
	var again map[string]string
	if err := json.NewDecoder(w.Body).Decode(&again); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if again["user_id"] != got["user_id"] {
		t.Errorf("Identity changed between requests: %q vs %q", again["user_id"], got["user_id"])
	}
}

func TestChatMessageEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, cookie := do(t, router, nil, http.MethodPost, "/api/chat/message", `{"message":"what do you do?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res conversation.TurnResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Content != "We build websites." {
		t.Errorf("Unexpected turn result: %+v", res)
	}

	// Empty message is rejected.
	w, _ = do(t, router, cookie, http.MethodPost, "/api/chat/message", `{"message":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Empty message should 400, got %d", w.Code)
	}

	// History carries both turns.
	w, _ = do(t, router, cookie, http.MethodGet, "/api/chat/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("History failed: %d", w.Code)
	}
	var hist struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&hist); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(hist.Messages) != 2 {
		t.Errorf("Expected 2 history messages, got %d", len(hist.Messages))
	}
}

func TestChatQuickOptionEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, cookie := do(t, router, nil, http.MethodPost, "/api/chat/quick-option", `{"id":"budget"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res conversation.TurnResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Errorf("Quick option should return two messages, got %d", len(res.Messages))
	}

	w, _ = do(t, router, cookie, http.MethodPost, "/api/chat/quick-option", `{"id":"bogus"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Unknown option should 400, got %d", w.Code)
	}
}

func TestChatOptionsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, nil, http.MethodGet, "/api/chat/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var got struct {
		Options []conversation.QuickOption `json:"options"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode options: %v", err)
	}
	if len(got.Options) != 5 {
		t.Errorf("Expected the fixed 5-option menu, got %d", len(got.Options))
	}
}

func TestGameEndpoints(t *testing.T) {
	router := newTestRouter(t)

	// State before start is a 404.
	w, cookie := do(t, router, nil, http.MethodGet, "/api/game/state", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("State without a session should 404, got %d", w.Code)
	}

	// Flip before start is a 409.
	w, cookie = do(t, router, cookie, http.MethodPost, "/api/game/flip", `{"card_id":0}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Flip without a session should 409, got %d", w.Code)
	}

	w, cookie = do(t, router, cookie, http.MethodPost, "/api/game/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Start failed: %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		Snapshot domain.GameSnapshot `json:"snapshot"`
		Best     domain.BestRecord   `json:"best"`
	}
	if err := json.NewDecoder(w.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}
	if len(started.Snapshot.Cards) != domain.BoardSize {
		t.Errorf("Expected %d cards, got %d", domain.BoardSize, len(started.Snapshot.Cards))
	}
	for _, c := range started.Snapshot.Cards {
		if c.FaceValue != "" {
			t.Errorf("Initial deal leaked face value for card %d", c.ID)
		}
	}

	// Missing card_id is a 400.
	w, cookie = do(t, router, cookie, http.MethodPost, "/api/game/flip", `{"session_id":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Missing card_id should 400, got %d", w.Code)
	}

	// Stale session id is a 409.
	w, cookie = do(t, router, cookie, http.MethodPost, "/api/game/flip", `{"session_id":"stale","card_id":0}`)
	if w.Code != http.StatusConflict {
		t.Errorf("Stale session should 409, got %d", w.Code)
	}

	w, cookie = do(t, router, cookie, http.MethodPost, "/api/game/flip",
		`{"session_id":"`+started.Snapshot.SessionID+`","card_id":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Flip failed: %d: %s", w.Code, w.Body.String())
	}
	var flip game.FlipOutcome
	if err := json.NewDecoder(w.Body).Decode(&flip); err != nil {
		t.Fatalf("Failed to decode flip response: %v", err)
	}
	if !flip.Accepted || flip.Resolved {
		t.Errorf("First flip should be accepted and unresolved: %+v", flip)
	}

	w, _ = do(t, router, cookie, http.MethodGet, "/api/game/best", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Best failed: %d", w.Code)
	}
	var best domain.BestRecord
	if err := json.NewDecoder(w.Body).Decode(&best); err != nil {
		t.Fatalf("Failed to decode best record: %v", err)
	}
	if best.HasScore {
		t.Errorf("Fresh user should have no best score: %+v", best)
	}
}
