// Package game implements the card-matching engine: deterministic
// shuffle, pair resolution, scoring, and best-record tracking.
package game

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminova-studio/siteline/internal/domain"
)

// symbols is the fixed face alphabet. Each game deals every symbol
// exactly twice.
var symbols = [domain.PairCount]string{
	"bolt", "comet", "orbit", "pixel", "prism", "quark", "vertex", "wave",
}

// mismatchFlipDelay is the UX pause before a mismatched pair turns back
// face-down. It is not a scheduling guarantee.
const mismatchFlipDelay = 800 * time.Millisecond

// elapsedDisplayCap marks anomalous elapsed values caused by suspended
// tabs. Beyond it the displayed elapsed resets to 0; the underlying
// clock is untouched.
const elapsedDisplayCap = 3600

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// Completion describes the single Playing -> Complete transition.
type Completion struct {
	Score          int
	ElapsedSeconds int
	Moves          int
}

// Session is one playthrough. All methods are safe for concurrent use;
// the two-card pending window acts as the only flip lock.
type Session struct {
	mu sync.Mutex

	id     string
	userID string

	state        domain.GameState
	cards        []domain.Card
	flipped      []int // indices of face-up unmatched cards, len <= 2
	pending      bool  // mismatched pair awaiting flip-back
	moves        int
	matchedPairs int
	startedAt    time.Time
	lastActivity time.Time
	score        int
	// completedElapsed freezes the elapsed counter at completion.
	completedElapsed int
	celebrated       bool

	// generation invalidates outstanding flip-back timers when the
	// session restarts or completes.
	generation int
	flipBack   *time.Timer

	clock Clock
	rng   *rand.Rand
	delay time.Duration
}

// Option customizes a session, mainly for tests.
type Option func(*Session)

// WithClock injects a time source.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithRand injects the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithMismatchDelay overrides the flip-back pause.
func WithMismatchDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// NewSession deals and shuffles a fresh board and starts the clock.
func NewSession(userID string, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		userID: userID,
		clock:  time.Now,
		delay:  mismatchFlipDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.start()
	return s
}

// start deals 16 cards (8 symbols twice) and Fisher-Yates shuffles them.
func (s *Session) start() {
	cards := make([]domain.Card, 0, domain.BoardSize)
	for _, sym := range symbols {
		cards = append(cards, domain.Card{FaceValue: sym}, domain.Card{FaceValue: sym})
	}
	for i := len(cards) - 1; i >= 1; i-- {
		j := s.rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
	for i := range cards {
		cards[i].ID = i
	}

	s.cards = cards
	s.flipped = nil
	s.pending = false
	s.moves = 0
	s.matchedPairs = 0
	s.score = 0
	s.completedElapsed = 0
	s.celebrated = false
	s.state = domain.GamePlaying
	s.startedAt = s.clock()
	s.lastActivity = s.startedAt
	s.generation++
	if s.flipBack != nil {
		s.flipBack.Stop()
		s.flipBack = nil
	}
}

// Restart reinitializes the session entirely, discarding the prior
// playthrough.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start()
}

// ID returns the session identity.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the owning user.
func (s *Session) UserID() string {
	return s.userID
}

// LastActivity returns the time of the most recent interaction with the
// session, including rejected flips.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// elapsedSecondsLocked computes wall-clock elapsed since start.
func (s *Session) elapsedSecondsLocked() int {
	return int(s.clock().Sub(s.startedAt).Seconds())
}

// Flip turns a card face-up. It is a no-op unless the session is
// playing, the card is face-down and unmatched, and fewer than two
// cards are pending. When the flip completes a pair comparison the
// result carries the resolution; when it completes the board the
// result carries the completion.
func (s *Session) Flip(cardID int) FlipResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = s.clock()

	res := FlipResult{}
	if s.state != domain.GamePlaying {
		return res
	}
	if cardID < 0 || cardID >= len(s.cards) {
		return res
	}
	card := &s.cards[cardID]
	if card.Flipped || card.Matched {
		return res
	}
	if s.pending || len(s.flipped) >= 2 {
		// Two cards are awaiting resolution; extra flips are rejected.
		return res
	}

	card.Flipped = true
	s.flipped = append(s.flipped, cardID)
	res.Accepted = true

	if len(s.flipped) == 2 {
		res.Resolved = true
		res.Matched = s.resolvePairLocked()
		if s.matchedPairs == domain.PairCount {
			res.Completion = s.completeLocked()
		}
	}
	return res
}

// resolvePairLocked compares the two face-up cards, counting one move
// per attempt. A match locks both cards permanently; a mismatch flips
// them back after the UX delay, during which further flips stay
// rejected.
func (s *Session) resolvePairLocked() bool {
	s.moves++
	a, b := &s.cards[s.flipped[0]], &s.cards[s.flipped[1]]

	if a.FaceValue == b.FaceValue {
		a.Matched = true
		b.Matched = true
		s.matchedPairs++
		s.flipped = nil
		return true
	}

	s.pending = true
	gen := s.generation
	first, second := s.flipped[0], s.flipped[1]
	s.flipBack = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A restart or completion since scheduling makes this tick stale.
		if s.generation != gen || s.state != domain.GamePlaying {
			return
		}
		s.cards[first].Flipped = false
		s.cards[second].Flipped = false
		s.flipped = nil
		s.pending = false
	})
	return false
}

// completeLocked performs the single Playing -> Complete transition.
func (s *Session) completeLocked() *Completion {
	if s.state != domain.GamePlaying {
		return nil
	}
	s.state = domain.GameComplete
	s.generation++
	if s.flipBack != nil {
		s.flipBack.Stop()
		s.flipBack = nil
	}

	elapsed := s.elapsedSecondsLocked()
	s.completedElapsed = elapsed
	s.score = computeScore(s.moves, elapsed)

	return &Completion{
		Score:          s.score,
		ElapsedSeconds: elapsed,
		Moves:          s.moves,
	}
}

// computeScore implements round(max(1000 - 10*moves - 0.5*elapsed, 50)).
func computeScore(moves, elapsedSeconds int) int {
	raw := 1000 - 10*float64(moves) - 0.5*float64(elapsedSeconds)
	return int(math.Round(math.Max(raw, 50)))
}

// Celebrate fires the one-shot completion celebration. It returns true
// exactly once per completed playthrough.
func (s *Session) Celebrate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.GameComplete || s.celebrated {
		return false
	}
	s.celebrated = true
	return true
}

// FlipResult describes what a single flip did.
type FlipResult struct {
	Accepted   bool
	Resolved   bool
	Matched    bool
	Completion *Completion
}

// Snapshot returns the client-facing view. Face values of face-down
// cards are withheld.
func (s *Session) Snapshot() domain.GameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := make([]domain.Card, len(s.cards))
	for i, c := range s.cards {
		view := c
		if !c.Flipped && !c.Matched {
			view.FaceValue = ""
		}
		cards[i] = view
	}

	elapsed := s.elapsedSecondsLocked()
	if s.state == domain.GameComplete {
		elapsed = s.completedElapsed
	}
	// Suspended-tab clamp. Display only; the underlying clock and the
	// score inputs are untouched.
	if elapsed > elapsedDisplayCap {
		elapsed = 0
	}

	return domain.GameSnapshot{
		SessionID:      s.id,
		State:          s.state,
		Cards:          cards,
		Moves:          s.moves,
		ElapsedSeconds: elapsed,
		MatchedPairs:   s.matchedPairs,
		Score:          s.score,
		StartedAt:      s.startedAt,
	}
}
