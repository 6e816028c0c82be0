package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/luminova-studio/siteline/internal/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(seed int64, extra ...Option) (*Session, *fakeClock) {
	clock := newFakeClock()
	opts := append([]Option{
		WithClock(clock.Now),
		WithRand(rand.New(rand.NewSource(seed))),
		WithMismatchDelay(time.Millisecond),
	}, extra...)
	return NewSession("user-1", opts...), clock
}

// pairIndex returns the card indices of each face value.
func pairIndex(s *Session) map[string][]int {
	pairs := make(map[string][]int)
	for i, c := range s.cards {
		pairs[c.FaceValue] = append(pairs[c.FaceValue], i)
	}
	return pairs
}

func TestDealIntegrity(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		s, _ := newTestSession(seed)

		if len(s.cards) != domain.BoardSize {
			t.Fatalf("seed %d: expected %d cards, got %d", seed, domain.BoardSize, len(s.cards))
		}

		pairs := pairIndex(s)
		if len(pairs) != domain.PairCount {
			t.Fatalf("seed %d: expected %d distinct faces, got %d", seed, domain.PairCount, len(pairs))
		}
		for face, idx := range pairs {
			if len(idx) != 2 {
				t.Errorf("seed %d: face %q appears %d times", seed, face, len(idx))
			}
		}

		for i, c := range s.cards {
			if c.ID != i {
				t.Errorf("seed %d: card at %d has ID %d", seed, i, c.ID)
			}
			if c.Flipped || c.Matched {
				t.Errorf("seed %d: card %d dealt face-up", seed, i)
			}
		}
	}
}

func TestMatchLocksPair(t *testing.T) {
	s, _ := newTestSession(1)
	pairs := pairIndex(s)

	var a, b int
	for _, idx := range pairs {
		a, b = idx[0], idx[1]
		break
	}

	if res := s.Flip(a); !res.Accepted || res.Resolved {
		t.Fatalf("First flip should be accepted and unresolved, got %+v", res)
	}
	res := s.Flip(b)
	if !res.Accepted || !res.Resolved || !res.Matched {
		t.Fatalf("Second flip should resolve a match, got %+v", res)
	}

	if !s.cards[a].Matched || !s.cards[b].Matched {
		t.Error("Matched cards should be locked")
	}
	if s.moves != 1 {
		t.Errorf("One pair attempt should count one move, got %d", s.moves)
	}

	// Matched cards reject further flips.
	if res := s.Flip(a); res.Accepted {
		t.Error("Flipping a matched card should be rejected")
	}
}

func TestFlipGuards(t *testing.T) {
	s, _ := newTestSession(2)

	if res := s.Flip(-1); res.Accepted {
		t.Error("Negative card id should be rejected")
	}
	if res := s.Flip(domain.BoardSize); res.Accepted {
		t.Error("Out-of-range card id should be rejected")
	}

	if res := s.Flip(0); !res.Accepted {
		t.Fatal("First flip should be accepted")
	}
	if res := s.Flip(0); res.Accepted {
		t.Error("Re-flipping a face-up card should be rejected")
	}
}

func TestMismatchFlipBack(t *testing.T) {
	s, _ := newTestSession(3)
	pairs := pairIndex(s)

	// Pick two cards with different faces.
	var a, b int
	seen := false
	for _, idx := range pairs {
		if !seen {
			a = idx[0]
			seen = true
			continue
		}
		b = idx[0]
		break
	}

	s.Flip(a)
	res := s.Flip(b)
	if !res.Resolved || res.Matched {
		t.Fatalf("Expected mismatch resolution, got %+v", res)
	}

	// Third flip during the pending window is rejected.
	var c int
	for i := range s.cards {
		if i != a && i != b {
			c = i
			break
		}
	}
	if res := s.Flip(c); res.Accepted {
		t.Error("Flips must be rejected while a mismatch is pending")
	}

	// After the delay both cards turn back face-down and flips resume.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		done := !s.pending
		s.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Mismatch never flipped back")
		}
		time.Sleep(time.Millisecond)
	}

	if s.cards[a].Flipped || s.cards[b].Flipped {
		t.Error("Mismatched cards should be face-down after the delay")
	}
	if res := s.Flip(c); !res.Accepted {
		t.Error("Flips should resume after the flip-back")
	}
}

func TestRestartInvalidatesPendingFlipBack(t *testing.T) {
	s, _ := newTestSession(4, WithMismatchDelay(20*time.Millisecond))
	pairs := pairIndex(s)

	var a, b int
	seen := false
	for _, idx := range pairs {
		if !seen {
			a = idx[0]
			seen = true
			continue
		}
		b = idx[0]
		break
	}

	s.Flip(a)
	s.Flip(b)
	s.Restart()

	// The stale timer must not touch the fresh board.
	time.Sleep(50 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cards {
		if c.Flipped || c.Matched {
			t.Errorf("Card %d disturbed by stale flip-back", i)
		}
	}
	if s.moves != 0 {
		t.Errorf("Restart should reset moves, got %d", s.moves)
	}
}

// completeGame flips every pair in face order.
func completeGame(t *testing.T, s *Session) *Completion {
	t.Helper()
	pairs := pairIndex(s)
	var completion *Completion
	for _, idx := range pairs {
		res1 := s.Flip(idx[0])
		res2 := s.Flip(idx[1])
		if !res1.Accepted || !res2.Accepted || !res2.Matched {
			t.Fatalf("Pair flip failed: %+v %+v", res1, res2)
		}
		if res2.Completion != nil {
			completion = res2.Completion
		}
	}
	if completion == nil {
		t.Fatal("Completing the board produced no completion")
	}
	return completion
}

func TestCompletionScoreAndFreeze(t *testing.T) {
	s, clock := newTestSession(5)
	clock.Advance(60 * time.Second)

	completion := completeGame(t, s)
	if completion.Moves != domain.PairCount {
		t.Errorf("Perfect game should take %d moves, got %d", domain.PairCount, completion.Moves)
	}
	if completion.ElapsedSeconds != 60 {
		t.Errorf("Expected 60s elapsed, got %d", completion.ElapsedSeconds)
	}
	// round(max(1000 - 10*8 - 0.5*60, 50)) = 890
	if completion.Score != 890 {
		t.Errorf("Expected score 890, got %d", completion.Score)
	}

	// Elapsed is frozen at completion: the snapshot ignores later clock
	// movement.
	clock.Advance(10 * time.Minute)
	snap := s.Snapshot()
	if snap.ElapsedSeconds != 60 {
		t.Errorf("Completed elapsed should be frozen at 60, got %d", snap.ElapsedSeconds)
	}
	if snap.State != domain.GameComplete {
		t.Errorf("Expected complete state, got %q", snap.State)
	}

	// The inert session rejects flips.
	if res := s.Flip(0); res.Accepted {
		t.Error("Completed session should reject flips")
	}
}

func TestComputeScore(t *testing.T) {
	cases := []struct {
		moves   int
		elapsed int
		want    int
	}{
		{20, 60, 770},
		{8, 0, 920},
		{0, 0, 1000},
		{100, 100, 50},  // floor
		{95, 0, 50},     // exactly at floor
		{0, 1, 1000},    // 999.5 rounds half away from zero
		{1, 1, 990},     // 989.5 rounds half away from zero
	}
	for _, tc := range cases {
		if got := computeScore(tc.moves, tc.elapsed); got != tc.want {
			t.Errorf("computeScore(%d, %d) = %d, want %d", tc.moves, tc.elapsed, got, tc.want)
		}
	}
}

func TestCelebrateSingleFire(t *testing.T) {
	s, _ := newTestSession(6)

	if s.Celebrate() {
		t.Error("Celebrate must not fire before completion")
	}

	completeGame(t, s)

	if !s.Celebrate() {
		t.Error("First celebrate after completion should fire")
	}
	if s.Celebrate() {
		t.Error("Celebrate must fire at most once per playthrough")
	}

	// A new playthrough re-arms the celebration.
	s.Restart()
	completeGame(t, s)
	if !s.Celebrate() {
		t.Error("Restarted playthrough should celebrate again")
	}
}

func TestSnapshotHidesFaceDownValues(t *testing.T) {
	s, _ := newTestSession(7)
	s.Flip(0)

	snap := s.Snapshot()
	for _, c := range snap.Cards {
		if c.ID == 0 {
			if c.FaceValue == "" {
				t.Error("Face-up card should reveal its value")
			}
			continue
		}
		if c.FaceValue != "" {
			t.Errorf("Face-down card %d leaked value %q", c.ID, c.FaceValue)
		}
	}
	if snap.Moves != 0 || snap.MatchedPairs != 0 {
		t.Errorf("Unexpected counters: %+v", snap)
	}
}

func TestElapsedDisplayClamp(t *testing.T) {
	s, clock := newTestSession(8)

	clock.Advance(30 * time.Second)
	if snap := s.Snapshot(); snap.ElapsedSeconds != 30 {
		t.Errorf("Expected 30s elapsed, got %d", snap.ElapsedSeconds)
	}

	// A suspended tab resumes hours later: display resets to 0, the
	// session stays playable.
	clock.Advance(2 * time.Hour)
	snap := s.Snapshot()
	if snap.ElapsedSeconds != 0 {
		t.Errorf("Anomalous elapsed should display as 0, got %d", snap.ElapsedSeconds)
	}
	if snap.State != domain.GamePlaying {
		t.Errorf("Clamp must not change state, got %q", snap.State)
	}
}
