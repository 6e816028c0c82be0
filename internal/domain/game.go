package domain

import (
	"time"
)

// Card is one tile in the matching game. The identity is stable for the
// session; at most two cards are flipped-and-unmatched at any instant.
type Card struct {
	ID        int    `json:"id"`
	FaceValue string `json:"face_value"`
	Flipped   bool   `json:"flipped"`
	Matched   bool   `json:"matched"`
}

// GameState identifies where a playthrough is in its lifecycle.
type GameState string

const (
	// GameWelcome is the pre-start state.
	GameWelcome GameState = "welcome"
	// GamePlaying means the board is live and accepting flips.
	GamePlaying GameState = "playing"
	// GameComplete means all pairs matched; the session is inert.
	GameComplete GameState = "complete"
)

// PairCount is the number of symbol pairs on a board.
const PairCount = 8

// BoardSize is the number of cards dealt per session.
const BoardSize = PairCount * 2

// BestRecord is the durable cross-session high-water-mark for score and
// low-water-marks for time and moves. Zero-valued metrics with the
// corresponding Has flag false mean "never completed a game".
type BestRecord struct {
	HasScore bool `json:"has_score"`
	Score    int  `json:"score"`
	HasTime  bool `json:"has_time"`
	TimeSecs int  `json:"time_secs"`
	HasMoves bool `json:"has_moves"`
	Moves    int  `json:"moves"`
}

// RecordImprovement flags which metrics a completed session strictly
// improved. Ties never overwrite.
type RecordImprovement struct {
	Score bool `json:"score"`
	Time  bool `json:"time"`
	Moves bool `json:"moves"`
}

// Improved reports whether any metric improved.
func (r RecordImprovement) Improved() bool {
	return r.Score || r.Time || r.Moves
}

// Apply updates the record with a completed session's metrics, returning
// which metrics strictly improved. Missing metrics always improve.
func (b *BestRecord) Apply(score, timeSecs, moves int) RecordImprovement {
	var imp RecordImprovement
	if !b.HasScore || score > b.Score {
		b.HasScore = true
		b.Score = score
		imp.Score = true
	}
	if !b.HasTime || timeSecs < b.TimeSecs {
		b.HasTime = true
		b.TimeSecs = timeSecs
		imp.Time = true
	}
	if !b.HasMoves || moves < b.Moves {
		b.HasMoves = true
		b.Moves = moves
		imp.Moves = true
	}
	return imp
}

// GameSnapshot is the client-facing view of a session at a point in
// time. Face values are withheld for face-down cards.
type GameSnapshot struct {
	SessionID      string    `json:"session_id"`
	State          GameState `json:"state"`
	Cards          []Card    `json:"cards"`
	Moves          int       `json:"moves"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	MatchedPairs   int       `json:"matched_pairs"`
	Score          int       `json:"score,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}
