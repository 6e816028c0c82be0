package domain

import "testing"

func TestBestRecordFirstCompletion(t *testing.T) {
	record := &BestRecord{}

	imp := record.Apply(770, 60, 20)
	if !imp.Score || !imp.Time || !imp.Moves {
		t.Errorf("First completion should improve all metrics, got %+v", imp)
	}
	if record.Score != 770 || record.TimeSecs != 60 || record.Moves != 20 {
		t.Errorf("Unexpected record after first completion: %+v", record)
	}
	if !record.HasScore || !record.HasTime || !record.HasMoves {
		t.Errorf("Has flags should be set: %+v", record)
	}
}

func TestBestRecordStrictImprovement(t *testing.T) {
	record := &BestRecord{
		HasScore: true, Score: 770,
		HasTime: true, TimeSecs: 60,
		HasMoves: true, Moves: 20,
	}

	// Better score and time, worse moves.
	imp := record.Apply(800, 45, 25)
	if !imp.Score || !imp.Time || imp.Moves {
		t.Errorf("Expected score and time improvement only, got %+v", imp)
	}
	if record.Score != 800 || record.TimeSecs != 45 || record.Moves != 20 {
		t.Errorf("Unexpected record: %+v", record)
	}
}

func TestBestRecordTiesDoNotOverwrite(t *testing.T) {
	record := &BestRecord{
		HasScore: true, Score: 770,
		HasTime: true, TimeSecs: 60,
		HasMoves: true, Moves: 20,
	}

	imp := record.Apply(770, 60, 20)
	if imp.Improved() {
		t.Errorf("Identical metrics should not improve, got %+v", imp)
	}
	if record.Score != 770 || record.TimeSecs != 60 || record.Moves != 20 {
		t.Errorf("Record changed on tie: %+v", record)
	}
}

func TestBestRecordPartialHistory(t *testing.T) {
	// A record carrying only a score, as migrated data might.
	record := &BestRecord{HasScore: true, Score: 900}

	imp := record.Apply(850, 120, 30)
	if imp.Score {
		t.Error("Lower score should not improve")
	}
	if !imp.Time || !imp.Moves {
		t.Errorf("Missing metrics should always improve, got %+v", imp)
	}
	if record.Score != 900 {
		t.Errorf("Score overwritten on non-improvement: %d", record.Score)
	}
	if record.TimeSecs != 120 || record.Moves != 30 {
		t.Errorf("Missing metrics not adopted: %+v", record)
	}
}
