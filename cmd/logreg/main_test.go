package main

import (
	"testing"

	kibitz "kibitz/pkg/kibitz"
)

func cp(v int32) kibitz.MoveEval {
	return kibitz.MoveEval{ScoreType: "cp", ScoreValue: v}
}

func TestBuildSamples(t *testing.T) {
	records := []kibitz.GameRecord{
		{WhiteElo: 1600, BlackElo: 1500, Result: "1-0", MoveEvals: []kibitz.MoveEval{cp(20), cp(350)}},
		{WhiteElo: 1400, BlackElo: 1500, Result: "0-1", MoveEvals: []kibitz.MoveEval{{ScoreType: "mate", ScoreValue: -2}}},
		// draw
		{WhiteElo: 1500, BlackElo: 1500, Result: "1/2-1/2", MoveEvals: []kibitz.MoveEval{cp(400)}},
		// unrated
		{WhiteElo: 0, BlackElo: 1500, Result: "1-0", MoveEvals: []kibitz.MoveEval{cp(400)}},
		// never crossed
		{WhiteElo: 1500, BlackElo: 1500, Result: "1-0", MoveEvals: []kibitz.MoveEval{cp(100)}},
	}
	samples, cts, mean := buildSamples(records, 300, 100, 0)
	if len(samples) != 2 || cts.skipped != 3 {
		t.Fatalf("unexpected samples: %d skipped %d", len(samples), cts.skipped)
	}
	if mean != 1500 {
		t.Fatalf("unexpected mean: %v", mean)
	}
	want := []float64{1, 1, 1, 1}
	for i, v := range want {
		if samples[0].x[i] != v {
			t.Fatalf("sample 0 feature %d: got %v want %v", i, samples[0].x[i], v)
		}
	}
	if samples[0].y != 1 || samples[1].y != 0 || samples[1].x[2] != 0 {
		t.Fatalf("unexpected labels: %+v", samples)
	}

	_, cts, _ = buildSamples(records, 300, 100, 50)
	if cts.skipped != 5 {
		t.Fatalf("max-abs-diff should drop both games, skipped %d", cts.skipped)
	}
}

func TestFitLogRegSeparatesFirstCrossing(t *testing.T) {
	var samples []sample
	for i := 0; i < 40; i++ {
		first := i%4 != 0
		samples = append(samples, makeSample(1500, 1500, first, first == (i%5 != 0), 100, 1500))
	}
	weights, loss := fitLogReg(samples, 500, 0.5, 3)
	if weights[2] <= 0 {
		t.Fatalf("first crossing should raise the odds, got %v", weights)
	}
	if loss <= 0 || loss >= 0.6931472 {
		t.Fatalf("loss should improve on the zero model: %v", loss)
	}
	if p := predict(weights, 0, 1, 0); p <= predict(weights, 0, 0, 0) {
		t.Fatalf("prediction not monotone in first crossing: %v", p)
	}
}
