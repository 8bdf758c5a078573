package kibitz_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

func sampleRecords() []kibitz.GameRecord {
	return []kibitz.GameRecord{
		{
			GameID:       "a.pgn#1",
			RecordID:     "3b0a7d7e-0000-4000-8000-000000000001",
			White:        "A",
			WhiteElo:     1500,
			Black:        "B",
			BlackElo:     1600,
			Result:       "0-1",
			MoveCount:    2,
			BlunderCount: 1,
			MoveEvals: []kibitz.MoveEval{
				{Ply: 1, Move: "f3", FEN: "rnbqkbnr/pppppppp/8/8/8/5P2/PPPPP1PP/RNBQKBNR b KQkq - 0 1", ScoreType: "cp", ScoreValue: -40, BestMove: "e2e4", Loss: 70},
				{Ply: 2, Move: "e5", FEN: "rnbqkbnr/pppp1ppp/8/4p3/8/5P2/PPPPP1PP/RNBQKBNR w KQkq e6 0 2", ScoreType: "cp", ScoreValue: -60, BestMove: "e7e5", Loss: -20},
			},
		},
		{
			GameID:      "a.pgn#2",
			RecordID:    "3b0a7d7e-0000-4000-8000-000000000002",
			White:       "C",
			Black:       "D",
			Result:      "1-0",
			Termination: "normal",
		},
	}
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.parquet")
	want := sampleRecords()

	ch := make(chan kibitz.GameRecord, len(want))
	for _, record := range want {
		ch <- record
	}
	close(ch)
	require.NoError(t, kibitz.WriteParquet(path, ch, 1))

	got, err := kibitz.ReadParquet(path, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0].GameID, got[0].GameID)
	assert.Equal(t, want[0].WhiteElo, got[0].WhiteElo)
	assert.Equal(t, want[0].MoveEvals, got[0].MoveEvals)
	assert.Equal(t, "normal", got[1].Termination)
	assert.Empty(t, got[1].MoveEvals)
}

func TestScanParquetStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.parquet")
	ch := make(chan kibitz.GameRecord, 2)
	for _, record := range sampleRecords() {
		ch <- record
	}
	close(ch)
	require.NoError(t, kibitz.WriteParquet(path, ch, 1))

	stop := errors.New("stop")
	seen := 0
	err := kibitz.ScanParquet(path, 1, func(kibitz.GameRecord) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestWriteParquetDrainsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "review.parquet")
	ch := make(chan kibitz.GameRecord)
	sent := make(chan struct{})
	go func() {
		for _, record := range append(sampleRecords(), sampleRecords()[0]) {
			ch <- record
		}
		close(ch)
		close(sent)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- kibitz.WriteParquet(path, ch, 1) }()

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatalf("producer blocked after the writer failed")
	}
	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("writer did not return")
	}
}
