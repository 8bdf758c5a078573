package kibitz_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

func TestBuildGameRecords(t *testing.T) {
	engine := &scriptedEngine{}
	cache := make(map[kibitz.Packed256]kibitz.Evaluation)
	records, err := kibitz.BuildGameRecords(context.Background(), filepath.Join("testdata", "game001.pgn"), engine,
		kibitz.RecordOptions{MoveTimeMs: 10, Threshold: 200}, cache)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "game001.pgn#1", record.GameID)
	_, err = uuid.Parse(record.RecordID)
	assert.NoError(t, err)
	assert.Equal(t, "Player One", record.White)
	assert.Equal(t, int32(1850), record.WhiteElo)
	assert.Equal(t, "1-0", record.Result)
	assert.Equal(t, "normal", record.Termination)
	assert.Equal(t, int32(19), record.MoveCount)
	assert.Equal(t, int32(0), record.BlunderCount)
	require.Len(t, record.MoveEvals, 19)
	assert.Equal(t, int32(2), record.MoveEvals[1].Ply)
	assert.Equal(t, "Nf6", record.MoveEvals[1].Move)
	assert.Equal(t, "cp", record.MoveEvals[1].ScoreType)
	assert.Equal(t, 20, engine.calls)
	assert.NotEmpty(t, cache)
}

func TestBuildGameRecordsSkipsBrokenGames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mixed.pgn")
	text := "[White \"A\"]\n\n1. e4 e5 2. Ke3 *\n\n[White \"B\"]\n\n1. d4 d5 *\n"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	records, err := kibitz.BuildGameRecords(context.Background(), path, &scriptedEngine{}, kibitz.RecordOptions{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mixed.pgn#1")
	require.Len(t, records, 1)
	assert.Equal(t, "mixed.pgn#2", records[0].GameID)
	assert.Equal(t, "B", records[0].White)
}
