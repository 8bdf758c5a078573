package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

var testdata = filepath.Join("..", "..", "pkg", "kibitz", "testdata")

func TestBookFromTestGames(t *testing.T) {
	counts, errFiles := runPass1(testdata, 0, 4, 2, 4)
	assert.Equal(t, 0, errFiles)

	start, err := kibitz.PackPosition256(kibitz.NewBoard())
	require.NoError(t, err)
	// every game in the test files starts from the initial position
	assert.Equal(t, uint32(5), counts[start])

	qual := qualify(counts, 2)
	data := runPass2(testdata, 0, 4, qual, 2, 4)
	info := data[start]
	require.NotNil(t, info)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", info.fen)
	assert.Equal(t, uint32(2), info.moves["e2e4"])
	assert.Equal(t, uint32(2), info.moves["d2d4"])
	assert.Equal(t, uint32(1), info.moves["f2f3"])

	var buf bytes.Buffer
	require.NoError(t, writeBook(&buf, map[kibitz.Packed256]*posInfo{start: info}))
	want := "#KIBITZ-BOOK 1\n" +
		"fen rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -\n" +
		"d2d4 2\n" +
		"e2e4 2\n" +
		"f2f3 1\n"
	assert.Equal(t, want, buf.String())
}
