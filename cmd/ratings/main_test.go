package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

func TestSummarizePGNPlayers(t *testing.T) {
	files, err := kibitz.CollectPGN(filepath.Join("..", "..", "pkg", "kibitz", "testdata"))
	require.NoError(t, err)

	seen := newPlayers()
	var errOut bytes.Buffer
	failed := addPGNPlayers(seen, files, &errOut)
	assert.Equal(t, 0, failed, errOut.String())

	// game001 has both players rated, two_games rates only "C"
	ratings, unknown, atLeast := summarize(seen, 100, 1)
	assert.Equal(t, 3, ratings.known)
	assert.Equal(t, 1720, ratings.min)
	assert.Equal(t, 2100, ratings.max)
	assert.Equal(t, map[int]int{1700: 1, 1800: 1, 2100: 1}, ratings.bins)
	assert.Equal(t, len(seen.unique)-3, unknown)
	assert.Equal(t, 3, atLeast)
}

func TestRatingStatsAdd(t *testing.T) {
	rs := newRatingStats(50)
	rs.Add(0)
	rs.Add(1525)
	rs.Add(1549)
	rs.Add(1550)
	assert.Equal(t, 1, rs.unknown)
	assert.Equal(t, 3, rs.known)
	assert.Equal(t, map[int]int{1500: 2, 1550: 1}, rs.bins)
}
