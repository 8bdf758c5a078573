package kibitz_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

func TestLegalMovesFromStart(t *testing.T) {
	moves := kibitz.LegalMoves(kibitz.NewBoard())
	assert.Len(t, moves, 20)
	assert.Contains(t, moves, "e2e4")
	assert.Contains(t, moves, "g1f3")
}

func TestVerifierRejectsCastleThroughCheck(t *testing.T) {
	start := mustFEN(t, "4k3/8/8/8/8/8/5r2/4K2R w K - 0 1")
	src := func() kibitz.MoveSource {
		return kibitz.NewNotationSource(kibitz.SAN{}, []string{"O-O"}, kibitz.White)
	}

	// the board alone only checks the squares are free
	_, err := kibitz.Play(start, src())
	require.NoError(t, err)

	_, err = kibitz.Play(start, src(), kibitz.WithVerifier(kibitz.Verifier{}))
	var plyErr *kibitz.PlyError
	require.True(t, errors.As(err, &plyErr), "got %v", err)
	assert.Equal(t, 1, plyErr.Ply)
	assert.ErrorIs(t, err, kibitz.ErrIllegalMove)
}

func TestVerifierRejectsPinnedPiece(t *testing.T) {
	b := mustFEN(t, "4r1k1/8/8/8/8/8/4B3/4K3 w - - 0 1")
	m, _ := kibitz.SAN{}.Decode("Bd3", kibitz.White)
	scratch := b.Clone()
	require.NoError(t, scratch.Locate(&m))
	assert.ErrorIs(t, kibitz.Verifier{}.Verify(b, m), kibitz.ErrIllegalMove)

	m, _ = kibitz.SAN{}.Decode("Kd2", kibitz.White)
	scratch = b.Clone()
	require.NoError(t, scratch.Locate(&m))
	assert.NoError(t, kibitz.Verifier{}.Verify(b, m))
}

func TestPositionStatus(t *testing.T) {
	game, err := kibitz.PlayNotation(kibitz.SAN{}, []string{"f3", "e5", "g4", "Qh4#"})
	require.NoError(t, err)
	fens := game.FENs()
	final := mustFEN(t, fens[len(fens)-1])
	status := kibitz.PositionStatus(final)
	assert.True(t, status.InCheck)
	assert.True(t, status.Checkmate())
	assert.False(t, status.Stalemate())

	stale := kibitz.PositionStatus(mustFEN(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1"))
	assert.True(t, stale.Stalemate())
}

func TestVerifierSettlesAmbiguityWithPinnedCandidate(t *testing.T) {
	start := mustFEN(t, "4k3/8/8/8/1b6/2N5/8/4K1N1 w - - 0 1")
	src := func() kibitz.MoveSource {
		return kibitz.NewNotationSource(kibitz.SAN{}, []string{"Ne2"}, kibitz.White)
	}

	_, err := kibitz.Play(start, src())
	var ambiguous *kibitz.AmbiguousMoveError
	require.True(t, errors.As(err, &ambiguous), "got %v", err)
	assert.Len(t, ambiguous.Candidates, 2)

	game, err := kibitz.Play(start, src(), kibitz.WithVerifier(kibitz.Verifier{}))
	require.NoError(t, err)
	moves := game.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, kibitz.Sq(6, 0), moves[0].From)
	assert.Equal(t, "Ne2", moves[0].Notation)
	fens := game.FENs()
	assert.Equal(t, "4k3/8/8/8/1b6/2N5/4N3/4K3 b - - 1 1", fens[len(fens)-1])
}

func TestVerifierKeepsAmbiguityBetweenLegalCandidates(t *testing.T) {
	start := mustFEN(t, "4k3/8/8/8/8/2N5/8/4K1N1 w - - 0 1")
	src := kibitz.NewNotationSource(kibitz.SAN{}, []string{"Ne2"}, kibitz.White)
	_, err := kibitz.Play(start, src, kibitz.WithVerifier(kibitz.Verifier{}))
	var ambiguous *kibitz.AmbiguousMoveError
	require.True(t, errors.As(err, &ambiguous), "got %v", err)
}
