package kibitz_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

// scriptedEngine answers from a table of FENs and scores everything else
// as a level position.
type scriptedEngine struct {
	mu    sync.Mutex
	evals map[string]kibitz.Evaluation
	calls int
}

func (e *scriptedEngine) Evaluate(ctx context.Context, fen string, moveTimeMs int) (kibitz.Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if eval, ok := e.evals[fen]; ok {
		return eval, nil
	}
	return kibitz.Evaluation{Score: kibitz.Score{Kind: "cp", Value: 0}}, nil
}

func blunderGame(t *testing.T) (*kibitz.Game, *scriptedEngine) {
	t.Helper()
	game, err := kibitz.PlayNotation(kibitz.SAN{}, []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6"})
	require.NoError(t, err)
	fens := game.FENs()
	engine := &scriptedEngine{evals: map[string]kibitz.Evaluation{
		fens[5]: {
			Score:    kibitz.Score{Kind: "cp", Value: 10},
			BestMove: "g7g6",
			PV:       []string{"g7g6", "h5f3", "g8f6"},
		},
		fens[6]: {
			Score:    kibitz.Score{Kind: "mate", Value: 1},
			BestMove: "h5f7",
			PV:       []string{"h5f7"},
		},
	}}
	return game, engine
}

func TestAnalyzerGraftsBlunder(t *testing.T) {
	game, engine := blunderGame(t)
	tree := game.Tree()
	analyzer := &kibitz.Analyzer{Engine: engine, MoveTimeMs: 10, Threshold: 200}

	reports, err := analyzer.Run(context.Background(), tree)
	require.NoError(t, err)
	require.Len(t, reports, 6)
	assert.Equal(t, 7, engine.calls)

	for _, r := range reports[:5] {
		assert.False(t, r.Blunder, "ply %d", r.Ply)
		assert.Equal(t, kibitz.NoNode, r.Alternative)
	}
	last := reports[5]
	assert.True(t, last.Blunder)
	assert.Equal(t, "Nf6", last.Notation)
	assert.Equal(t, "g7g6", last.Best)
	assert.Equal(t, kibitz.MateScore-10, last.Loss)
	require.NoError(t, last.GraftErr)
	require.NotEqual(t, kibitz.NoNode, last.Alternative)

	line := tree.MainLine()
	assert.Equal(t, last.Alternative, tree.Alternative(line[6]))
	assert.Equal(t, line[6], tree.Original(last.Alternative))
	branch := tree.Line(last.Alternative)
	assert.Len(t, branch, 3)

	b, err := tree.Position(last.Alternative)
	require.NoError(t, err)
	assert.Equal(t, "r1bqkbnr/pppp1p1p/2n3p1/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 0 4", b.FEN())

	score, ok := tree.Score(line[6])
	require.True(t, ok)
	assert.Equal(t, kibitz.MateScore, score)
	score, ok = tree.Score(last.Alternative)
	require.True(t, ok)
	assert.Equal(t, 10, score)
}

func TestAnalyzerCutsUnplayablePV(t *testing.T) {
	game, engine := blunderGame(t)
	fens := game.FENs()
	eval := engine.evals[fens[5]]
	eval.PV = []string{"g7g6", "a1a5", "g8f6"}
	engine.evals[fens[5]] = eval

	analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200}
	reports, err := analyzer.Run(context.Background(), game.Tree())
	require.NoError(t, err)
	alt := reports[5].Alternative
	require.NotEqual(t, kibitz.NoNode, alt)
	assert.Len(t, game.Tree().Line(alt), 1)
}

func TestAnalyzerSkipsGraftWhenPlayedMoveWasBest(t *testing.T) {
	game, engine := blunderGame(t)
	fens := game.FENs()
	eval := engine.evals[fens[5]]
	eval.PV = []string{"g8f6"}
	engine.evals[fens[5]] = eval

	analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200}
	reports, err := analyzer.Run(context.Background(), game.Tree())
	require.NoError(t, err)
	assert.True(t, reports[5].Blunder)
	assert.Equal(t, kibitz.NoNode, reports[5].Alternative)
}

func TestAnalyzerStop(t *testing.T) {
	game, engine := blunderGame(t)
	analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200}
	analyzer.OnPly = func(kibitz.PlyReport) { analyzer.Stop() }

	reports, err := analyzer.Run(context.Background(), game.Tree())
	assert.ErrorIs(t, err, kibitz.ErrAnalysisStopped)
	assert.Len(t, reports, 1)
}

func TestAnalyzerContextCancel(t *testing.T) {
	game, engine := blunderGame(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	analyzer := &kibitz.Analyzer{Engine: engine}
	_, err := analyzer.Run(ctx, game.Tree())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, engine.calls)
}

func TestAnalyzerCache(t *testing.T) {
	cache := make(map[kibitz.Packed256]kibitz.Evaluation)
	for i := 0; i < 2; i++ {
		game, engine := blunderGame(t)
		analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200, Cache: cache, CachePlies: 30}
		_, err := analyzer.Run(context.Background(), game.Tree())
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, 7, engine.calls)
		} else {
			assert.Equal(t, 0, engine.calls)
		}
	}
}

func TestAnalyzerMatingMoveIsNoBlunder(t *testing.T) {
	game, err := kibitz.PlayNotation(kibitz.SAN{}, []string{"f3", "e5", "g4", "Qh4#"})
	require.NoError(t, err)
	fens := game.FENs()
	engine := &scriptedEngine{evals: map[string]kibitz.Evaluation{
		fens[3]: {Score: kibitz.Score{Kind: "mate", Value: -1}, BestMove: "d8h4", PV: []string{"d8h4"}},
		fens[4]: {Score: kibitz.Score{Kind: "none"}},
	}}
	tree := game.Tree()
	analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200}

	reports, err := analyzer.Run(context.Background(), tree)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	assert.True(t, reports[2].Blunder, "g4 walks into mate")
	mate := reports[3]
	assert.Equal(t, "Qh4#", mate.Notation)
	assert.False(t, mate.Blunder)
	assert.Equal(t, 0, mate.Loss)
	assert.Equal(t, kibitz.NoNode, mate.Alternative)

	score, ok := tree.Score(mate.Node)
	require.True(t, ok)
	assert.Equal(t, 0, score)
}

func TestAnalyzerStalemateStillCosts(t *testing.T) {
	game, err := kibitz.Play(mustFEN(t, "7k/8/5QK1/8/8/8/8/8 w - - 0 1"),
		kibitz.NewNotationSource(kibitz.SAN{}, []string{"Qf7"}, kibitz.White))
	require.NoError(t, err)
	fens := game.FENs()
	engine := &scriptedEngine{evals: map[string]kibitz.Evaluation{
		fens[0]: {Score: kibitz.Score{Kind: "mate", Value: 1}, BestMove: "f6g7", PV: []string{"f6g7"}},
		fens[1]: {Score: kibitz.Score{Kind: "none"}},
	}}
	analyzer := &kibitz.Analyzer{Engine: engine, Threshold: 200}

	reports, err := analyzer.Run(context.Background(), game.Tree())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Blunder)
	assert.Equal(t, kibitz.MateScore, reports[0].Loss)
}
