package kibitz

import (
	"context"
	"errors"
	"sync/atomic"
)

// Evaluator searches a position. Scores are from White's point of view.
// *Session implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string, moveTimeMs int) (Evaluation, error)
}

var ErrAnalysisStopped = errors.New("analysis stopped")

const defaultMaxVariation = 8

// PlyReport describes one analysed ply of the main line.
type PlyReport struct {
	Ply      int
	Node     NodeID
	Notation string
	FEN      string
	Eval     Evaluation
	// Best is the engine's choice in the position before the move.
	Best string
	// Loss is how much the move cost its player, in centipawns.
	Loss        int
	Blunder     bool
	Alternative NodeID
	GraftErr    error
}

// Analyzer walks the main line of a tree with an engine, stores a score on
// every node, and grafts the engine's line as an alternative wherever a
// move loses more than Threshold centipawns.
type Analyzer struct {
	Engine     Evaluator
	MoveTimeMs int
	Threshold  int
	// MaxVariation caps the length of grafted lines.
	MaxVariation int
	Verifier     MoveVerifier
	// Cache, when set, remembers evaluations of the first CachePlies
	// positions of each game.
	Cache      map[Packed256]Evaluation
	CachePlies int
	// OnPly is called after each ply is analysed.
	OnPly func(PlyReport)

	stop atomic.Bool
}

// Stop makes Run return before its next evaluation. It is safe to call from
// another goroutine.
func (a *Analyzer) Stop() {
	a.stop.Store(true)
}

func (a *Analyzer) Run(ctx context.Context, tree *Tree) ([]PlyReport, error) {
	line := tree.MainLine()
	reports := make([]PlyReport, 0, len(line))
	var prev Evaluation
	var prevCP int
	for i, id := range line {
		if a.stop.Load() {
			return reports, ErrAnalysisStopped
		}
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		board, err := tree.Position(id)
		if err != nil {
			return reports, err
		}
		m, _ := tree.MoveAt(id)
		eval, err := a.evaluate(ctx, &board, i)
		if err != nil {
			return reports, &PlyError{Ply: i, Notation: m.Notation, Err: err}
		}
		if err := tree.SetScore(id, eval.Score.Centipawns()); err != nil {
			return reports, err
		}
		cp := lossBasis(eval, board)
		if i == 0 {
			prev, prevCP = eval, cp
			continue
		}

		loss := prevCP - cp
		if m.Color == Black {
			loss = -loss
		}
		report := PlyReport{
			Ply:         i,
			Node:        id,
			Notation:    m.Notation,
			FEN:         board.FEN(),
			Eval:        eval,
			Best:        prev.BestMove,
			Loss:        loss,
			Alternative: NoNode,
		}
		if a.Threshold > 0 && loss > a.Threshold {
			report.Blunder = true
			report.Alternative, report.GraftErr = a.graftAlternative(tree, id, m, prev)
		}
		reports = append(reports, report)
		if a.OnPly != nil {
			a.OnPly(report)
		}
		prev, prevCP = eval, cp
	}
	return reports, nil
}

// lossBasis is the score a move's loss is measured against. A position the
// engine has no move in counts as mate against the side to move when that
// side is checkmated, so delivering mate costs nothing.
func lossBasis(eval Evaluation, b Board) int {
	if eval.Score.Kind != "none" || !PositionStatus(b).Checkmate() {
		return eval.Score.Centipawns()
	}
	if b.Turn() == White {
		return -MateScore
	}
	return MateScore
}

func (a *Analyzer) evaluate(ctx context.Context, b *Board, ply int) (Evaluation, error) {
	useCache := a.Cache != nil && ply < a.CachePlies
	var key Packed256
	if useCache {
		packed, err := PackPosition256(*b)
		if err != nil {
			useCache = false
		} else if cached, ok := a.Cache[packed]; ok {
			return cached, nil
		}
		key = packed
	}
	eval, err := a.Engine.Evaluate(ctx, b.FEN(), a.MoveTimeMs)
	if err != nil {
		return Evaluation{}, err
	}
	if useCache {
		a.Cache[key] = eval
	}
	return eval, nil
}

// graftAlternative hangs the engine's preferred line from the position
// before the blunder next to node id. The line is cut at the first move
// that does not replay, and skipped when it starts with the move played.
func (a *Analyzer) graftAlternative(tree *Tree, id NodeID, played Move, before Evaluation) (NodeID, error) {
	if alt := tree.Alternative(id); alt != NoNode {
		return alt, nil
	}
	pv := before.PV
	if len(pv) == 0 || pv[0] == played.Coordinate() {
		return NoNode, nil
	}
	limit := a.MaxVariation
	if limit <= 0 {
		limit = defaultMaxVariation
	}
	if len(pv) > limit {
		pv = pv[:limit]
	}

	start, err := tree.Position(tree.Previous(id))
	if err != nil {
		return NoNode, err
	}
	moves, err := DecodeLine(Coordinate{}, pv, start.Turn())
	if len(moves) == 0 {
		return NoNode, err
	}

	replay := start.Clone()
	for i := range moves {
		pre := replay.Clone()
		located, err := replay.Play(moves[i])
		if err == nil && a.Verifier != nil {
			err = a.Verifier.Verify(pre, located)
		}
		if err != nil {
			if i == 0 {
				return NoNode, &PlyError{Ply: 1, Notation: moves[i].Notation, Err: err}
			}
			moves = moves[:i]
			break
		}
	}

	alt, err := tree.Graft(id, moves)
	if errors.Is(err, ErrAlternativeExists) {
		return tree.Alternative(id), nil
	}
	if err != nil {
		return NoNode, err
	}
	if err := tree.SetScore(alt, before.Score.Centipawns()); err != nil {
		return alt, err
	}
	return alt, nil
}
