package kibitz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// RecordOptions configures BuildGameRecords.
type RecordOptions struct {
	MoveTimeMs   int
	Threshold    int
	MaxVariation int
	// CachePlies limits caching to the opening plies, where positions
	// repeat across games.
	CachePlies int
	Verifier   MoveVerifier
}

const defaultCachePlies = 30

// BuildGameRecords analyses every game of a PGN file. Games that cannot
// be replayed are skipped and reported in the returned error together with
// the records that did succeed; an engine failure stops the file.
func BuildGameRecords(ctx context.Context, path string, eval Evaluator, opts RecordOptions, cache map[Packed256]Evaluation) ([]GameRecord, error) {
	records, err := LoadPGN(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no games found in %s", path)
	}
	if cache == nil {
		cache = make(map[Packed256]Evaluation)
	}
	cachePlies := opts.CachePlies
	if cachePlies <= 0 {
		cachePlies = defaultCachePlies
	}

	var out []GameRecord
	var skipped []error
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		gameID := fmt.Sprintf("%s#%d", filepath.Base(path), i+1)
		var gameOpts []Option
		if opts.Verifier != nil {
			gameOpts = append(gameOpts, WithVerifier(opts.Verifier))
		}
		game, err := record.Game(gameOpts...)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("%s: %w", gameID, err))
			continue
		}
		if len(game.Tree().MainLine()) < 2 {
			skipped = append(skipped, fmt.Errorf("%s: no moves", gameID))
			continue
		}
		analyzer := &Analyzer{
			Engine:       eval,
			MoveTimeMs:   opts.MoveTimeMs,
			Threshold:    opts.Threshold,
			MaxVariation: opts.MaxVariation,
			Verifier:     opts.Verifier,
			Cache:        cache,
			CachePlies:   cachePlies,
		}
		reports, err := analyzer.Run(ctx, game.Tree())
		if err != nil {
			return out, fmt.Errorf("%s: %w", gameID, err)
		}
		out = append(out, NewGameRecord(gameID, game, reports))
	}
	return out, errors.Join(skipped...)
}

// NewGameRecord flattens an analysed game into a storage row.
func NewGameRecord(gameID string, game *Game, reports []PlyReport) GameRecord {
	players := game.Tags().Players()
	evals := make([]MoveEval, 0, len(reports))
	blunders := int32(0)
	for _, r := range reports {
		if r.Blunder {
			blunders++
		}
		evals = append(evals, MoveEval{
			Ply:        int32(r.Ply),
			Move:       r.Notation,
			FEN:        r.FEN,
			ScoreType:  r.Eval.Score.Kind,
			ScoreValue: int32(r.Eval.Score.Value),
			BestMove:   r.Best,
			Loss:       int32(r.Loss),
			Blunder:    r.Blunder,
		})
	}
	return GameRecord{
		GameID:       gameID,
		RecordID:     uuid.NewString(),
		White:        players.White,
		WhiteElo:     players.WhiteElo,
		Black:        players.Black,
		BlackElo:     players.BlackElo,
		Result:       game.Result(),
		Termination:  game.Tags()["Termination"],
		MoveCount:    int32(len(game.Tree().MainLine()) - 1),
		BlunderCount: blunders,
		MoveEvals:    evals,
	}
}
