package kibitz

import (
	"fmt"
	"strings"

	"github.com/dylhunn/dragontoothmg"
)

// Verifier checks moves against a full legal move generator. The board
// itself only knows how pieces move; it does not look for checks, so a
// move that leaves the king attacked, or a castle through an attacked
// square, only fails here.
type Verifier struct{}

// LegalMoves lists the legal moves of b in coordinate form.
func LegalMoves(b Board) []string {
	gen := dragontoothmg.ParseFen(b.FEN())
	moves := gen.GenerateLegalMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, strings.ToLower(moves[i].String()))
	}
	return out
}

// Verify reports an IllegalMoveError unless the located move m is legal
// in b.
func (Verifier) Verify(b Board, m Move) error {
	want := m.Coordinate()
	if want == "" {
		return &IllegalMoveError{Move: m.Notation, Reason: "move was not located"}
	}
	for _, legal := range LegalMoves(b) {
		if legal == want {
			return nil
		}
	}
	return &IllegalMoveError{Move: m.Notation, Reason: fmt.Sprintf("%s is not legal in %s", want, b.FEN())}
}

// Status describes the side to move: whether it is in check and how many
// legal moves it has. Game replay never needs it.
type Status struct {
	InCheck    bool
	LegalMoves int
}

func (s Status) Checkmate() bool {
	return s.InCheck && s.LegalMoves == 0
}

func (s Status) Stalemate() bool {
	return !s.InCheck && s.LegalMoves == 0
}

func PositionStatus(b Board) Status {
	gen := dragontoothmg.ParseFen(b.FEN())
	return Status{
		InCheck:    gen.OurKingInCheck(),
		LegalMoves: len(gen.GenerateLegalMoves()),
	}
}
