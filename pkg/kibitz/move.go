package kibitz

import "strings"

// Move is a move intent. Notation readers fill what the text states (target
// square, piece kind, flags, sometimes part of the source square); the
// board completes the rest in Locate. A located move is never changed
// again once it has been applied.
type Move struct {
	From  Square
	To    Square
	Piece Kind
	Color Color

	Capture     bool
	ShortCastle bool
	LongCastle  bool
	EnPassant   bool
	Check       bool
	Mate        bool
	Promotion   bool
	Promote     Kind

	// Notation is the text the move was read from, kept for diagnostics.
	Notation string

	located bool
}

// NewMove returns an intent with unknown squares.
func NewMove(color Color, notation string) Move {
	return Move{From: NoSquare, To: NoSquare, Color: color, Notation: notation}
}

func (m *Move) IsCastle() bool {
	return m.ShortCastle || m.LongCastle
}

// Located reports whether the board has completed this move.
func (m *Move) Located() bool {
	return m.located
}

// Validate checks the shape of the intent: exactly one of short castle,
// long castle or normal move, and a promotion piece only when promoting.
func (m *Move) Validate() error {
	if m.ShortCastle && m.LongCastle {
		return &IllegalMoveError{Move: m.Notation, Reason: "both castle flags set"}
	}
	if m.IsCastle() && (m.Capture || m.Promotion) {
		return &IllegalMoveError{Move: m.Notation, Reason: "castle cannot capture or promote"}
	}
	if m.Promotion != (m.Promote != NoKind) {
		return &IllegalMoveError{Move: m.Notation, Reason: "promotion flag and piece disagree"}
	}
	if m.Promotion {
		switch m.Promote {
		case Queen, Rook, Bishop, Knight:
		default:
			return &IllegalMoveError{Move: m.Notation, Reason: "cannot promote to " + m.Promote.String()}
		}
	}
	return nil
}

// Coordinate renders the long coordinate form used by UCI engines, for
// example "e2e4", "e7e8q" or "e1g1". It needs a located move.
func (m *Move) Coordinate() string {
	if !m.From.Valid() || !m.To.Valid() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.From.String())
	sb.WriteString(m.To.String())
	if m.Promotion {
		sb.WriteByte(m.Promote.Letter() + 'a' - 'A')
	}
	return sb.String()
}

func (m Move) String() string {
	if m.Notation != "" {
		return m.Notation
	}
	return m.Coordinate()
}
