package kibitz

// Kind is a piece type. NoKind marks an empty square or a move whose
// piece has not been identified yet.
type Kind uint8

const (
	NoKind Kind = iota
	King
	Queen
	Bishop
	Knight
	Rook
	Pawn
)

func (k Kind) String() string {
	switch k {
	case King:
		return "king"
	case Queen:
		return "queen"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	case Rook:
		return "rook"
	case Pawn:
		return "pawn"
	default:
		return "none"
	}
}

// Letter returns the upper-case notation letter; pawns use 'P'.
func (k Kind) Letter() byte {
	switch k {
	case King:
		return 'K'
	case Queen:
		return 'Q'
	case Bishop:
		return 'B'
	case Knight:
		return 'N'
	case Rook:
		return 'R'
	case Pawn:
		return 'P'
	default:
		return 0
	}
}

func kindFromLetter(c byte) (Kind, bool) {
	switch c {
	case 'K', 'k':
		return King, true
	case 'Q', 'q':
		return Queen, true
	case 'B', 'b':
		return Bishop, true
	case 'N', 'n':
		return Knight, true
	case 'R', 'r':
		return Rook, true
	case 'P', 'p':
		return Pawn, true
	default:
		return NoKind, false
	}
}

// Color is the side a piece belongs to. White is the light side and moves
// first.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// forward is the rank direction pawns of this color advance in.
func (c Color) forward() int {
	if c == White {
		return 1
	}
	return -1
}

func (c Color) homeRank() int {
	if c == White {
		return 0
	}
	return 7
}

func (c Color) pawnRank() int {
	if c == White {
		return 1
	}
	return 6
}

// Piece is the content of one square. The zero value is an empty square.
type Piece struct {
	Kind  Kind
	Color Color
}

var Empty = Piece{}

func (p Piece) IsEmpty() bool {
	return p.Kind == NoKind
}

// FENLetter returns the piece letter, upper case for White.
func (p Piece) FENLetter() byte {
	letter := p.Kind.Letter()
	if letter == 0 {
		return 0
	}
	if p.Color == Black {
		letter += 'a' - 'A'
	}
	return letter
}

func pieceFromFENLetter(c byte) (Piece, bool) {
	kind, ok := kindFromLetter(c)
	if !ok {
		return Empty, false
	}
	color := White
	if c >= 'a' && c <= 'z' {
		color = Black
	}
	return Piece{Kind: kind, Color: color}, true
}
