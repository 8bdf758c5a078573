package kibitz

import (
	"strings"
)

// Notation decodes move text into an intent for the given side. Decoders
// never look at a board; the board fills in what the text leaves out.
type Notation interface {
	Decode(text string, color Color) (Move, error)
}

// SAN reads standard algebraic notation such as "Nbd7", "exd6", "e8=Q+"
// or "O-O-O".
type SAN struct{}

func (SAN) Decode(text string, color Color) (Move, error) {
	m := NewMove(color, text)
	s := strings.TrimSpace(text)
	bad := func(reason string) (Move, error) {
		return m, &IllegalMoveError{Move: text, Reason: reason}
	}

	// Suffixes come off right to left: annotation, check or mate, then
	// promotion.
suffixes:
	for len(s) > 0 {
		switch s[len(s)-1] {
		case '!', '?':
		case '+':
			m.Check = true
		case '#':
			m.Mate = true
		default:
			break suffixes
		}
		s = s[:len(s)-1]
	}

	switch s {
	case "O-O", "0-0":
		m.ShortCastle = true
		m.Piece = King
		return m, nil
	case "O-O-O", "0-0-0":
		m.LongCastle = true
		m.Piece = King
		return m, nil
	}

	if n := len(s); n >= 3 {
		last := s[n-1]
		explicit := s[n-2] == '='
		if kind, ok := kindFromLetter(last); ok && (explicit || (last >= 'A' && last <= 'Z')) {
			m.Promotion = true
			m.Promote = kind
			s = s[:n-1]
			if explicit {
				s = s[:n-2]
			}
		}
	}

	if len(s) < 2 {
		return bad("missing destination square")
	}
	to, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return bad("invalid destination square")
	}
	m.To = to
	s = s[:len(s)-2]

	if strings.HasSuffix(s, "x") || strings.HasSuffix(s, ":") {
		m.Capture = true
		s = s[:len(s)-1]
	}

	m.Piece = Pawn
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		kind, ok := kindFromLetter(s[0])
		if !ok || kind == Pawn {
			return bad("unknown piece letter")
		}
		m.Piece = kind
		s = s[1:]
	}

	for i := 0; i < len(s); i++ {
		if f, ok := fileFromByte(s[i]); ok && m.From.File < 0 {
			m.From.File = f
			continue
		}
		if r, ok := rankFromByte(s[i]); ok && m.From.Rank < 0 {
			m.From.Rank = r
			continue
		}
		return bad("invalid source square")
	}

	if m.Piece == Pawn {
		if m.Capture && m.From.File < 0 {
			return bad("pawn capture without source file")
		}
		if m.From.File < 0 {
			m.From.File = m.To.File
		}
	} else if m.Promotion {
		return bad("only pawns promote")
	}
	return m, nil
}

// Coordinate reads the long coordinate form engines speak, such as "e2e4"
// or "a7a8q". The moving piece is left for the board to identify.
type Coordinate struct{}

func (Coordinate) Decode(text string, color Color) (Move, error) {
	m := NewMove(color, text)
	s := strings.TrimSpace(text)
	if len(s) != 4 && len(s) != 5 {
		return m, &IllegalMoveError{Move: text, Reason: "coordinate move needs 4 or 5 characters"}
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return m, &IllegalMoveError{Move: text, Reason: "invalid source square"}
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return m, &IllegalMoveError{Move: text, Reason: "invalid destination square"}
	}
	m.From = from
	m.To = to
	if len(s) == 5 {
		kind, ok := kindFromLetter(s[4])
		if !ok || kind == King || kind == Pawn {
			return m, &IllegalMoveError{Move: text, Reason: "invalid promotion piece"}
		}
		m.Promotion = true
		m.Promote = kind
	}
	return m, nil
}

// DecodeLine decodes consecutive moves starting with the given side.
func DecodeLine(n Notation, texts []string, first Color) ([]Move, error) {
	moves := make([]Move, 0, len(texts))
	color := first
	for i, text := range texts {
		m, err := n.Decode(text, color)
		if err != nil {
			return moves, &PlyError{Ply: i + 1, Notation: text, Err: err}
		}
		moves = append(moves, m)
		color = color.Other()
	}
	return moves, nil
}
