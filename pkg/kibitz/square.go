package kibitz

import "fmt"

// Square addresses one cell of the board. File 0 is the a-file and rank 0
// is the first rank. A coordinate of -1 means "not known yet"; notation
// such as "Nbd7" fills only the file of the source square.
type Square struct {
	File int
	Rank int
}

// NoSquare is the unknown square.
var NoSquare = Square{File: -1, Rank: -1}

func Sq(file, rank int) Square {
	return Square{File: file, Rank: rank}
}

// Valid reports whether both coordinates are on the board.
func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

// Matches reports whether s is consistent with a partially known square.
func (s Square) Matches(partial Square) bool {
	if partial.File >= 0 && partial.File != s.File {
		return false
	}
	if partial.Rank >= 0 && partial.Rank != s.Rank {
		return false
	}
	return true
}

func (s Square) String() string {
	if !s.Valid() {
		out := ""
		if s.File >= 0 && s.File < 8 {
			out += string(rune('a' + s.File))
		}
		if s.Rank >= 0 && s.Rank < 8 {
			out += string(rune('1' + s.Rank))
		}
		if out == "" {
			return "-"
		}
		return out
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

func ParseSquare(text string) (Square, error) {
	if len(text) != 2 {
		return NoSquare, fmt.Errorf("invalid square %q", text)
	}
	file, okFile := fileFromByte(text[0])
	rank, okRank := rankFromByte(text[1])
	if !okFile || !okRank {
		return NoSquare, fmt.Errorf("invalid square %q", text)
	}
	return Square{File: file, Rank: rank}, nil
}

func fileFromByte(c byte) (int, bool) {
	if c < 'a' || c > 'h' {
		return 0, false
	}
	return int(c - 'a'), true
}

func rankFromByte(c byte) (int, bool) {
	if c < '1' || c > '8' {
		return 0, false
	}
	return int(c - '1'), true
}
