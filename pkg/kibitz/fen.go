package kibitz

import (
	"fmt"
	"strconv"
	"strings"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// FEN renders the position in Forsyth-Edwards notation.
func (b *Board) FEN() string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			p := b.grid[r][f]
			if p.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FENLetter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	if b.turn == White {
		sb.WriteString(" w ")
	} else {
		sb.WriteString(" b ")
	}

	rights := ""
	if b.castling.WhiteShort {
		rights += "K"
	}
	if b.castling.WhiteLong {
		rights += "Q"
	}
	if b.castling.BlackShort {
		rights += "k"
	}
	if b.castling.BlackLong {
		rights += "q"
	}
	if rights == "" {
		rights = "-"
	}
	sb.WriteString(rights)

	sb.WriteByte(' ')
	if b.enPassant.Valid() {
		sb.WriteString(b.enPassant.String())
	} else {
		sb.WriteByte('-')
	}
	fmt.Fprintf(&sb, " %d %d", b.halfMove, b.FullMoveNumber())
	return sb.String()
}

// ParseFEN reads a position. The clock fields may be omitted and default to
// "0 1".
func ParseFEN(fen string) (Board, error) {
	fields := strings.Fields(fen)
	if len(fields) != 4 && len(fields) != 6 {
		return Board{}, fmt.Errorf("fen: expected 6 fields, got %d", len(fields))
	}
	b := NewEmptyBoard()

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return Board{}, fmt.Errorf("fen: expected 8 ranks, got %d", len(ranks))
	}
	for i, row := range ranks {
		r := 7 - i
		f := 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				f += int(c - '0')
				continue
			}
			p, ok := pieceFromFENLetter(c)
			if !ok {
				return Board{}, fmt.Errorf("fen: invalid piece %q", c)
			}
			if f >= 8 {
				return Board{}, fmt.Errorf("fen: rank %d too long", r+1)
			}
			b.grid[r][f] = p
			f++
		}
		if f != 8 {
			return Board{}, fmt.Errorf("fen: rank %d has %d files", r+1, f)
		}
	}

	switch fields[1] {
	case "w":
		b.turn = White
	case "b":
		b.turn = Black
	default:
		return Board{}, fmt.Errorf("fen: invalid side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for _, c := range fields[2] {
			switch c {
			case 'K':
				b.castling.WhiteShort = true
			case 'Q':
				b.castling.WhiteLong = true
			case 'k':
				b.castling.BlackShort = true
			case 'q':
				b.castling.BlackLong = true
			default:
				return Board{}, fmt.Errorf("fen: invalid castling field %q", fields[2])
			}
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return Board{}, fmt.Errorf("fen: %w", err)
		}
		mover := b.turn.Other()
		if sq.Rank != mover.pawnRank()+mover.forward() {
			return Board{}, fmt.Errorf("fen: en passant square %s on wrong rank", sq)
		}
		b.enPassant = sq
		b.enPassantPawn = Sq(sq.File, sq.Rank+mover.forward())
	}

	fullMove := 1
	if len(fields) == 6 {
		half, err := strconv.Atoi(fields[4])
		if err != nil || half < 0 {
			return Board{}, fmt.Errorf("fen: invalid halfmove clock %q", fields[4])
		}
		full, err := strconv.Atoi(fields[5])
		if err != nil || full < 1 {
			return Board{}, fmt.Errorf("fen: invalid fullmove number %q", fields[5])
		}
		b.halfMove = half
		fullMove = full
	}
	b.ply = (fullMove - 1) * 2
	if b.turn == Black {
		b.ply++
	}
	return b, nil
}
