package kibitz

import "fmt"

// Castling holds the four castling rights.
type Castling struct {
	WhiteShort bool
	WhiteLong  bool
	BlackShort bool
	BlackLong  bool
}

func (c Castling) allowed(color Color, short bool) bool {
	switch {
	case color == White && short:
		return c.WhiteShort
	case color == White:
		return c.WhiteLong
	case short:
		return c.BlackShort
	default:
		return c.BlackLong
	}
}

func (c *Castling) clear(color Color, short bool) {
	switch {
	case color == White && short:
		c.WhiteShort = false
	case color == White:
		c.WhiteLong = false
	case short:
		c.BlackShort = false
	default:
		c.BlackLong = false
	}
}

// Board is one position. It is a plain value: copying it (or calling
// Clone) gives an independent position, and every position in a game is a
// clone of its predecessor with one move applied.
type Board struct {
	grid     [8][8]Piece // [rank][file]
	turn     Color
	castling Castling
	// enPassant is the square a pawn just passed over; enPassantPawn is
	// where that pawn stands and is what an en passant capture removes.
	enPassant     Square
	enPassantPawn Square
	halfMove      int
	ply           int
}

var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns the standard starting position.
func NewBoard() Board {
	b := NewEmptyBoard()
	for f := 0; f < 8; f++ {
		b.grid[0][f] = Piece{Kind: backRank[f], Color: White}
		b.grid[1][f] = Piece{Kind: Pawn, Color: White}
		b.grid[6][f] = Piece{Kind: Pawn, Color: Black}
		b.grid[7][f] = Piece{Kind: backRank[f], Color: Black}
	}
	b.castling = Castling{WhiteShort: true, WhiteLong: true, BlackShort: true, BlackLong: true}
	return b
}

// NewEmptyBoard returns a board without pieces, White to move and no
// castling rights.
func NewEmptyBoard() Board {
	return Board{turn: White, enPassant: NoSquare, enPassantPawn: NoSquare}
}

func (b *Board) Clone() Board {
	return *b
}

func (b *Board) At(sq Square) Piece {
	if !sq.Valid() {
		return Empty
	}
	return b.grid[sq.Rank][sq.File]
}

func (b *Board) SetPiece(sq Square, p Piece) {
	if sq.Valid() {
		b.grid[sq.Rank][sq.File] = p
	}
}

// SetTurn sets the side to move without changing the move number. The ply
// count is even exactly when White is to move.
func (b *Board) SetTurn(c Color) {
	b.turn = c
	b.ply = b.ply / 2 * 2
	if c == Black {
		b.ply++
	}
}

func (b *Board) SetCastling(c Castling) {
	b.castling = c
}

func (b *Board) Turn() Color {
	return b.turn
}

func (b *Board) Castling() Castling {
	return b.castling
}

// EnPassant returns the square passed over by the last double pawn step,
// or NoSquare.
func (b *Board) EnPassant() Square {
	return b.enPassant
}

func (b *Board) HalfMoveClock() int {
	return b.halfMove
}

func (b *Board) Ply() int {
	return b.ply
}

func (b *Board) FullMoveNumber() int {
	return b.ply/2 + 1
}

// PieceCount counts the pieces of one color on the board.
func (b *Board) PieceCount(c Color) int {
	n := 0
	for r := range b.grid {
		for _, p := range b.grid[r] {
			if !p.IsEmpty() && p.Color == c {
				n++
			}
		}
	}
	return n
}

// Locate completes m against this position: it finds the one piece that
// can make the move, fills the source square, and settles the capture,
// en passant and castle flags. A move can be located only once.
func (b *Board) Locate(m *Move) error {
	if m.located {
		return &IllegalMoveError{Move: m.Notation, Reason: "move is already located"}
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Color != b.turn {
		return &IllegalMoveError{Move: m.Notation, Reason: fmt.Sprintf("%s is not to move", m.Color)}
	}
	// en passant is decided by the board alone
	m.EnPassant = false
	if m.IsCastle() {
		return b.locateCastle(m)
	}
	if !m.To.Valid() {
		return &IllegalMoveError{Move: m.Notation, Reason: "destination is off the board"}
	}
	if m.Piece == NoKind {
		if err := b.inferPiece(m); err != nil {
			return err
		}
		if m.IsCastle() {
			return b.locateCastle(m)
		}
	}

	dest := b.At(m.To)
	if !dest.IsEmpty() && dest.Color == m.Color {
		return &IllegalMoveError{Move: m.Notation, Reason: "destination holds an own piece"}
	}

	var candidates []Square
	for r := 7; r >= 0; r-- {
		for f := 0; f < 8; f++ {
			sq := Square{File: f, Rank: r}
			p := b.grid[r][f]
			if p.Kind != m.Piece || p.Color != m.Color {
				continue
			}
			if !sq.Matches(m.From) {
				continue
			}
			if !IsValidMove(b, sq, m) {
				continue
			}
			if p.Kind == Pawn && !b.pawnTargetFits(sq, m.To, m.Color) {
				continue
			}
			candidates = append(candidates, sq)
		}
	}
	switch len(candidates) {
	case 0:
		return &IllegalMoveError{Move: m.Notation, Reason: fmt.Sprintf("no %s %s can reach %s", m.Color, m.Piece, m.To)}
	case 1:
	default:
		return &AmbiguousMoveError{Move: m.Notation, Candidates: candidates}
	}
	from := candidates[0]

	switch {
	case m.Piece == Pawn && from.File != m.To.File && dest.IsEmpty():
		m.EnPassant = true
		m.Capture = true
	case !dest.IsEmpty():
		m.Capture = true
	case m.Capture:
		return &IllegalMoveError{Move: m.Notation, Reason: "nothing to capture on " + m.To.String()}
	}

	lastRank := m.Piece == Pawn && m.To.Rank == m.Color.Other().homeRank()
	if lastRank && !m.Promotion {
		return &IllegalMoveError{Move: m.Notation, Reason: "pawn reaching the last rank must promote"}
	}
	if !lastRank && m.Promotion {
		return &IllegalMoveError{Move: m.Notation, Reason: "promotion only on the last rank"}
	}

	m.From = from
	m.located = true
	return nil
}

// inferPiece fills the piece of a move given by source and destination
// squares, recognising a two-file king step from its home square as a
// castle.
func (b *Board) inferPiece(m *Move) error {
	if !m.From.Valid() {
		return &IllegalMoveError{Move: m.Notation, Reason: "neither piece nor source square given"}
	}
	p := b.At(m.From)
	if p.IsEmpty() || p.Color != m.Color {
		return &IllegalMoveError{Move: m.Notation, Reason: fmt.Sprintf("no %s piece on %s", m.Color, m.From)}
	}
	m.Piece = p.Kind
	home := m.Color.homeRank()
	if p.Kind == King && m.From == Sq(4, home) && m.To.Rank == home {
		switch m.To.File {
		case 6:
			m.ShortCastle = true
		case 2:
			m.LongCastle = true
		}
	}
	return nil
}

func (b *Board) locateCastle(m *Move) error {
	home := m.Color.homeRank()
	short := m.ShortCastle
	rookFile, kingTo := 0, 2
	if short {
		rookFile, kingTo = 7, 6
	}
	kingSq := Sq(4, home)
	rookSq := Sq(rookFile, home)
	if b.At(kingSq) != (Piece{Kind: King, Color: m.Color}) {
		return &IllegalMoveError{Move: m.Notation, Reason: "king is not on its home square"}
	}
	if b.At(rookSq) != (Piece{Kind: Rook, Color: m.Color}) {
		return &IllegalMoveError{Move: m.Notation, Reason: "rook is not on its home square"}
	}
	if !b.castling.allowed(m.Color, short) {
		return &IllegalMoveError{Move: m.Notation, Reason: "castling right already lost"}
	}
	if !pathClear(b, kingSq, rookSq) {
		return &IllegalMoveError{Move: m.Notation, Reason: "squares between king and rook are occupied"}
	}
	m.Piece = King
	m.From = kingSq
	m.To = Sq(kingTo, home)
	m.located = true
	return nil
}

// pawnTargetFits applies the capture rule the movement pattern leaves
// open: a diagonal step needs an enemy piece or the en passant square.
func (b *Board) pawnTargetFits(from, to Square, color Color) bool {
	if from.File == to.File {
		return true
	}
	target := b.At(to)
	if !target.IsEmpty() {
		return target.Color != color
	}
	if to != b.enPassant {
		return false
	}
	victim := b.At(b.enPassantPawn)
	return victim.Kind == Pawn && victim.Color != color
}

// Apply plays a located move. It fails without touching the board when
// the move was not located or does not fit this position.
func (b *Board) Apply(m *Move) error {
	if !m.located {
		return &IllegalMoveError{Move: m.Notation, Reason: "move was not located"}
	}
	if m.Color != b.turn {
		return &IllegalMoveError{Move: m.Notation, Reason: fmt.Sprintf("%s is not to move", m.Color)}
	}
	moving := b.At(m.From)
	if moving.Kind != m.Piece || moving.Color != m.Color {
		return &IllegalMoveError{Move: m.Notation, Reason: "source square does not hold the moving piece"}
	}

	captured := false
	if m.IsCastle() {
		home := m.Color.homeRank()
		rookFrom, rookTo := 0, 3
		if m.ShortCastle {
			rookFrom, rookTo = 7, 5
		}
		rook := b.grid[home][rookFrom]
		b.grid[home][rookFrom] = Empty
		b.grid[home][m.From.File] = Empty
		b.grid[home][m.To.File] = moving
		b.grid[home][rookTo] = rook
	} else {
		if m.EnPassant {
			b.SetPiece(b.enPassantPawn, Empty)
			captured = true
		}
		if target := b.At(m.To); !target.IsEmpty() {
			captured = true
			b.clearCapturedRookRight(m.To, target)
		}
		placed := moving
		if m.Promotion {
			placed.Kind = m.Promote
		}
		b.SetPiece(m.To, placed)
		b.SetPiece(m.From, Empty)
	}

	switch m.Piece {
	case King:
		b.castling.clear(m.Color, true)
		b.castling.clear(m.Color, false)
	case Rook:
		if m.From.File == 0 {
			b.castling.clear(m.Color, false)
		}
		if m.From.File == 7 {
			b.castling.clear(m.Color, true)
		}
	}

	b.turn = b.turn.Other()
	if captured || m.Piece == Pawn {
		b.halfMove = 0
	} else {
		b.halfMove++
	}
	b.enPassant, b.enPassantPawn = NoSquare, NoSquare
	if m.Piece == Pawn && abs(m.To.Rank-m.From.Rank) == 2 {
		b.enPassant = Sq(m.From.File, m.From.Rank+m.Color.forward())
		b.enPassantPawn = m.To
	}
	b.ply++
	return nil
}

// clearCapturedRookRight drops the right tied to a rook taken on its
// corner.
func (b *Board) clearCapturedRookRight(sq Square, captured Piece) {
	if captured.Kind != Rook || sq.Rank != captured.Color.homeRank() {
		return
	}
	switch sq.File {
	case 0:
		b.castling.clear(captured.Color, false)
	case 7:
		b.castling.clear(captured.Color, true)
	}
}

// Play locates and applies one move, returning the located copy.
func (b *Board) Play(m Move) (Move, error) {
	if err := b.Locate(&m); err != nil {
		return m, err
	}
	if err := b.Apply(&m); err != nil {
		return m, err
	}
	return m, nil
}
