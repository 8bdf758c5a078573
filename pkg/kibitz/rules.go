package kibitz

// IsValidMove reports whether the piece on from may move to m.To by its
// movement pattern. Only the rook checks the path; pawns check the squares
// they walk through. Whether a diagonal pawn step really captures is left
// to the board.
func IsValidMove(b *Board, from Square, m *Move) bool {
	if !from.Valid() {
		return false
	}
	piece := b.At(from)
	if piece.IsEmpty() {
		return false
	}
	if m.IsCastle() {
		return piece.Kind == King
	}
	if !m.To.Valid() {
		return false
	}
	df := m.To.File - from.File
	dr := m.To.Rank - from.Rank
	switch piece.Kind {
	case King:
		return kingStep(df, dr)
	case Queen:
		return straightLine(df, dr) || diagonalLine(df, dr)
	case Bishop:
		return diagonalLine(df, dr)
	case Rook:
		return straightLine(df, dr) && pathClear(b, from, m.To)
	case Knight:
		return knightJump(df, dr)
	case Pawn:
		return pawnStep(b, from, m.To, piece.Color)
	default:
		return false
	}
}

func kingStep(df, dr int) bool {
	adf, adr := abs(df), abs(dr)
	return adf <= 1 && adr <= 1 && (adf == 1 || adr == 1)
}

func straightLine(df, dr int) bool {
	return (df == 0) != (dr == 0)
}

func diagonalLine(df, dr int) bool {
	return df != 0 && abs(df) == abs(dr)
}

func knightJump(df, dr int) bool {
	adf, adr := abs(df), abs(dr)
	return (adf == 1 && adr == 2) || (adf == 2 && adr == 1)
}

// pathClear reports whether every square strictly between from and to is
// empty. from and to must share a line.
func pathClear(b *Board, from, to Square) bool {
	sf, sr := sign(to.File-from.File), sign(to.Rank-from.Rank)
	for f, r := from.File+sf, from.Rank+sr; f != to.File || r != to.Rank; f, r = f+sf, r+sr {
		if !b.At(Square{File: f, Rank: r}).IsEmpty() {
			return false
		}
	}
	return true
}

func pawnStep(b *Board, from, to Square, color Color) bool {
	fwd := color.forward()
	df := to.File - from.File
	dr := to.Rank - from.Rank
	switch {
	case df == 0 && dr == fwd:
		return b.At(to).IsEmpty()
	case df == 0 && dr == 2*fwd && from.Rank == color.pawnRank():
		mid := Square{File: from.File, Rank: from.Rank + fwd}
		return b.At(mid).IsEmpty() && b.At(to).IsEmpty()
	case abs(df) == 1 && dr == fwd:
		return true
	default:
		return false
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
