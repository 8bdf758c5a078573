package kibitz

import "fmt"

// Packed256 is a position squeezed into 256 bits, usable as a map key.
// Clocks are not part of it: two positions that differ only in the
// half-move clock or move number pack the same.
type Packed256 struct {
	Words [4]uint64
}

type bitWriter256 struct {
	words [4]uint64
	pos   int
}

type bitReader256 struct {
	words [4]uint64
	pos   int
}

type codeSpec struct {
	kind   Kind
	bits   uint64
	bitLen int
}

type codeBook struct {
	byLen  map[int]map[uint64]codeSpec
	maxLen int
}

// Codes are read least significant bit first and are prefix free.
var boardCodes = []codeSpec{
	{kind: NoKind, bits: 0b0, bitLen: 1},
	{kind: Pawn, bits: 0b01, bitLen: 2},
	{kind: Knight, bits: 0b0011, bitLen: 4},
	{kind: Bishop, bits: 0b1011, bitLen: 4},
	{kind: Rook, bits: 0b0111, bitLen: 4},
	{kind: Queen, bits: 0b1111, bitLen: 4},
}

var boardCodeBook = buildCodeBook(boardCodes)

func PackPosition256(b Board) (Packed256, error) {
	writer := &bitWriter256{}

	turnBit := uint64(0)
	if b.turn == White {
		turnBit = 1
	}
	if err := writer.writeBit(turnBit); err != nil {
		return Packed256{}, err
	}
	for _, right := range []bool{b.castling.WhiteShort, b.castling.WhiteLong, b.castling.BlackShort, b.castling.BlackLong} {
		if err := writer.writeBool(right); err != nil {
			return Packed256{}, err
		}
	}
	if err := writer.writeBool(b.enPassant.Valid()); err != nil {
		return Packed256{}, err
	}
	if b.enPassant.Valid() {
		if err := writer.writeBits(uint64(b.enPassant.File), 3); err != nil {
			return Packed256{}, err
		}
	}

	whiteKing, blackKing, err := kingSquares(b)
	if err != nil {
		return Packed256{}, err
	}
	if err := writer.writeBits(uint64(whiteKing), 6); err != nil {
		return Packed256{}, err
	}
	if err := writer.writeBits(uint64(blackKing), 6); err != nil {
		return Packed256{}, err
	}

	for sq := 0; sq < 64; sq++ {
		if sq == whiteKing || sq == blackKing {
			continue
		}
		piece := b.grid[sq/8][sq%8]
		if piece.Kind == King {
			return Packed256{}, fmt.Errorf("unexpected king at square %d", sq)
		}
		if err := writer.writeCode(piece.Kind); err != nil {
			return Packed256{}, err
		}
		if piece.IsEmpty() {
			continue
		}
		if err := writer.writeColor(piece.Color); err != nil {
			return Packed256{}, err
		}
	}

	return Packed256{Words: writer.words}, nil
}

func UnpackPosition256(p Packed256) (Board, error) {
	reader := &bitReader256{words: p.Words}
	b := NewEmptyBoard()

	turnBit, err := reader.readBit()
	if err != nil {
		return Board{}, err
	}
	b.turn = Black
	if turnBit == 1 {
		b.turn = White
		b.ply = 0
	} else {
		b.ply = 1
	}
	rights := make([]bool, 4)
	for i := range rights {
		if rights[i], err = reader.readBool(); err != nil {
			return Board{}, err
		}
	}
	b.castling = Castling{WhiteShort: rights[0], WhiteLong: rights[1], BlackShort: rights[2], BlackLong: rights[3]}

	hasEP, err := reader.readBool()
	if err != nil {
		return Board{}, err
	}
	if hasEP {
		file, err := reader.readBits(3)
		if err != nil {
			return Board{}, err
		}
		mover := b.turn.Other()
		b.enPassant = Sq(int(file), mover.pawnRank()+mover.forward())
		b.enPassantPawn = Sq(int(file), mover.pawnRank()+2*mover.forward())
	}

	whiteKing, err := reader.readBits(6)
	if err != nil {
		return Board{}, err
	}
	blackKing, err := reader.readBits(6)
	if err != nil {
		return Board{}, err
	}
	if whiteKing == blackKing {
		return Board{}, fmt.Errorf("kings share square %d", whiteKing)
	}
	b.grid[whiteKing/8][whiteKing%8] = Piece{Kind: King, Color: White}
	b.grid[blackKing/8][blackKing%8] = Piece{Kind: King, Color: Black}

	for sq := 0; sq < 64; sq++ {
		if sq == int(whiteKing) || sq == int(blackKing) {
			continue
		}
		code, err := reader.readCode(boardCodeBook)
		if err != nil {
			return Board{}, err
		}
		if code.kind == NoKind {
			continue
		}
		color, err := reader.readColor()
		if err != nil {
			return Board{}, err
		}
		b.grid[sq/8][sq%8] = Piece{Kind: code.kind, Color: color}
	}

	for reader.pos < 256 {
		bit, err := reader.readBit()
		if err != nil {
			return Board{}, err
		}
		if bit != 0 {
			return Board{}, fmt.Errorf("trailing bits after square data at %d", reader.pos-1)
		}
	}
	return b, nil
}

func buildCodeBook(codes []codeSpec) codeBook {
	book := codeBook{byLen: map[int]map[uint64]codeSpec{}}
	for _, code := range codes {
		if book.byLen[code.bitLen] == nil {
			book.byLen[code.bitLen] = map[uint64]codeSpec{}
		}
		book.byLen[code.bitLen][code.bits] = code
		if code.bitLen > book.maxLen {
			book.maxLen = code.bitLen
		}
	}
	return book
}

func (w *bitWriter256) writeBit(bit uint64) error {
	if w.pos >= 256 {
		return fmt.Errorf("bitstream overflow")
	}
	word := w.pos / 64
	offset := uint(w.pos % 64)
	if bit != 0 {
		w.words[word] |= 1 << offset
	}
	w.pos++
	return nil
}

func (w *bitWriter256) writeBool(v bool) error {
	if v {
		return w.writeBit(1)
	}
	return w.writeBit(0)
}

func (w *bitWriter256) writeBits(value uint64, bitLen int) error {
	for i := 0; i < bitLen; i++ {
		bit := (value >> i) & 1
		if err := w.writeBit(bit); err != nil {
			return err
		}
	}
	return nil
}

func (w *bitWriter256) writeCode(kind Kind) error {
	for _, code := range boardCodes {
		if code.kind == kind {
			return w.writeBits(code.bits, code.bitLen)
		}
	}
	return fmt.Errorf("unknown piece code: %s", kind)
}

func (w *bitWriter256) writeColor(color Color) error {
	return w.writeBool(color == White)
}

func (r *bitReader256) readBit() (uint64, error) {
	if r.pos >= 256 {
		return 0, fmt.Errorf("bitstream underflow")
	}
	word := r.pos / 64
	offset := uint(r.pos % 64)
	bit := (r.words[word] >> offset) & 1
	r.pos++
	return bit, nil
}

func (r *bitReader256) readBool() (bool, error) {
	bit, err := r.readBit()
	return bit == 1, err
}

func (r *bitReader256) readBits(bitLen int) (uint64, error) {
	var value uint64
	for i := 0; i < bitLen; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		value |= bit << i
	}
	return value, nil
}

func (r *bitReader256) readCode(book codeBook) (codeSpec, error) {
	var value uint64
	for length := 1; length <= book.maxLen; length++ {
		bit, err := r.readBit()
		if err != nil {
			return codeSpec{}, err
		}
		value |= bit << (length - 1)
		if entry, ok := book.byLen[length][value]; ok {
			return entry, nil
		}
	}
	return codeSpec{}, fmt.Errorf("invalid code")
}

func (r *bitReader256) readColor() (Color, error) {
	bit, err := r.readBit()
	if err != nil {
		return Black, err
	}
	if bit == 1 {
		return White, nil
	}
	return Black, nil
}

func kingSquares(b Board) (int, int, error) {
	white := -1
	black := -1
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := b.grid[r][f]
			if piece.Kind != King {
				continue
			}
			idx := r*8 + f
			if piece.Color == White {
				if white != -1 {
					return 0, 0, fmt.Errorf("multiple white kings")
				}
				white = idx
			} else {
				if black != -1 {
					return 0, 0, fmt.Errorf("multiple black kings")
				}
				black = idx
			}
		}
	}
	if white == -1 || black == -1 {
		return 0, 0, fmt.Errorf("missing king")
	}
	return white, black, nil
}
