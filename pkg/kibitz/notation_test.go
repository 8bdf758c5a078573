package kibitz_test

import (
	"errors"
	"testing"

	kibitz "kibitz/pkg/kibitz"
)

func TestSANDecode(t *testing.T) {
	tests := []struct {
		text  string
		color kibitz.Color
		check func(m kibitz.Move) bool
	}{
		{"e4", kibitz.White, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Pawn && m.To == kibitz.Sq(4, 3) && m.From.File == 4 && m.From.Rank == -1
		}},
		{"exd5", kibitz.White, func(m kibitz.Move) bool {
			return m.Capture && m.From.File == 4 && m.To == kibitz.Sq(3, 4)
		}},
		{"Nbd7", kibitz.Black, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Knight && m.From.File == 1 && m.From.Rank == -1 && m.To == kibitz.Sq(3, 6)
		}},
		{"R1a3", kibitz.White, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Rook && m.From.File == -1 && m.From.Rank == 0
		}},
		{"Qh4xe1#", kibitz.Black, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Queen && m.From == kibitz.Sq(7, 3) && m.Capture && m.Mate
		}},
		{"Bb5+", kibitz.White, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Bishop && m.Check && !m.Mate
		}},
		{"O-O", kibitz.White, func(m kibitz.Move) bool {
			return m.ShortCastle && !m.LongCastle && m.Piece == kibitz.King
		}},
		{"0-0-0+", kibitz.Black, func(m kibitz.Move) bool {
			return m.LongCastle && m.Check
		}},
		{"e8=Q", kibitz.White, func(m kibitz.Move) bool {
			return m.Promotion && m.Promote == kibitz.Queen && m.From.File == 4
		}},
		{"dxc1N+", kibitz.Black, func(m kibitz.Move) bool {
			return m.Promotion && m.Promote == kibitz.Knight && m.Capture && m.Check
		}},
		{"Nf3!?", kibitz.White, func(m kibitz.Move) bool {
			return m.Piece == kibitz.Knight && m.To == kibitz.Sq(5, 2) && !m.Check
		}},
	}
	for _, tt := range tests {
		m, err := kibitz.SAN{}.Decode(tt.text, tt.color)
		if err != nil {
			t.Fatalf("failed to decode %s: %v", tt.text, err)
		}
		if m.Color != tt.color || m.Notation != tt.text {
			t.Fatalf("unexpected color or notation for %s: %+v", tt.text, m)
		}
		if !tt.check(m) {
			t.Fatalf("unexpected move for %s: %+v", tt.text, m)
		}
		if err := m.Validate(); err != nil {
			t.Fatalf("decoded move %s does not validate: %v", tt.text, err)
		}
	}
}

func TestSANDecodeErrors(t *testing.T) {
	for _, text := range []string{"", "x", "e9", "Zf3", "xd5", "Ne8=Q", "Nf3g"} {
		_, err := kibitz.SAN{}.Decode(text, kibitz.White)
		if !errors.Is(err, kibitz.ErrIllegalMove) {
			t.Fatalf("expected illegal move for %q, got %v", text, err)
		}
	}
}

func TestCoordinateDecode(t *testing.T) {
	m, err := kibitz.Coordinate{}.Decode("a7a8q", kibitz.White)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if m.From != kibitz.Sq(0, 6) || m.To != kibitz.Sq(0, 7) || !m.Promotion || m.Promote != kibitz.Queen {
		t.Fatalf("unexpected move: %+v", m)
	}
	if m.Piece != kibitz.NoKind {
		t.Fatalf("coordinate moves leave the piece to the board, got %s", m.Piece)
	}
	for _, text := range []string{"e2", "e2e9", "e7e8k", "e2e4e5"} {
		if _, err := (kibitz.Coordinate{}).Decode(text, kibitz.White); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestDecodeLineReportsPly(t *testing.T) {
	moves, err := kibitz.DecodeLine(kibitz.SAN{}, []string{"e4", "e5", "K?"}, kibitz.White)
	var plyErr *kibitz.PlyError
	if !errors.As(err, &plyErr) {
		t.Fatalf("expected ply error, got %v", err)
	}
	if plyErr.Ply != 3 || plyErr.Notation != "K?" {
		t.Fatalf("unexpected ply error: %+v", plyErr)
	}
	if len(moves) != 2 || moves[1].Color != kibitz.Black {
		t.Fatalf("unexpected decoded prefix: %+v", moves)
	}
}

func TestLocatedCoordinate(t *testing.T) {
	b := kibitz.NewBoard()
	m, _ := kibitz.SAN{}.Decode("Nf3", kibitz.White)
	if got := m.Coordinate(); got != "" {
		t.Fatalf("unlocated move should have no coordinate, got %s", got)
	}
	located, err := b.Play(m)
	if err != nil {
		t.Fatalf("failed to play: %v", err)
	}
	if got := located.Coordinate(); got != "g1f3" {
		t.Fatalf("unexpected coordinate: got %s want g1f3", got)
	}
	if !located.Located() {
		t.Fatal("played move should be located")
	}
}
