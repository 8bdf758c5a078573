package kibitz

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

type SVGOptions struct {
	SquareSize int
	// Flipped draws the board from Black's side.
	Flipped bool
	// Highlight marks the squares of a move, usually the last one played.
	Highlight *Move
	Light     string
	Dark      string
	Marked    string
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.SquareSize <= 0 {
		o.SquareSize = 45
	}
	if o.Light == "" {
		o.Light = "#f0d9b5"
	}
	if o.Dark == "" {
		o.Dark = "#b58863"
	}
	if o.Marked == "" {
		o.Marked = "#cdd26a"
	}
	return o
}

var glyphs = map[Piece]string{
	{Kind: King, Color: White}:   "♔",
	{Kind: Queen, Color: White}:  "♕",
	{Kind: Rook, Color: White}:   "♖",
	{Kind: Bishop, Color: White}: "♗",
	{Kind: Knight, Color: White}: "♘",
	{Kind: Pawn, Color: White}:   "♙",
	{Kind: King, Color: Black}:   "♚",
	{Kind: Queen, Color: Black}:  "♛",
	{Kind: Rook, Color: Black}:   "♜",
	{Kind: Bishop, Color: Black}: "♝",
	{Kind: Knight, Color: Black}: "♞",
	{Kind: Pawn, Color: Black}:   "♟",
}

// RenderSVG draws b as an SVG image.
func RenderSVG(w io.Writer, b Board, opts SVGOptions) error {
	opts = opts.withDefaults()
	size := opts.SquareSize
	canvas := svg.New(w)
	canvas.Start(size*8, size*8)
	for r := 7; r >= 0; r-- {
		for f := 0; f < 8; f++ {
			sq := Sq(f, r)
			x, y := squareOrigin(sq, size, opts.Flipped)
			fill := opts.Dark
			if (f+r)%2 == 1 {
				fill = opts.Light
			}
			if opts.Highlight != nil && (opts.Highlight.From == sq || opts.Highlight.To == sq) {
				fill = opts.Marked
			}
			canvas.Rect(x, y, size, size, "fill:"+fill)
			if glyph, ok := glyphs[b.At(sq)]; ok {
				style := fmt.Sprintf("font-size:%dpx;text-anchor:middle;dominant-baseline:central", size*4/5)
				canvas.Text(x+size/2, y+size/2, glyph, style)
			}
		}
	}
	canvas.End()
	return nil
}

func squareOrigin(sq Square, size int, flipped bool) (int, int) {
	if flipped {
		return (7 - sq.File) * size, sq.Rank * size
	}
	return sq.File * size, (7 - sq.Rank) * size
}
