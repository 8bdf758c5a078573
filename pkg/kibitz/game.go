package kibitz

import (
	"errors"
	"io"
)

// MoveSource yields the moves of a game in order and returns io.EOF after
// the last one.
type MoveSource interface {
	NextMove() (Move, error)
}

// NotationSource decodes move texts one at a time, alternating sides.
type NotationSource struct {
	notation Notation
	texts    []string
	color    Color
	pos      int
}

func NewNotationSource(n Notation, texts []string, first Color) *NotationSource {
	return &NotationSource{notation: n, texts: texts, color: first}
}

func (s *NotationSource) NextMove() (Move, error) {
	if s.pos >= len(s.texts) {
		return Move{}, io.EOF
	}
	text := s.texts[s.pos]
	m, err := s.notation.Decode(text, s.color)
	if err != nil {
		return m, err
	}
	s.pos++
	s.color = s.color.Other()
	return m, nil
}

// MoveVerifier is an optional full legality check run after a move has
// been located.
type MoveVerifier interface {
	Verify(b Board, m Move) error
}

// Game is a replayed game: its tags and a history tree whose main line
// holds the recorded moves.
type Game struct {
	tags     TagPairs
	result   string
	tree     *Tree
	verifier MoveVerifier
}

type Option func(*Game)

func WithTags(tags TagPairs) Option {
	return func(g *Game) { g.tags = tags }
}

func WithResult(result string) Option {
	return func(g *Game) { g.result = result }
}

// WithVerifier checks every move with v before it is applied.
func WithVerifier(v MoveVerifier) Option {
	return func(g *Game) { g.verifier = v }
}

// Play replays src from start. A failing move is reported as a *PlyError
// carrying its ply number and text.
func Play(start Board, src MoveSource, opts ...Option) (*Game, error) {
	g := &Game{tree: NewTree(start), result: "*"}
	for _, opt := range opts {
		opt(g)
	}
	cur := g.tree.Root()
	for ply := 1; ; ply++ {
		m, err := src.NextMove()
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		if err != nil {
			return g, &PlyError{Ply: ply, Notation: m.Notation, Err: err}
		}
		if g.verifier != nil {
			if m, err = g.verify(cur, m); err != nil {
				return g, &PlyError{Ply: ply, Notation: m.Notation, Err: err}
			}
		}
		next, err := g.tree.Extend(cur, m)
		if err != nil {
			return g, &PlyError{Ply: ply, Notation: m.Notation, Err: err}
		}
		cur = next
	}
}

// verify checks m with the verifier and returns the move to extend the
// tree with. A move the movement rules leave ambiguous is settled when
// exactly one of its candidates passes the verifier; the returned move then
// names that candidate as its source square.
func (g *Game) verify(at NodeID, m Move) (Move, error) {
	b, err := g.tree.Position(at)
	if err != nil {
		return m, err
	}
	located := m
	scratch := b.Clone()
	err = scratch.Locate(&located)
	var ambiguous *AmbiguousMoveError
	if errors.As(err, &ambiguous) {
		return g.disambiguate(b, m, ambiguous)
	}
	if err != nil {
		return m, err
	}
	return m, g.verifier.Verify(b, located)
}

func (g *Game) disambiguate(b Board, m Move, ambiguous *AmbiguousMoveError) (Move, error) {
	var legal []Move
	for _, from := range ambiguous.Candidates {
		pick := m
		pick.From = from
		located := pick
		scratch := b.Clone()
		if err := scratch.Locate(&located); err != nil {
			continue
		}
		if g.verifier.Verify(b, located) == nil {
			legal = append(legal, pick)
		}
	}
	if len(legal) != 1 {
		return m, ambiguous
	}
	return legal[0], nil
}

func (g *Game) Tree() *Tree {
	return g.tree
}

func (g *Game) Tags() TagPairs {
	return g.tags
}

func (g *Game) Result() string {
	return g.result
}

// Moves returns the located main-line moves.
func (g *Game) Moves() []Move {
	line := g.tree.MainLine()
	moves := make([]Move, 0, len(line))
	for _, id := range line[1:] {
		if m, ok := g.tree.MoveAt(id); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

// FENs lists the main-line positions, starting position first.
func (g *Game) FENs() []string {
	line := g.tree.MainLine()
	out := make([]string, 0, len(line))
	for _, id := range line {
		b, err := g.tree.Position(id)
		if err != nil {
			break
		}
		out = append(out, b.FEN())
	}
	return out
}

// FENAt returns the position after the given number of plies.
func (g *Game) FENAt(ply int) (string, error) {
	line := g.tree.MainLine()
	if ply < 0 || ply >= len(line) {
		return "", errors.New("ply out of range")
	}
	b, err := g.tree.Position(line[ply])
	if err != nil {
		return "", err
	}
	return b.FEN(), nil
}

// PlayNotation is a shortcut replaying move texts from the standard start.
func PlayNotation(n Notation, texts []string, opts ...Option) (*Game, error) {
	return Play(NewBoard(), NewNotationSource(n, texts, White), opts...)
}
