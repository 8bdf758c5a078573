package kibitz

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// NodeID addresses a node in a Tree.
type NodeID int32

const NoNode NodeID = -1

var (
	ErrUnknownNode       = errors.New("unknown node")
	ErrSuccessorExists   = errors.New("node already has a successor")
	ErrAlternativeExists = errors.New("node already has an alternative")
	ErrNoPredecessor     = errors.New("node has no predecessor")
)

// node is one position of the history. next and alt own their targets;
// prev and original only point back.
type node struct {
	board Board
	move  Move

	score    atomic.Int64
	hasScore atomic.Bool

	prev     NodeID
	next     NodeID
	alt      NodeID
	original NodeID
}

// Tree is the history of a game: the main line through next links, and
// branches hanging off alternative links. Nodes live in an arena and are
// never removed, so a NodeID stays valid for the life of the tree.
//
// One goroutine may add nodes and scores while another navigates; links
// are guarded by an RWMutex and scores are atomic.
type Tree struct {
	mu    sync.RWMutex
	nodes []*node
}

func NewTree(start Board) *Tree {
	root := newNode(start, Move{From: NoSquare, To: NoSquare})
	return &Tree{nodes: []*node{root}}
}

func newNode(b Board, m Move) *node {
	return &node{board: b, move: m, prev: NoNode, next: NoNode, alt: NoNode, original: NoNode}
}

func (t *Tree) Root() NodeID {
	return 0
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

func (t *Tree) get(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return t.nodes[id], nil
}

// Extend plays m on the position of from and links the result as its
// successor.
func (t *Tree) Extend(from NodeID, m Move) (NodeID, error) {
	t.mu.RLock()
	parent, err := t.get(from)
	var base Board
	if err == nil {
		base = parent.board.Clone()
	}
	t.mu.RUnlock()
	if err != nil {
		return NoNode, err
	}

	located, err := base.Play(m)
	if err != nil {
		return NoNode, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if parent.next != NoNode {
		return NoNode, ErrSuccessorExists
	}
	id := NodeID(len(t.nodes))
	child := newNode(base, located)
	child.prev = from
	t.nodes = append(t.nodes, child)
	parent.next = id
	return id, nil
}

// BuildLine extends from one move at a time and returns the last node.
// Failures are reported with the 1-based index of the move in moves.
func (t *Tree) BuildLine(from NodeID, moves []Move) (NodeID, error) {
	cur := from
	for i, m := range moves {
		id, err := t.Extend(cur, m)
		if err != nil {
			return cur, &PlyError{Ply: i + 1, Notation: m.Notation, Err: err}
		}
		cur = id
	}
	return cur, nil
}

// Graft hangs a branch next to at: the first move is played on at's
// predecessor and becomes at's alternative, the rest follow it as a line.
// Every move is checked before anything is linked, so a failed graft
// leaves the tree unchanged. It returns the first node of the branch.
func (t *Tree) Graft(at NodeID, moves []Move) (NodeID, error) {
	if len(moves) == 0 {
		return NoNode, errors.New("graft needs at least one move")
	}
	t.mu.RLock()
	target, err := t.get(at)
	var base Board
	if err == nil {
		if target.prev == NoNode {
			err = ErrNoPredecessor
		} else {
			base = t.nodes[target.prev].board.Clone()
		}
	}
	t.mu.RUnlock()
	if err != nil {
		return NoNode, err
	}

	branch := make([]*node, 0, len(moves))
	for i, m := range moves {
		located, err := base.Play(m)
		if err != nil {
			return NoNode, &PlyError{Ply: i + 1, Notation: m.Notation, Err: err}
		}
		branch = append(branch, newNode(base, located))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if target.alt != NoNode {
		return NoNode, ErrAlternativeExists
	}
	first := NodeID(len(t.nodes))
	for i, n := range branch {
		id := first + NodeID(i)
		if i == 0 {
			n.prev = target.prev
			n.original = at
		} else {
			n.prev = id - 1
			t.nodes[id-1].next = id
		}
		t.nodes = append(t.nodes, n)
	}
	target.alt = first
	return first, nil
}

func (t *Tree) link(id NodeID, pick func(*node) NodeID) NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, err := t.get(id)
	if err != nil {
		return NoNode
	}
	return pick(n)
}

func (t *Tree) Previous(id NodeID) NodeID {
	return t.link(id, func(n *node) NodeID { return n.prev })
}

func (t *Tree) Next(id NodeID) NodeID {
	return t.link(id, func(n *node) NodeID { return n.next })
}

func (t *Tree) Alternative(id NodeID) NodeID {
	return t.link(id, func(n *node) NodeID { return n.alt })
}

// Original returns the node a branch was grafted next to. It is set only
// on the first node of a branch.
func (t *Tree) Original(id NodeID) NodeID {
	return t.link(id, func(n *node) NodeID { return n.original })
}

// Position returns a copy of the board at id.
func (t *Tree) Position(id NodeID) (Board, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, err := t.get(id)
	if err != nil {
		return Board{}, err
	}
	return n.board, nil
}

// MoveAt returns the move that produced id. The root has none.
func (t *Tree) MoveAt(id NodeID) (Move, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, err := t.get(id)
	if err != nil || n.prev == NoNode {
		return Move{}, false
	}
	return n.move, true
}

// SetScore records an evaluation in centipawns from White's point of view.
func (t *Tree) SetScore(id NodeID, cp int) error {
	t.mu.RLock()
	n, err := t.get(id)
	t.mu.RUnlock()
	if err != nil {
		return err
	}
	n.score.Store(int64(cp))
	n.hasScore.Store(true)
	return nil
}

func (t *Tree) Score(id NodeID) (int, bool) {
	t.mu.RLock()
	n, err := t.get(id)
	t.mu.RUnlock()
	if err != nil || !n.hasScore.Load() {
		return 0, false
	}
	return int(n.score.Load()), true
}

// Line follows next links from id, including id itself.
func (t *Tree) Line(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []NodeID
	for cur := id; cur != NoNode; {
		n, err := t.get(cur)
		if err != nil {
			break
		}
		out = append(out, cur)
		cur = n.next
	}
	return out
}

// MainLine is the line from the root.
func (t *Tree) MainLine() []NodeID {
	return t.Line(t.Root())
}

// Depth counts the moves between the root and id, following prev links.
func (t *Tree) Depth(id NodeID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	depth := 0
	for cur := id; ; depth++ {
		n, err := t.get(cur)
		if err != nil || n.prev == NoNode {
			return depth
		}
		cur = n.prev
	}
}
